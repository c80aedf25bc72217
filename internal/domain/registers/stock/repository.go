// Package stock provides the stock register: an append-only ledger of
// quantity movements valued at unit cost.
package stock

import (
	"context"

	"landedcost/internal/core/entity"
	"landedcost/internal/core/id"
)

// Repository defines operations for the stock register.
type Repository interface {
	// CreateMovements batch inserts movements
	CreateMovements(ctx context.Context, movements []entity.StockMovement) error

	// GetMovementsByRecorder retrieves all movements written by a document
	GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error)

	// GetMovementsByProduct returns the newest movements for a product
	GetMovementsByProduct(ctx context.Context, productID id.ID, limit int) ([]entity.StockMovement, error)
}
