package product

import (
	"context"

	"landedcost/internal/core/id"
	"landedcost/internal/domain"
)

// Repository is the catalog port. GetByID and GetForUpdate return an
// apperror NotFound for unknown ids.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, productID id.ID) (*Product, error)

	// GetForUpdate reads the product with a row lock. Must be called inside a transaction.
	GetForUpdate(ctx context.Context, productID id.ID) (*Product, error)

	// UpdateStockAndCost writes Stock and Cost with an optimistic version
	// check and bumps the version.
	UpdateStockAndCost(ctx context.Context, p *Product) error

	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Product], error)
}
