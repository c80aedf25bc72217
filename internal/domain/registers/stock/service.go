package stock

import (
	"context"
	"fmt"

	"landedcost/internal/core/apperror"
	"landedcost/internal/core/entity"
	"landedcost/internal/core/id"
	"landedcost/pkg/logger"
)

// Service records and reads stock movements. Transactions are managed by the caller.
type Service struct {
	repo Repository
}

// NewService creates a new stock register service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RecordReceipts validates and stores receipt movements.
func (s *Service) RecordReceipts(ctx context.Context, movements []entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	for i, m := range movements {
		if m.Quantity <= 0 {
			return apperror.NewValidation(fmt.Sprintf("movement %d: quantity must be positive", i))
		}
		if m.RecordType != entity.RecordTypeReceipt {
			return apperror.NewValidation(fmt.Sprintf("movement %d: expected receipt", i))
		}
		if id.IsNil(m.RecorderID) || id.IsNil(m.ProductID) {
			return apperror.NewValidation(fmt.Sprintf("movement %d: recorder and product are required", i))
		}
	}

	if err := s.repo.CreateMovements(ctx, movements); err != nil {
		return fmt.Errorf("create movements: %w", err)
	}

	logger.Debug(ctx, "recorded stock movements",
		"count", len(movements),
		"recorder_id", movements[0].RecorderID,
	)

	return nil
}

// MovementsByRecorder returns the movements a document wrote.
func (s *Service) MovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	return s.repo.GetMovementsByRecorder(ctx, recorderID)
}

// ProductHistory returns the latest movements for a product.
func (s *Service) ProductHistory(ctx context.Context, productID id.ID, limit int) ([]entity.StockMovement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.GetMovementsByProduct(ctx, productID, limit)
}
