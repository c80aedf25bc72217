package product

import (
	"context"
	"fmt"

	"landedcost/internal/core/apperror"
	"landedcost/internal/core/id"
	"landedcost/internal/core/security"
	"landedcost/internal/domain"
	"landedcost/pkg/logger"
)

// Service exposes read access and creation of catalog products. Stock and
// cost are only changed by purchase completion.
type Service struct {
	repo       Repository
	authorizer security.Authorizer
}

// NewService creates a product service.
func NewService(repo Repository, authorizer security.Authorizer) *Service {
	return &Service{repo: repo, authorizer: authorizer}
}

// Create registers a product.
func (s *Service) Create(ctx context.Context, p *Product) error {
	if err := s.authorizer.Authorize(ctx, security.PermissionProductCreate); err != nil {
		return err
	}
	if err := p.Validate(ctx); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return fmt.Errorf("create product: %w", err)
	}

	logger.Info(ctx, "product created", "id", p.ID, "code", p.Code)
	return nil
}

// GetByID returns a product.
func (s *Service) GetByID(ctx context.Context, productID id.ID) (*Product, error) {
	if err := s.authorizer.Authorize(ctx, security.PermissionProductRead); err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("product", productID)
		}
		return nil, err
	}
	return p, nil
}

// List returns products ordered by code.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Product], error) {
	if err := s.authorizer.Authorize(ctx, security.PermissionProductRead); err != nil {
		return domain.ListResult[*Product]{}, err
	}
	filter.Normalize()
	return s.repo.List(ctx, filter)
}
