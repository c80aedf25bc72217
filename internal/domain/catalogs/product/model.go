// Package product is the slice of the product catalog the purchasing core
// touches: identity, on-hand stock and the reference unit cost.
package product

import (
	"context"
	"strings"

	"landedcost/internal/core/apperror"
	"landedcost/internal/core/entity"
	"landedcost/internal/core/types"
)

// Product is a catalog item. Completion mutates Stock and Cost only.
type Product struct {
	entity.BaseCatalog

	// Stock is the on-hand quantity in base units.
	Stock int64 `db:"stock" json:"stock"`

	// Cost is the reference unit cost in local currency.
	Cost types.Money `db:"cost" json:"cost"`
}

// New creates a product with zero stock and cost.
func New(code, name string) *Product {
	return &Product{
		BaseCatalog: entity.BaseCatalog{
			BaseEntity: entity.NewBaseEntity(),
			Code:       strings.TrimSpace(code),
			Name:       strings.TrimSpace(name),
		},
		Cost: types.Zero(),
	}
}

// Validate implements entity.Validatable.
func (p *Product) Validate(ctx context.Context) error {
	if p.Code == "" {
		return apperror.NewValidation("code is required").WithDetail("field", "code")
	}
	if p.Name == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if p.Cost.IsNegative() {
		return apperror.NewValidation("cost must not be negative").WithDetail("field", "cost")
	}
	if !types.FitsScale(p.Cost, types.MoneyScale) {
		return apperror.NewValidation("cost allows at most 2 decimal places").WithDetail("field", "cost")
	}
	return nil
}

// Receive adds qty to stock and sets the new reference cost.
func (p *Product) Receive(qty int64, cost types.Money) {
	p.Stock += qty
	p.Cost = cost
}
