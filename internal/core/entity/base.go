// Package entity holds the persisted base types: documents (purchases),
// catalog rows (products) and register movements (stock).
package entity

import (
	"context"
	"time"

	"landedcost/internal/core/id"
)

// Validatable checks invariants that need no storage access.
type Validatable interface {
	Validate(ctx context.Context) error
}

// BaseEntity is the identity and optimistic-lock version of a row.
// Repositories compare Version on update and bump it on success.
type BaseEntity struct {
	ID      id.ID `db:"id" json:"id"`
	Version int   `db:"version" json:"version"`
}

func NewBaseEntity() BaseEntity {
	return BaseEntity{
		ID:      id.New(),
		Version: 1,
	}
}

// Touch records a successful versioned write.
func (b *BaseEntity) Touch() {
	b.Version++
}

// BaseDocument adds who/when columns to BaseEntity.
type BaseDocument struct {
	BaseEntity

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy string    `db:"updated_by" json:"updatedBy,omitempty"`
}

func NewBaseDocument() BaseDocument {
	now := time.Now().UTC()
	return BaseDocument{
		BaseEntity: NewBaseEntity(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Touch bumps the version and UpdatedAt.
func (b *BaseDocument) Touch() {
	b.UpdatedAt = time.Now().UTC()
	b.BaseEntity.Touch()
}

// BaseCatalog is a reference-data row identified by a unique Code.
type BaseCatalog struct {
	BaseEntity

	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}
