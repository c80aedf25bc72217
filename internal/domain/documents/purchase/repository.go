package purchase

import (
	"context"
	"time"

	"landedcost/internal/core/id"
	"landedcost/internal/domain"
)

// Repository persists purchases together with their items.
type Repository interface {
	// Create inserts the header and items.
	Create(ctx context.Context, p *Purchase) error

	// GetByID loads header and items. Unknown ids yield apperror NotFound.
	GetByID(ctx context.Context, purchaseID id.ID) (*Purchase, error)

	// GetForUpdate is GetByID with a row lock on the header. Must run inside a transaction.
	GetForUpdate(ctx context.Context, purchaseID id.ID) (*Purchase, error)

	// Update writes header and replaces items when p.Version matches the
	// stored version, then increments p.Version. A mismatch yields
	// apperror ConcurrentModification.
	Update(ctx context.Context, p *Purchase) error

	Delete(ctx context.Context, purchaseID id.ID) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Purchase], error)
}

// ListFilter narrows purchase listings.
type ListFilter struct {
	domain.ListFilter

	Statuses   []Status
	SupplierID *id.ID
	DateFrom   *time.Time
	DateTo     *time.Time
}

// Locker serializes completion attempts across processes. The returned
// release function must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// NoopLocker relies on the database row lock alone.
type NoopLocker struct{}

func (NoopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}
