// Package memory is an in-process storage adapter. A transaction holds the
// store lock for its whole duration and is rolled back by restoring a
// snapshot, so concurrent completions serialize exactly as with a row lock.
package memory

import (
	"context"
	"sync"

	"landedcost/internal/core/entity"
	"landedcost/internal/core/id"
	"landedcost/internal/core/tx"
	"landedcost/internal/domain/audit"
	"landedcost/internal/domain/catalogs/product"
	"landedcost/internal/domain/documents/purchase"
	"landedcost/internal/domain/events"
)

// Store holds all aggregates in memory.
type Store struct {
	mu sync.Mutex

	purchases map[id.ID]*purchase.Purchase
	products  map[id.ID]product.Product
	movements []entity.StockMovement
	outbox    []events.Event
	audit     []audit.Entry

	codec *audit.Codec
}

var _ tx.Manager = (*Store)(nil)

// NewStore creates an empty store. codec may be nil, in which case audit
// entries are kept as recorded.
func NewStore(codec *audit.Codec) *Store {
	return &Store{
		purchases: make(map[id.ID]*purchase.Purchase),
		products:  make(map[id.ID]product.Product),
		codec:     codec,
	}
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// RunInTransaction implements tx.Manager. Nested calls reuse the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// do runs fn under the store lock unless ctx already holds it.
func (s *Store) do(ctx context.Context, fn func() error) error {
	if inTx(ctx) {
		return fn()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

type snapshot struct {
	purchases map[id.ID]*purchase.Purchase
	products  map[id.ID]product.Product
	movements int
	outbox    int
	audit     int
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		purchases: make(map[id.ID]*purchase.Purchase, len(s.purchases)),
		products:  make(map[id.ID]product.Product, len(s.products)),
		movements: len(s.movements),
		outbox:    len(s.outbox),
		audit:     len(s.audit),
	}
	for k, v := range s.purchases {
		snap.purchases[k] = v.Clone()
	}
	for k, v := range s.products {
		snap.products[k] = v
	}
	return snap
}

// restore rolls back to snap. Append-only logs are truncated.
func (s *Store) restore(snap snapshot) {
	s.purchases = snap.purchases
	s.products = snap.products
	s.movements = s.movements[:snap.movements]
	s.outbox = s.outbox[:snap.outbox]
	s.audit = s.audit[:snap.audit]
}

// Purchases returns the purchase repository.
func (s *Store) Purchases() *PurchaseRepo { return &PurchaseRepo{s: s} }

// Products returns the product repository.
func (s *Store) Products() *ProductRepo { return &ProductRepo{s: s} }

// Stock returns the stock register repository.
func (s *Store) Stock() *StockRepo { return &StockRepo{s: s} }

// Outbox returns the event publisher.
func (s *Store) Outbox() *Outbox { return &Outbox{s: s} }

// Audit returns the audit recorder.
func (s *Store) Audit() *AuditLog { return &AuditLog{s: s} }
