package memory

import (
	"context"
	"sort"
	"strings"

	"landedcost/internal/core/apperror"
	"landedcost/internal/core/entity"
	"landedcost/internal/core/id"
	"landedcost/internal/domain"
	"landedcost/internal/domain/audit"
	"landedcost/internal/domain/catalogs/product"
	"landedcost/internal/domain/events"
)

// ProductRepo implements product.Repository.
type ProductRepo struct {
	s *Store
}

var _ product.Repository = (*ProductRepo)(nil)

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	return r.s.do(ctx, func() error {
		for _, other := range r.s.products {
			if other.Code == p.Code {
				return apperror.NewConflict("product code already used").WithDetail("code", p.Code)
			}
		}
		r.s.products[p.ID] = *p
		return nil
	})
}

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	var out *product.Product
	err := r.s.do(ctx, func() error {
		p, ok := r.s.products[productID]
		if !ok {
			return apperror.NewNotFound("product", productID)
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *ProductRepo) GetForUpdate(ctx context.Context, productID id.ID) (*product.Product, error) {
	return r.GetByID(ctx, productID)
}

func (r *ProductRepo) UpdateStockAndCost(ctx context.Context, p *product.Product) error {
	return r.s.do(ctx, func() error {
		stored, ok := r.s.products[p.ID]
		if !ok {
			return apperror.NewNotFound("product", p.ID)
		}
		if stored.Version != p.Version {
			return apperror.NewConcurrentModification("product", p.ID)
		}
		p.Touch()
		stored.Stock = p.Stock
		stored.Cost = p.Cost
		stored.Version = p.Version
		r.s.products[p.ID] = stored
		return nil
	})
}

func (r *ProductRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*product.Product], error) {
	result := domain.ListResult[*product.Product]{Limit: filter.Limit, Offset: filter.Offset}
	err := r.s.do(ctx, func() error {
		q := strings.ToLower(strings.TrimSpace(filter.Search))
		items := make([]*product.Product, 0)
		for _, p := range r.s.products {
			if q != "" && !strings.Contains(strings.ToLower(p.Code+" "+p.Name), q) {
				continue
			}
			p := p
			items = append(items, &p)
		}
		sort.Slice(items, func(i, j int) bool { return items[i].Code < items[j].Code })

		result.TotalCount = int64(len(items))
		start := min(filter.Offset, len(items))
		end := len(items)
		if filter.Limit > 0 {
			end = min(start+filter.Limit, len(items))
		}
		result.Items = items[start:end]
		return nil
	})
	return result, err
}

// StockRepo implements stock.Repository.
type StockRepo struct {
	s *Store
}

func (r *StockRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	return r.s.do(ctx, func() error {
		r.s.movements = append(r.s.movements, movements...)
		return nil
	})
}

func (r *StockRepo) GetMovementsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	var out []entity.StockMovement
	err := r.s.do(ctx, func() error {
		for _, m := range r.s.movements {
			if m.RecorderID == recorderID {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}

func (r *StockRepo) GetMovementsByProduct(ctx context.Context, productID id.ID, limit int) ([]entity.StockMovement, error) {
	var out []entity.StockMovement
	err := r.s.do(ctx, func() error {
		for i := len(r.s.movements) - 1; i >= 0 && len(out) < limit; i-- {
			if r.s.movements[i].ProductID == productID {
				out = append(out, r.s.movements[i])
			}
		}
		return nil
	})
	return out, err
}

// Outbox implements events.Publisher.
type Outbox struct {
	s *Store
}

func (o *Outbox) Publish(ctx context.Context, event events.Event) error {
	return o.s.do(ctx, func() error {
		o.s.outbox = append(o.s.outbox, event)
		return nil
	})
}

// Events returns published events in order.
func (o *Outbox) Events() []events.Event {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	return append([]events.Event(nil), o.s.outbox...)
}

// AuditLog implements audit.Recorder.
type AuditLog struct {
	s *Store
}

func (a *AuditLog) Record(ctx context.Context, entry audit.Entry) error {
	if a.s.codec != nil {
		a.s.codec.Seal(&entry)
	}
	return a.s.do(ctx, func() error {
		a.s.audit = append(a.s.audit, entry)
		return nil
	})
}

// Entries returns recorded entries for an entity in recording order, opened
// (decompressed and verified).
func (a *AuditLog) Entries(entityID id.ID) ([]audit.Entry, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	var out []audit.Entry
	for _, e := range a.s.audit {
		if e.EntityID != entityID {
			continue
		}
		if err := a.open(&e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// History implements audit.Reader.
func (a *AuditLog) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	var out []audit.Entry
	for i := len(a.s.audit) - 1; i >= 0; i-- {
		e := a.s.audit[i]
		if e.EntityType != entityType || e.EntityID != entityID {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		if err := a.open(&e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (a *AuditLog) open(e *audit.Entry) error {
	if a.s.codec == nil {
		return nil
	}
	return a.s.codec.Open(e)
}
