package memory

import (
	"context"
	"sort"
	"strings"

	"landedcost/internal/core/apperror"
	"landedcost/internal/core/id"
	"landedcost/internal/domain"
	"landedcost/internal/domain/documents/purchase"
)

// PurchaseRepo implements purchase.Repository.
type PurchaseRepo struct {
	s *Store
}

var _ purchase.Repository = (*PurchaseRepo)(nil)

func (r *PurchaseRepo) Create(ctx context.Context, p *purchase.Purchase) error {
	return r.s.do(ctx, func() error {
		if _, exists := r.s.purchases[p.ID]; exists {
			return apperror.NewConflict("purchase already exists").WithDetail("id", p.ID)
		}
		for _, other := range r.s.purchases {
			if p.Number != "" && other.Number == p.Number {
				return apperror.NewConflict("purchase number already used").WithDetail("number", p.Number)
			}
		}
		r.s.purchases[p.ID] = p.Clone()
		return nil
	})
}

func (r *PurchaseRepo) GetByID(ctx context.Context, purchaseID id.ID) (*purchase.Purchase, error) {
	var out *purchase.Purchase
	err := r.s.do(ctx, func() error {
		p, ok := r.s.purchases[purchaseID]
		if !ok {
			return apperror.NewNotFound("purchase", purchaseID)
		}
		out = p.Clone()
		return nil
	})
	return out, err
}

// GetForUpdate is GetByID; the transaction already holds the store lock.
func (r *PurchaseRepo) GetForUpdate(ctx context.Context, purchaseID id.ID) (*purchase.Purchase, error) {
	return r.GetByID(ctx, purchaseID)
}

func (r *PurchaseRepo) Update(ctx context.Context, p *purchase.Purchase) error {
	return r.s.do(ctx, func() error {
		stored, ok := r.s.purchases[p.ID]
		if !ok {
			return apperror.NewNotFound("purchase", p.ID)
		}
		if stored.Version != p.Version {
			return apperror.NewConcurrentModification("purchase", p.ID)
		}
		p.Touch()
		r.s.purchases[p.ID] = p.Clone()
		return nil
	})
}

func (r *PurchaseRepo) Delete(ctx context.Context, purchaseID id.ID) error {
	return r.s.do(ctx, func() error {
		if _, ok := r.s.purchases[purchaseID]; !ok {
			return apperror.NewNotFound("purchase", purchaseID)
		}
		delete(r.s.purchases, purchaseID)
		return nil
	})
}

func (r *PurchaseRepo) List(ctx context.Context, filter purchase.ListFilter) (domain.ListResult[*purchase.Purchase], error) {
	result := domain.ListResult[*purchase.Purchase]{Limit: filter.Limit, Offset: filter.Offset}

	err := r.s.do(ctx, func() error {
		matched := make([]*purchase.Purchase, 0)
		for _, p := range r.s.purchases {
			if matches(p, filter) {
				matched = append(matched, p.Clone())
			}
		}

		sort.Slice(matched, func(i, j int) bool {
			if !matched[i].Date.Equal(matched[j].Date) {
				return matched[i].Date.After(matched[j].Date)
			}
			return matched[i].Number > matched[j].Number
		})

		result.TotalCount = int64(len(matched))
		start := min(filter.Offset, len(matched))
		end := len(matched)
		if filter.Limit > 0 {
			end = min(start+filter.Limit, len(matched))
		}
		result.Items = matched[start:end]
		return nil
	})
	return result, err
}

func matches(p *purchase.Purchase, f purchase.ListFilter) bool {
	if len(f.IDs) > 0 && !containsID(f.IDs, p.ID) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if p.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.SupplierID != nil && (p.SupplierID == nil || *p.SupplierID != *f.SupplierID) {
		return false
	}
	if f.DateFrom != nil && p.Date.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && p.Date.After(*f.DateTo) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(p.Number), q) && !strings.Contains(strings.ToLower(p.Comment), q) {
			return false
		}
	}
	return true
}

func containsID(ids []id.ID, target id.ID) bool {
	for _, v := range ids {
		if v == target {
			return true
		}
	}
	return false
}
