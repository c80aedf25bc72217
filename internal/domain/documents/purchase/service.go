package purchase

import (
	"context"
	"fmt"
	"time"

	"landedcost/internal/core/apperror"
	"landedcost/internal/core/id"
	"landedcost/internal/core/numerator"
	"landedcost/internal/core/security"
	"landedcost/internal/core/tx"
	"landedcost/internal/core/types"
	"landedcost/internal/domain"
	"landedcost/internal/domain/audit"
	"landedcost/internal/domain/costing"
	"landedcost/internal/domain/events"
	"landedcost/pkg/logger"
)

// NumberPrefix starts every purchase number: PO-2026-00001.
const NumberPrefix = "PO"

// ServiceConfig wires the purchase service.
type ServiceConfig struct {
	Repo       Repository
	Completer  *Completer
	Engine     *costing.Engine
	Numerator  numerator.Generator
	TxManager  tx.Manager
	Authorizer security.Authorizer

	// Optional.
	Audit  audit.Recorder
	Events events.Publisher
}

// Service provides business operations for purchases.
type Service struct {
	repo       Repository
	completer  *Completer
	engine     *costing.Engine
	numerator  numerator.Generator
	txManager  tx.Manager
	authorizer security.Authorizer
	audit      audit.Recorder
	events     events.Publisher
	hooks      *domain.HookRegistry[*Purchase]
}

// NewService creates a purchase service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		repo:       cfg.Repo,
		completer:  cfg.Completer,
		engine:     cfg.Engine,
		numerator:  cfg.Numerator,
		txManager:  cfg.TxManager,
		authorizer: cfg.Authorizer,
		audit:      cfg.Audit,
		events:     cfg.Events,
		hooks:      domain.NewHookRegistry[*Purchase](),
	}
	if s.audit == nil {
		s.audit = audit.Nop{}
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	return s
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Purchase] {
	return s.hooks
}

// Normalize canonicalises currency, rate, line numbering and price sync.
// A local-currency purchase always has rate 1 and no foreign prices. A
// foreign purchase keeps its rate as given; a missing rate stays zero and
// fails Validate.
func (s *Service) Normalize(p *Purchase) {
	policy := s.engine.Policy()

	if p.Type == "" {
		p.Type = TypeLocal
	}
	if p.Date.IsZero() {
		p.Date = time.Now().UTC()
	}
	p.CurrencyCode = policy.EffectiveCode(p.CurrencyCode)

	if policy.IsLocal(p.CurrencyCode) {
		p.SetExchangeRate(types.One())
		for i := range p.Items {
			p.Items[i].UnitPriceForeign = nil
			p.Items[i].LocalOverride = false
		}
	} else if p.ExchangeRate.IsPositive() {
		p.SetExchangeRate(p.ExchangeRate)
	}

	for i := range p.Items {
		p.Items[i].LineNo = i + 1
		if id.IsNil(p.Items[i].LineID) {
			p.Items[i].LineID = id.New()
		}
	}
}

// Create stores a new PENDING purchase and assigns its number.
func (s *Service) Create(ctx context.Context, p *Purchase) error {
	if err := s.authorizer.Authorize(ctx, security.PermissionPurchaseCreate); err != nil {
		return err
	}

	p.Status = StatusPending
	p.CompletedAt = nil
	p.CancelledAt = nil
	s.Normalize(p)

	if err := s.hooks.Run(ctx, domain.BeforeCreate, p); err != nil {
		return err
	}
	if err := p.Validate(ctx); err != nil {
		return err
	}

	if p.Number == "" {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(NumberPrefix), p.Date)
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		p.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create purchase: %w", err)
		}
		return s.record(ctx, p, audit.ActionCreate, p)
	})
	if err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, domain.AfterCreate, p); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "purchase created",
		"id", p.ID,
		"number", p.Number,
		"currency", p.CurrencyCode,
		"items", len(p.Items))

	return nil
}

// GetByID retrieves a purchase with items.
func (s *Service) GetByID(ctx context.Context, purchaseID id.ID) (*Purchase, error) {
	if err := s.authorizer.Authorize(ctx, security.PermissionPurchaseRead); err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, mapNotFound(err, purchaseID)
	}
	return p, nil
}

// Update writes edits to a non-terminal purchase. Status is not changed
// here; p.Version must be the version the caller read.
func (s *Service) Update(ctx context.Context, p *Purchase) error {
	if err := s.authorizer.Authorize(ctx, security.PermissionPurchaseUpdate); err != nil {
		return err
	}

	s.Normalize(p)
	if err := s.hooks.Run(ctx, domain.BeforeUpdate, p); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		stored, err := s.repo.GetForUpdate(ctx, p.ID)
		if err != nil {
			return mapNotFound(err, p.ID)
		}
		if err := stored.CanModify(); err != nil {
			return err
		}

		p.Status = stored.Status
		p.Number = stored.Number
		p.CreatedAt = stored.CreatedAt
		p.CreatedBy = stored.CreatedBy

		if err := p.Validate(ctx); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		return s.record(ctx, p, audit.ActionUpdate, p)
	})
	if err != nil {
		return err
	}

	if err := s.hooks.Run(ctx, domain.AfterUpdate, p); err != nil {
		logger.Warn(ctx, "after-update hook failed", "error", err)
	}
	return nil
}

// Delete removes a purchase that is not completed or cancelled.
func (s *Service) Delete(ctx context.Context, purchaseID id.ID) error {
	if err := s.authorizer.Authorize(ctx, security.PermissionPurchaseDelete); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		stored, err := s.repo.GetForUpdate(ctx, purchaseID)
		if err != nil {
			return mapNotFound(err, purchaseID)
		}
		if err := stored.CanModify(); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, purchaseID); err != nil {
			return err
		}
		return s.record(ctx, stored, audit.ActionDelete, map[string]any{"number": stored.Number})
	})
}

// List retrieves purchases with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Purchase], error) {
	if err := s.authorizer.Authorize(ctx, security.PermissionPurchaseRead); err != nil {
		return domain.ListResult[*Purchase]{}, err
	}
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

// SetStatus performs a plain status write. Writing the current status
// returns the purchase unchanged; COMPLETED must go through Complete.
func (s *Service) SetStatus(ctx context.Context, purchaseID id.ID, target Status) (*Purchase, error) {
	if err := s.authorizer.Authorize(ctx, security.PermissionPurchaseUpdate); err != nil {
		return nil, err
	}

	var out *Purchase
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetForUpdate(ctx, purchaseID)
		if err != nil {
			return mapNotFound(err, purchaseID)
		}
		if p.Status == target {
			out = p
			return nil
		}

		from := p.Status
		if err := p.SetStatus(target); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}

		action := audit.ActionStatus
		if target == StatusCancelled {
			action = audit.ActionCancel
			if err := s.events.Publish(ctx, events.Event{
				AggregateType: "purchase",
				AggregateID:   p.ID,
				EventType:     events.PurchaseCancelled,
				Payload:       map[string]any{"purchaseId": p.ID, "number": p.Number, "from": from},
			}); err != nil {
				return fmt.Errorf("publish cancel event: %w", err)
			}
		}
		if err := s.record(ctx, p, action, map[string]any{"from": from, "to": p.Status}); err != nil {
			return err
		}

		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel moves the purchase to CANCELLED.
func (s *Service) Cancel(ctx context.Context, purchaseID id.ID) (*Purchase, error) {
	return s.SetStatus(ctx, purchaseID, StatusCancelled)
}

// Preview validates raw purchase fields and returns the allocation.
// Nothing is read or written.
func (s *Service) Preview(ctx context.Context, p *Purchase) (costing.Result, error) {
	s.Normalize(p)
	if err := p.Validate(ctx); err != nil {
		return costing.Result{}, err
	}
	return s.engine.Preview(p.AllocationInput()), nil
}

// PreviewStored returns the allocation of the stored purchase.
func (s *Service) PreviewStored(ctx context.Context, purchaseID id.ID) (costing.Result, error) {
	p, err := s.GetByID(ctx, purchaseID)
	if err != nil {
		return costing.Result{}, err
	}
	return s.engine.Preview(p.AllocationInput()), nil
}

// Allocation computes the derived totals of p without validation.
func (s *Service) Allocation(p *Purchase) costing.Result {
	return s.engine.Preview(p.AllocationInput())
}

// Complete finalizes the purchase. Requires permission to update purchases.
func (s *Service) Complete(ctx context.Context, purchaseID id.ID) (*Purchase, error) {
	if err := s.authorizer.Authorize(ctx, security.PermissionPurchaseUpdate); err != nil {
		return nil, err
	}

	p, err := s.completer.Complete(ctx, purchaseID)
	if err != nil {
		if apperror.IsInvalidState(err) || apperror.IsConcurrentModification(err) {
			logger.Warn(ctx, "purchase completion rejected", "purchase_id", purchaseID, "error", err)
		}
		return nil, err
	}

	if err := s.hooks.Run(ctx, domain.AfterComplete, p); err != nil {
		logger.Warn(ctx, "after-complete hook failed", "error", err)
	}
	return p, nil
}

func (s *Service) record(ctx context.Context, p *Purchase, action audit.Action, changes any) error {
	entry, err := audit.NewEntry(ctx, "purchase", p.ID, action, changes)
	if err != nil {
		return err
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}
