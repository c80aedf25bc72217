package purchase

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"landedcost/internal/core/apperror"
	"landedcost/internal/core/entity"
	"landedcost/internal/core/id"
	"landedcost/internal/core/tx"
	"landedcost/internal/core/types"
	"landedcost/internal/domain/audit"
	"landedcost/internal/domain/catalogs/product"
	"landedcost/internal/domain/costing"
	"landedcost/internal/domain/events"
	"landedcost/pkg/logger"
)

var tracer = otel.Tracer("landedcost/purchase")

// StockRecorder appends receipt movements to the stock register.
type StockRecorder interface {
	RecordReceipts(ctx context.Context, movements []entity.StockMovement) error
}

// CompleterConfig wires the completion coordinator.
type CompleterConfig struct {
	Purchases  Repository
	Products   product.Repository
	Stock      StockRecorder
	TxManager  tx.Manager
	Engine     *costing.Engine
	CostPolicy costing.ProductCostPolicy

	// Optional.
	Locker Locker
	Audit  audit.Recorder
	Events events.Publisher
}

// Completer performs the Complete transition as one unit of work.
type Completer struct {
	purchases  Repository
	products   product.Repository
	stock      StockRecorder
	txManager  tx.Manager
	engine     *costing.Engine
	costPolicy costing.ProductCostPolicy
	locker     Locker
	audit      audit.Recorder
	events     events.Publisher
	now        func() time.Time
}

// NewCompleter creates a completion coordinator.
func NewCompleter(cfg CompleterConfig) *Completer {
	c := &Completer{
		purchases:  cfg.Purchases,
		products:   cfg.Products,
		stock:      cfg.Stock,
		txManager:  cfg.TxManager,
		engine:     cfg.Engine,
		costPolicy: cfg.CostPolicy,
		locker:     cfg.Locker,
		audit:      cfg.Audit,
		events:     cfg.Events,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if c.costPolicy == "" {
		c.costPolicy = costing.LastCost
	}
	if c.locker == nil {
		c.locker = NoopLocker{}
	}
	if c.audit == nil {
		c.audit = audit.Nop{}
	}
	if c.events == nil {
		c.events = nopPublisher{}
	}
	return c
}

// CompletedPayload is the body of the purchase.completed event.
type CompletedPayload struct {
	PurchaseID      id.ID           `json:"purchaseId"`
	Number          string          `json:"number"`
	CurrencyCode    string          `json:"currencyCode"`
	GrandTotalLocal types.Money     `json:"grandTotalLocal"`
	Lines           []CompletedLine `json:"lines"`
	CompletedAt     time.Time       `json:"completedAt"`
}

// CompletedLine reports what one line did to inventory.
type CompletedLine struct {
	ProductID          id.ID       `json:"productId"`
	Quantity           int64       `json:"quantity"`
	FinalUnitCostLocal types.Money `json:"finalUnitCostLocal"`
	ProductCost        types.Money `json:"productCost"`
	ProductStock       int64       `json:"productStock"`
}

// Complete recomputes the allocation, writes final item costs, receives
// stock at the new unit cost and marks the purchase COMPLETED. Either all of
// it commits or none of it does.
func (c *Completer) Complete(ctx context.Context, purchaseID id.ID) (*Purchase, error) {
	ctx, span := tracer.Start(ctx, "purchase.complete",
		trace.WithAttributes(attribute.String("purchase.id", purchaseID.String())))
	defer span.End()

	release, err := c.locker.Lock(ctx, "purchase:complete:"+purchaseID.String())
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := c.purchases.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, mapNotFound(err, purchaseID)
	}
	if err := current.CheckCompletable(); err != nil {
		return nil, err
	}

	var (
		completed *Purchase
		result    costing.Result
	)
	err = c.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := c.purchases.GetForUpdate(ctx, purchaseID)
		if err != nil {
			return mapNotFound(err, purchaseID)
		}
		if p.Status.IsTerminal() {
			return apperror.NewConcurrentModification("purchase", purchaseID).
				WithDetail("status", string(p.Status))
		}
		if err := p.CheckCompletable(); err != nil {
			return err
		}

		result = c.engine.Preview(p.AllocationInput())
		p.ApplyAllocation(result)

		at := c.now()
		lines, err := c.receive(ctx, p, result, at)
		if err != nil {
			return err
		}

		p.MarkCompleted(at)
		if err := c.purchases.Update(ctx, p); err != nil {
			return err
		}

		entry, err := audit.NewEntry(ctx, "purchase", p.ID, audit.ActionComplete, map[string]any{
			"status":     StatusCompleted,
			"allocation": result,
			"products":   lines,
		})
		if err != nil {
			return err
		}
		if err := c.audit.Record(ctx, entry); err != nil {
			return fmt.Errorf("record audit: %w", err)
		}

		if err := c.events.Publish(ctx, events.Event{
			AggregateType: "purchase",
			AggregateID:   p.ID,
			EventType:     events.PurchaseCompleted,
			Payload: CompletedPayload{
				PurchaseID:      p.ID,
				Number:          p.Number,
				CurrencyCode:    p.CurrencyCode,
				GrandTotalLocal: result.GrandTotalLocal,
				Lines:           lines,
				CompletedAt:     at,
			},
		}); err != nil {
			return fmt.Errorf("publish completion event: %w", err)
		}

		completed = p
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "complete failed")
		return nil, err
	}

	logger.Info(ctx, "purchase completed",
		"purchase_id", completed.ID,
		"number", completed.Number,
		"items", len(completed.Items),
		"grand_total_local", result.GrandTotalLocal.StringFixed(2),
		"rounding", result.Rounding,
	)

	return completed, nil
}

// receive updates stock and cost of every product on the purchase and
// writes the matching register movements.
func (c *Completer) receive(ctx context.Context, p *Purchase, res costing.Result, at time.Time) ([]CompletedLine, error) {
	lines := make([]CompletedLine, 0, len(p.Items))
	movements := make([]entity.StockMovement, 0, len(p.Items))

	for i, it := range p.Items {
		prod, err := c.products.GetForUpdate(ctx, it.ProductID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return nil, apperror.NewProductNotFound(it.ProductID).WithDetail("lineNo", it.LineNo)
			}
			return nil, fmt.Errorf("lock product %s: %w", it.ProductID, err)
		}

		unitCost := res.Lines[i].FinalUnitCostLocal
		prod.Receive(it.Quantity, c.costPolicy.NextCost(prod.Stock, prod.Cost, it.Quantity, unitCost))

		if err := c.products.UpdateStockAndCost(ctx, prod); err != nil {
			return nil, fmt.Errorf("update product %s: %w", it.ProductID, err)
		}

		movements = append(movements,
			entity.NewStockReceipt(p.ID, p.GetDocumentType(), at, it.ProductID, it.Quantity, unitCost))
		lines = append(lines, CompletedLine{
			ProductID:          it.ProductID,
			Quantity:           it.Quantity,
			FinalUnitCostLocal: unitCost,
			ProductCost:        prod.Cost,
			ProductStock:       prod.Stock,
		})
	}

	if err := c.stock.RecordReceipts(ctx, movements); err != nil {
		return nil, fmt.Errorf("record stock receipts: %w", err)
	}
	return lines, nil
}

func mapNotFound(err error, purchaseID id.ID) error {
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound("purchase", purchaseID)
	}
	return err
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, events.Event) error { return nil }
