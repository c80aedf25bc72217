// Package purchase provides the Purchase document: line items, shared
// acquisition costs, currency, lifecycle status and the completion that
// commits landed costs into inventory.
package purchase

import (
	"context"
	"fmt"
	"time"

	"landedcost/internal/core/apperror"
	"landedcost/internal/core/entity"
	"landedcost/internal/core/id"
	"landedcost/internal/core/types"
	"landedcost/internal/domain/costing"
	"landedcost/internal/domain/fx"
)

// Type distinguishes domestic purchases from imports.
type Type string

const (
	TypeLocal  Type = "local"
	TypeImport Type = "import"
)

// IsValid reports whether t is a known purchase type.
func (t Type) IsValid() bool {
	return t == TypeLocal || t == TypeImport
}

// Purchase is a purchase order document.
type Purchase struct {
	entity.Document

	SupplierID *id.ID `db:"supplier_id" json:"supplierId,omitempty"`

	Type         Type       `db:"purchase_type" json:"type"`
	CurrencyCode string     `db:"currency_code" json:"currencyCode"`
	ExchangeRate types.Rate `db:"exchange_rate" json:"exchangeRate"`

	// Freight, customs, insurance and other costs are in CurrencyCode for an
	// import bought in a foreign currency, otherwise local.
	FreightCost   types.Money `db:"freight_cost" json:"freightCost"`
	CustomsCost   types.Money `db:"customs_cost" json:"customsCost"`
	InsuranceCost types.Money `db:"insurance_cost" json:"insuranceCost"`
	OtherCosts    types.Money `db:"other_costs" json:"otherCosts"`
	// TaxCost is always local.
	TaxCost types.Money `db:"tax_cost" json:"taxCost"`

	Status      Status     `db:"status" json:"status"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`

	Items []Item `db:"-" json:"items"`
}

// Item is a purchase line.
type Item struct {
	LineID    id.ID `db:"line_id" json:"lineId"`
	LineNo    int   `db:"line_no" json:"lineNo"`
	ProductID id.ID `db:"product_id" json:"productId"`
	Quantity  int64 `db:"quantity" json:"quantity"`

	UnitPriceForeign *types.Money `db:"unit_price_foreign" json:"unitPriceForeign,omitempty"`
	UnitPriceLocal   types.Money  `db:"unit_price_local" json:"unitPriceLocal"`
	// LocalOverride is set once the local price is edited directly; the
	// foreign price then no longer drives it.
	LocalOverride bool `db:"local_override" json:"localOverride"`

	// Written at completion.
	DistributedCostLocal *types.Money `db:"distributed_cost_local" json:"distributedCostLocal,omitempty"`
	FinalUnitCostLocal   *types.Money `db:"final_unit_cost_local" json:"finalUnitCostLocal,omitempty"`
	FinalUnitCostForeign *types.Money `db:"final_unit_cost_foreign" json:"finalUnitCostForeign,omitempty"`
}

// New creates a pending local purchase dated now.
func New(localCurrency string) *Purchase {
	return &Purchase{
		Document:     entity.NewDocument(),
		Type:         TypeLocal,
		CurrencyCode: fx.NormalizeCode(localCurrency),
		ExchangeRate: types.One(),
		Status:       StatusPending,
		Items:        make([]Item, 0),
	}
}

// AddItem appends a line priced in local currency.
func (p *Purchase) AddItem(productID id.ID, qty int64, unitPriceLocal types.Money) *Item {
	p.Items = append(p.Items, Item{
		LineID:         id.New(),
		LineNo:         len(p.Items) + 1,
		ProductID:      productID,
		Quantity:       qty,
		UnitPriceLocal: unitPriceLocal,
	})
	return &p.Items[len(p.Items)-1]
}

// AddForeignItem appends a line priced in the purchase currency; the local
// price follows the current exchange rate.
func (p *Purchase) AddForeignItem(productID id.ID, qty int64, unitPriceForeign types.Money) *Item {
	it := p.AddItem(productID, qty, types.Zero())
	it.SetForeignPrice(unitPriceForeign, p.ExchangeRate)
	return it
}

// SetForeignPrice sets the foreign price and re-syncs the local price.
func (it *Item) SetForeignPrice(price types.Money, rate types.Rate) {
	it.UnitPriceForeign = &price
	it.LocalOverride = false
	it.UnitPriceLocal = fx.ToLocal(price, rate)
}

// SetLocalPrice sets the local price directly and breaks the foreign sync.
func (it *Item) SetLocalPrice(price types.Money) {
	it.UnitPriceLocal = price
	if it.UnitPriceForeign != nil {
		it.LocalOverride = true
	}
}

// SetExchangeRate changes the rate and re-syncs every line whose local price
// still follows its foreign price.
func (p *Purchase) SetExchangeRate(rate types.Rate) {
	p.ExchangeRate = rate
	for i := range p.Items {
		it := &p.Items[i]
		if it.UnitPriceForeign != nil && !it.LocalOverride {
			it.UnitPriceLocal = fx.ToLocal(*it.UnitPriceForeign, rate)
		}
	}
}

// SharedCosts returns the cost fields in the engine's shape.
func (p *Purchase) SharedCosts() costing.SharedCosts {
	return costing.SharedCosts{
		Freight:   p.FreightCost,
		Customs:   p.CustomsCost,
		Insurance: p.InsuranceCost,
		Other:     p.OtherCosts,
		Tax:       p.TaxCost,
	}
}

// AllocationInput converts the purchase to engine input.
func (p *Purchase) AllocationInput() costing.Input {
	lines := make([]costing.Line, len(p.Items))
	for i, it := range p.Items {
		lines[i] = costing.Line{
			Quantity:         it.Quantity,
			UnitPriceLocal:   it.UnitPriceLocal,
			UnitPriceForeign: it.UnitPriceForeign,
		}
	}
	return costing.Input{
		Lines:        lines,
		Costs:        p.SharedCosts(),
		CurrencyCode: p.CurrencyCode,
		ExchangeRate: p.ExchangeRate,
		Import:       p.Type == TypeImport,
	}
}

// ApplyAllocation stores the resolved costs onto the items.
func (p *Purchase) ApplyAllocation(res costing.Result) {
	for i := range p.Items {
		if i >= len(res.Lines) {
			break
		}
		l := res.Lines[i]
		distributed := l.DistributedCostLocal
		final := l.FinalUnitCostLocal
		p.Items[i].DistributedCostLocal = &distributed
		p.Items[i].FinalUnitCostLocal = &final
		p.Items[i].FinalUnitCostForeign = nil
		if l.FinalUnitCostForeign != nil {
			foreign := *l.FinalUnitCostForeign
			p.Items[i].FinalUnitCostForeign = &foreign
		}
	}
}

// Validate implements entity.Validatable. Items are optional while editing;
// Complete requires at least one.
func (p *Purchase) Validate(ctx context.Context) error {
	if err := p.Document.Validate(ctx); err != nil {
		return err
	}

	if !p.Type.IsValid() {
		return apperror.NewValidation("purchase type must be local or import").
			WithDetail("field", "type").
			WithDetail("value", string(p.Type))
	}

	if err := fx.ValidateCode(p.CurrencyCode); err != nil {
		return err
	}
	if err := fx.ValidateRate(p.ExchangeRate); err != nil {
		return err
	}
	if !types.FitsScale(p.ExchangeRate, types.RateScale) {
		return errScale("exchangeRate", types.RateScale)
	}

	costs := []struct {
		field string
		value types.Money
	}{
		{"freightCost", p.FreightCost},
		{"customsCost", p.CustomsCost},
		{"insuranceCost", p.InsuranceCost},
		{"otherCosts", p.OtherCosts},
		{"taxCost", p.TaxCost},
	}
	for _, c := range costs {
		if c.value.IsNegative() {
			return apperror.NewValidation("cost must not be negative").
				WithDetail("field", c.field)
		}
		if !types.FitsScale(c.value, types.MoneyScale) {
			return errScale(c.field, types.MoneyScale)
		}
	}

	if !p.Status.IsValid() {
		return apperror.NewValidation("unknown purchase status").
			WithDetail("field", "status")
	}

	for i, it := range p.Items {
		if id.IsNil(it.ProductID) {
			return apperror.NewValidation("product is required").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
		if it.Quantity < 1 {
			return apperror.NewValidation("quantity must be at least 1").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
		if it.UnitPriceLocal.IsNegative() {
			return apperror.NewValidation("local unit price must not be negative").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
		if it.UnitPriceForeign != nil && it.UnitPriceForeign.IsNegative() {
			return apperror.NewValidation("foreign unit price must not be negative").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
		if !types.FitsScale(it.UnitPriceLocal, types.MoneyScale) {
			return errScale("unitPriceLocal", types.MoneyScale).WithDetail("lineNo", i+1)
		}
		if it.UnitPriceForeign != nil && !types.FitsScale(*it.UnitPriceForeign, types.ForeignPriceScale) {
			return errScale("unitPriceForeign", types.ForeignPriceScale).WithDetail("lineNo", i+1)
		}
	}

	return nil
}

func errScale(field string, scale int32) *apperror.AppError {
	return apperror.NewValidation(fmt.Sprintf("%s allows at most %d decimal places", field, scale)).
		WithDetail("field", field).
		WithDetail("scale", scale)
}

// CanModify rejects edits to completed or cancelled purchases.
func (p *Purchase) CanModify() error {
	if p.Status.IsTerminal() {
		return errFinalized(p.Status)
	}
	return nil
}

// SetStatus performs a plain status write. Setting the current status is a no-op.
func (p *Purchase) SetStatus(target Status) error {
	if target == p.Status {
		return nil
	}
	if p.Status.IsTerminal() {
		return errFinalized(p.Status)
	}
	if target == StatusCompleted {
		return apperror.NewInvalidState("use complete to finalize a purchase").
			WithDetail("status", string(p.Status))
	}
	if target == StatusCancelled {
		return p.Cancel()
	}
	if !p.Status.CanTransitionTo(target) {
		return apperror.NewInvalidState("illegal status transition").
			WithDetail("from", string(p.Status)).
			WithDetail("to", string(target))
	}
	p.Status = target
	return nil
}

// CheckCompletable verifies the Complete preconditions.
func (p *Purchase) CheckCompletable() error {
	if p.Status.IsTerminal() {
		return errFinalized(p.Status)
	}
	if len(p.Items) == 0 {
		return apperror.NewInvalidState("purchase has no items")
	}
	return nil
}

// MarkCompleted sets the terminal COMPLETED status.
func (p *Purchase) MarkCompleted(at time.Time) {
	p.Status = StatusCompleted
	p.CompletedAt = &at
}

// Cancel moves a non-terminal purchase to CANCELLED.
func (p *Purchase) Cancel() error {
	if p.Status.IsTerminal() {
		return errFinalized(p.Status)
	}
	now := time.Now().UTC()
	p.Status = StatusCancelled
	p.CancelledAt = &now
	return nil
}

// Clone returns a deep copy.
func (p *Purchase) Clone() *Purchase {
	c := *p
	if p.SupplierID != nil {
		s := *p.SupplierID
		c.SupplierID = &s
	}
	c.CompletedAt = clonePtr(p.CompletedAt)
	c.CancelledAt = clonePtr(p.CancelledAt)
	c.Items = make([]Item, len(p.Items))
	for i, it := range p.Items {
		it.UnitPriceForeign = clonePtr(it.UnitPriceForeign)
		it.DistributedCostLocal = clonePtr(it.DistributedCostLocal)
		it.FinalUnitCostLocal = clonePtr(it.FinalUnitCostLocal)
		it.FinalUnitCostForeign = clonePtr(it.FinalUnitCostForeign)
		c.Items[i] = it
	}
	return &c
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// GetDocumentType names the recorder type used in registers and audit.
func (p *Purchase) GetDocumentType() string {
	return "purchase"
}
