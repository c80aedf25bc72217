package dto

import (
	"strings"
	"time"

	"landedcost/internal/core/apperror"
	"landedcost/internal/core/id"
	"landedcost/internal/core/types"
	"landedcost/internal/domain/costing"
	"landedcost/internal/domain/documents/purchase"
)

// --- Request DTOs ---

// PurchaseRequest carries the editable fields of a purchase. It is used for
// create and preview; UpdatePurchaseRequest adds the version.
type PurchaseRequest struct {
	Number       string      `json:"number,omitempty" binding:"omitempty,max=50"`
	Date         *time.Time  `json:"date,omitempty"`
	SupplierID   *string     `json:"supplierId,omitempty" binding:"omitempty,uuid"`
	Type         string      `json:"type,omitempty" binding:"omitempty,oneof=local import"`
	CurrencyCode string      `json:"currencyCode,omitempty" binding:"omitempty,currency"`
	ExchangeRate *types.Rate `json:"exchangeRate,omitempty" binding:"omitempty,positive"`

	FreightCost   *types.Money `json:"freightCost,omitempty" binding:"omitempty,nonneg"`
	CustomsCost   *types.Money `json:"customsCost,omitempty" binding:"omitempty,nonneg"`
	InsuranceCost *types.Money `json:"insuranceCost,omitempty" binding:"omitempty,nonneg"`
	OtherCosts    *types.Money `json:"otherCosts,omitempty" binding:"omitempty,nonneg"`
	TaxCost       *types.Money `json:"taxCost,omitempty" binding:"omitempty,nonneg"`

	Comment string                `json:"comment,omitempty" binding:"max=1000"`
	Items   []PurchaseItemRequest `json:"items" binding:"dive"`
}

// PurchaseItemRequest is a line in a purchase request. When a foreign price is
// given the local price follows it unless LocalOverride is set.
type PurchaseItemRequest struct {
	// ID names an existing line to keep on update. Omitted for new lines.
	ID               *string      `json:"id,omitempty" binding:"omitempty,uuid"`
	ProductID        string       `json:"productId" binding:"required,uuid"`
	Quantity         int64        `json:"quantity" binding:"required,min=1"`
	UnitPriceLocal   *types.Money `json:"unitPriceLocal,omitempty" binding:"omitempty,nonneg"`
	UnitPriceForeign *types.Money `json:"unitPriceForeign,omitempty" binding:"omitempty,nonneg"`
	LocalOverride    bool         `json:"localOverride,omitempty"`
}

// ToEntity builds a purchase from the request.
func (r *PurchaseRequest) ToEntity() (*purchase.Purchase, error) {
	p := purchase.New("")
	if err := r.ApplyTo(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ApplyTo replaces the editable fields of p. Items are rebuilt from the
// request; a line that carries the id of one of p's current lines keeps it.
func (r *PurchaseRequest) ApplyTo(p *purchase.Purchase) error {
	if r.Number != "" {
		p.Number = strings.TrimSpace(r.Number)
	}
	if r.Date != nil {
		p.Date = r.Date.UTC()
	}

	p.SupplierID = nil
	if r.SupplierID != nil {
		supplierID, err := id.Parse(*r.SupplierID)
		if err != nil {
			return apperror.NewValidation("invalid supplier id").WithDetail("field", "supplierId")
		}
		p.SupplierID = &supplierID
	}

	p.Type = purchase.TypeLocal
	if r.Type != "" {
		p.Type = purchase.Type(r.Type)
	}
	p.CurrencyCode = strings.ToUpper(strings.TrimSpace(r.CurrencyCode))
	// Left at zero when omitted: local purchases get 1 during normalization,
	// foreign ones are rejected.
	p.ExchangeRate = types.Zero()
	if r.ExchangeRate != nil {
		p.ExchangeRate = *r.ExchangeRate
	}

	p.FreightCost = moneyOrZero(r.FreightCost)
	p.CustomsCost = moneyOrZero(r.CustomsCost)
	p.InsuranceCost = moneyOrZero(r.InsuranceCost)
	p.OtherCosts = moneyOrZero(r.OtherCosts)
	p.TaxCost = moneyOrZero(r.TaxCost)
	p.Comment = strings.TrimSpace(r.Comment)

	existing := make(map[id.ID]bool, len(p.Items))
	for _, it := range p.Items {
		existing[it.LineID] = true
	}

	p.Items = make([]purchase.Item, 0, len(r.Items))
	for i, line := range r.Items {
		productID, err := id.Parse(line.ProductID)
		if err != nil {
			return apperror.NewValidation("invalid product id").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}

		var it *purchase.Item
		switch {
		case line.UnitPriceForeign != nil:
			it = p.AddForeignItem(productID, line.Quantity, *line.UnitPriceForeign)
			if line.LocalOverride && line.UnitPriceLocal != nil {
				it.SetLocalPrice(*line.UnitPriceLocal)
			}
		case line.UnitPriceLocal != nil:
			it = p.AddItem(productID, line.Quantity, *line.UnitPriceLocal)
		default:
			return apperror.NewValidation("unit price is required").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}

		if line.ID != nil {
			lineID, err := id.Parse(*line.ID)
			if err != nil || !existing[lineID] {
				return apperror.NewValidation("unknown line id").
					WithDetail("field", "items").
					WithDetail("lineNo", i+1)
			}
			// Each stored line can be kept once.
			delete(existing, lineID)
			it.LineID = lineID
		}
	}
	return nil
}

func moneyOrZero(m *types.Money) types.Money {
	if m == nil {
		return types.Zero()
	}
	return *m
}

// UpdatePurchaseRequest replaces the editable fields of a stored purchase.
type UpdatePurchaseRequest struct {
	PurchaseRequest
	Version int `json:"version" binding:"required,min=1"`
}

// SetStatusRequest is the body of POST /purchases/:id/status.
type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// PurchaseListQuery adds purchase filters to ListQuery.
type PurchaseListQuery struct {
	ListQuery
	Status     []string   `form:"status"`
	SupplierID string     `form:"supplierId" binding:"omitempty,uuid"`
	DateFrom   *time.Time `form:"dateFrom" time_format:"2006-01-02"`
	DateTo     *time.Time `form:"dateTo" time_format:"2006-01-02"`
}

// ToFilter converts the query to a purchase filter.
func (q PurchaseListQuery) ToFilter() (purchase.ListFilter, error) {
	f := purchase.ListFilter{
		ListFilter: q.ListQuery.ToFilter(),
		DateFrom:   q.DateFrom,
		DateTo:     q.DateTo,
	}
	for _, raw := range q.Status {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			st, err := purchase.ParseStatus(part)
			if err != nil {
				return purchase.ListFilter{}, err
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	if q.SupplierID != "" {
		supplierID, err := id.Parse(q.SupplierID)
		if err != nil {
			return purchase.ListFilter{}, apperror.NewValidation("invalid supplier id")
		}
		f.SupplierID = &supplierID
	}
	return f, nil
}

// --- Response DTOs ---

// PurchaseResponse is the API representation of a purchase.
type PurchaseResponse struct {
	ID           string     `json:"id"`
	Number       string     `json:"number"`
	Date         time.Time  `json:"date"`
	SupplierID   *string    `json:"supplierId,omitempty"`
	Type         string     `json:"type"`
	CurrencyCode string     `json:"currencyCode"`
	ExchangeRate types.Rate `json:"exchangeRate"`

	FreightCost   types.Money `json:"freightCost"`
	CustomsCost   types.Money `json:"customsCost"`
	InsuranceCost types.Money `json:"insuranceCost"`
	OtherCosts    types.Money `json:"otherCosts"`
	TaxCost       types.Money `json:"taxCost"`

	Status      string     `json:"status"`
	Comment     string     `json:"comment,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`

	Totals PurchaseTotals         `json:"totals"`
	Items  []PurchaseItemResponse `json:"items"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy string    `json:"createdBy,omitempty"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
}

// PurchaseTotals are the derived totals of a purchase.
type PurchaseTotals struct {
	SubtotalLocal     types.Money  `json:"subtotalLocal"`
	SubtotalForeign   *types.Money `json:"subtotalForeign"`
	TotalCostsForeign types.Money  `json:"totalCostsForeign"`
	TotalCostsLocal   types.Money  `json:"totalCostsLocal"`
	TotalCostsInLocal types.Money  `json:"totalCostsInLocal"`
	GrandTotalLocal   types.Money  `json:"grandTotalLocal"`
}

// PurchaseItemResponse is a purchase line.
type PurchaseItemResponse struct {
	ID                   string       `json:"id"`
	LineNo               int          `json:"lineNo"`
	ProductID            string       `json:"productId"`
	Quantity             int64        `json:"quantity"`
	UnitPriceForeign     *types.Money `json:"unitPriceForeign,omitempty"`
	UnitPriceLocal       types.Money  `json:"unitPriceLocal"`
	LocalOverride        bool         `json:"localOverride"`
	DistributedCostLocal *types.Money `json:"distributedCostLocal,omitempty"`
	FinalUnitCostLocal   *types.Money `json:"finalUnitCostLocal,omitempty"`
	FinalUnitCostForeign *types.Money `json:"finalUnitCostForeign,omitempty"`
}

// FromPurchase maps a purchase and its allocation to the response.
func FromPurchase(p *purchase.Purchase, alloc costing.Result) PurchaseResponse {
	resp := PurchaseResponse{
		ID:            p.ID.String(),
		Number:        p.Number,
		Date:          p.Date,
		Type:          string(p.Type),
		CurrencyCode:  p.CurrencyCode,
		ExchangeRate:  p.ExchangeRate,
		FreightCost:   p.FreightCost,
		CustomsCost:   p.CustomsCost,
		InsuranceCost: p.InsuranceCost,
		OtherCosts:    p.OtherCosts,
		TaxCost:       p.TaxCost,
		Status:        string(p.Status),
		Comment:       p.Comment,
		CompletedAt:   p.CompletedAt,
		CancelledAt:   p.CancelledAt,
		Totals: PurchaseTotals{
			SubtotalLocal:     alloc.SubtotalLocal,
			SubtotalForeign:   alloc.SubtotalForeign,
			TotalCostsForeign: alloc.TotalCostsForeign,
			TotalCostsLocal:   alloc.TotalCostsLocal,
			TotalCostsInLocal: alloc.TotalCostsInLocal,
			GrandTotalLocal:   alloc.GrandTotalLocal,
		},
		Items:     make([]PurchaseItemResponse, 0, len(p.Items)),
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		CreatedBy: p.CreatedBy,
		UpdatedBy: p.UpdatedBy,
	}
	if p.SupplierID != nil {
		s := p.SupplierID.String()
		resp.SupplierID = &s
	}

	for _, it := range p.Items {
		resp.Items = append(resp.Items, PurchaseItemResponse{
			ID:                   it.LineID.String(),
			LineNo:               it.LineNo,
			ProductID:            it.ProductID.String(),
			Quantity:             it.Quantity,
			UnitPriceForeign:     it.UnitPriceForeign,
			UnitPriceLocal:       it.UnitPriceLocal,
			LocalOverride:        it.LocalOverride,
			DistributedCostLocal: it.DistributedCostLocal,
			FinalUnitCostLocal:   it.FinalUnitCostLocal,
			FinalUnitCostForeign: it.FinalUnitCostForeign,
		})
	}
	return resp
}

// FromPurchaseSummary maps a purchase for list responses: header and
// totals, no lines.
func FromPurchaseSummary(p *purchase.Purchase, alloc costing.Result) PurchaseResponse {
	resp := FromPurchase(p, alloc)
	resp.Items = nil
	return resp
}
