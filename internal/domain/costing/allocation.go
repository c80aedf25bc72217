package costing

import (
	"github.com/shopspring/decimal"

	"landedcost/internal/core/types"
	"landedcost/internal/domain/fx"
)

// Line is one purchase line as seen by the engine.
type Line struct {
	Quantity         int64
	UnitPriceLocal   types.Money
	UnitPriceForeign *types.Money
}

func (l Line) subtotal() types.Money {
	return l.UnitPriceLocal.Mul(decimal.NewFromInt(l.Quantity))
}

// LineResult is the resolved cost of one line. Monetary fields are rounded to 2 decimals.
type LineResult struct {
	Index          int         `json:"index"`
	Quantity       int64       `json:"quantity"`
	UnitPriceLocal types.Money `json:"unitPriceLocal"`
	SubtotalLocal  types.Money `json:"subtotalLocal"`
	Weight         types.Money `json:"weight"`

	DistributedCostLocal types.Money  `json:"distributedCostLocal"`
	FinalUnitCostLocal   types.Money  `json:"finalUnitCostLocal"`
	FinalUnitCostForeign *types.Money `json:"finalUnitCostForeign,omitempty"`
	FinalTotalCostLocal  types.Money  `json:"finalTotalCostLocal"`
}

// Result is the fully resolved allocation of a purchase.
type Result struct {
	CurrencyCode string         `json:"currencyCode"`
	ExchangeRate types.Rate     `json:"exchangeRate"`
	Foreign      bool           `json:"foreign"`
	Rounding     RoundingPolicy `json:"rounding"`

	SubtotalLocal   types.Money  `json:"subtotalLocal"`
	SubtotalForeign *types.Money `json:"subtotalForeign"`

	TotalCostsForeign        types.Money `json:"totalCostsForeign"`
	TotalCostsForeignInLocal types.Money `json:"totalCostsForeignInLocal"`
	TotalCostsLocal          types.Money `json:"totalCostsLocal"`
	TotalCostsInLocal        types.Money `json:"totalCostsInLocal"`
	GrandTotalLocal          types.Money `json:"grandTotalLocal"`

	Lines []LineResult `json:"lines"`
}

// DistributedTotal sums the rounded distributed costs of every line.
func (r Result) DistributedTotal() types.Money {
	total := decimal.Zero
	for _, l := range r.Lines {
		total = total.Add(l.DistributedCostLocal)
	}
	return total
}

// Allocate distributes profile costs over lines proportionally to each line's
// share of the local subtotal.
func Allocate(lines []Line, profile Profile, rounding RoundingPolicy) Result {
	if rounding == "" {
		rounding = RoundAtOutput
	}

	costsInLocal := profile.TotalInLocal()
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.subtotal())
	}

	res := Result{
		CurrencyCode:             profile.CurrencyCode,
		ExchangeRate:             profile.Rate,
		Foreign:                  profile.Foreign,
		Rounding:                 rounding,
		SubtotalLocal:            types.Round2(subtotal),
		SubtotalForeign:          types.RoundPtr(subtotalForeign(lines, profile.Foreign)),
		TotalCostsForeign:        types.Round2(profile.TotalForeign()),
		TotalCostsForeignInLocal: types.Round2(profile.TotalForeignInLocal()),
		TotalCostsLocal:          types.Round2(profile.TotalLocal()),
		TotalCostsInLocal:        types.Round2(costsInLocal),
		Lines:                    make([]LineResult, len(lines)),
	}
	res.GrandTotalLocal = res.SubtotalLocal.Add(res.TotalCostsInLocal)

	// Exact distributed cost per line, kept for the remainder pass.
	exact := make([]types.Money, len(lines))
	for i, l := range lines {
		itemSubtotal := l.subtotal()
		weight := decimal.Zero
		if subtotal.IsPositive() {
			weight = itemSubtotal.Div(subtotal)
			exact[i] = itemSubtotal.Mul(costsInLocal).Div(subtotal)
		}

		res.Lines[i] = LineResult{
			Index:                i,
			Quantity:             l.Quantity,
			UnitPriceLocal:       types.Round2(l.UnitPriceLocal),
			SubtotalLocal:        types.Round2(itemSubtotal),
			Weight:               weight.Round(6),
			DistributedCostLocal: types.Round2(exact[i]),
		}
		res.Lines[i].resolveFinal(l, exact[i], profile)
	}

	if rounding == AllocateRemainder && subtotal.IsPositive() && len(lines) > 0 {
		remainder := res.TotalCostsInLocal.Sub(res.DistributedTotal())
		if !remainder.IsZero() {
			i := largestLine(lines)
			adjusted := res.Lines[i].DistributedCostLocal.Add(remainder)
			res.Lines[i].DistributedCostLocal = adjusted
			res.Lines[i].resolveFinal(lines[i], adjusted, profile)
		}
	}

	return res
}

// resolveFinal derives final unit and total cost from a distributed amount.
func (r *LineResult) resolveFinal(l Line, distributed types.Money, profile Profile) {
	unit := l.UnitPriceLocal
	if l.Quantity > 0 {
		unit = unit.Add(distributed.Div(decimal.NewFromInt(l.Quantity)))
	}
	r.FinalUnitCostLocal = types.Round2(unit)
	r.FinalTotalCostLocal = types.Round2(l.subtotal().Add(distributed))

	r.FinalUnitCostForeign = nil
	if profile.Foreign && profile.Rate.IsPositive() {
		v := fx.ToForeign(unit, profile.Rate)
		r.FinalUnitCostForeign = &v
	}
}

// subtotalForeign is defined only when the purchase is foreign and every line
// carries a foreign price.
func subtotalForeign(lines []Line, foreign bool) *types.Money {
	if !foreign || len(lines) == 0 {
		return nil
	}
	total := decimal.Zero
	for _, l := range lines {
		if l.UnitPriceForeign == nil {
			return nil
		}
		total = total.Add(l.UnitPriceForeign.Mul(decimal.NewFromInt(l.Quantity)))
	}
	return &total
}

func largestLine(lines []Line) int {
	best := 0
	for i := 1; i < len(lines); i++ {
		if lines[i].subtotal().GreaterThanOrEqual(lines[best].subtotal()) {
			best = i
		}
	}
	return best
}
