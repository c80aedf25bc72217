// Package costing distributes shared acquisition costs over purchase lines.
//
// The engine is a total function: every input produces a result, including the
// all-zero subtotal case where nothing is distributed. Input validation belongs
// to the purchase aggregate.
package costing

import (
	"landedcost/internal/core/types"
	"landedcost/internal/domain/fx"
)

// SharedCosts are the purchase-level acquisition costs as entered.
type SharedCosts struct {
	Freight   types.Money
	Customs   types.Money
	Insurance types.Money
	Other     types.Money
	// Tax is always local currency.
	Tax types.Money
}

// Profile partitions shared costs into foreign and local components once per purchase.
type Profile struct {
	CurrencyCode string
	Rate         types.Rate
	// Foreign is true when the purchase currency is not the local one.
	Foreign bool

	ForeignComponents []types.Money
	LocalComponents   []types.Money
}

// NewProfile builds the cost profile. Freight, customs, insurance and other
// costs are foreign only for an import purchased in a foreign currency.
func NewProfile(policy fx.Policy, currencyCode string, rate types.Rate, costs SharedCosts, isImport bool) Profile {
	foreign := !policy.IsLocal(currencyCode)
	p := Profile{
		CurrencyCode: policy.EffectiveCode(currencyCode),
		Rate:         policy.EffectiveRate(currencyCode, rate),
		Foreign:      foreign,
	}

	shipping := []types.Money{costs.Freight, costs.Customs, costs.Insurance, costs.Other}
	if foreign && isImport {
		p.ForeignComponents = shipping
		p.LocalComponents = []types.Money{costs.Tax}
	} else {
		p.LocalComponents = append(shipping, costs.Tax)
	}
	return p
}

// TotalForeign is the sum of foreign components in purchase currency.
func (p Profile) TotalForeign() types.Money {
	return types.Sum(p.ForeignComponents...)
}

// TotalForeignInLocal converts TotalForeign at the purchase rate, unrounded.
func (p Profile) TotalForeignInLocal() types.Money {
	return fx.Convert(p.TotalForeign(), p.Rate)
}

// TotalLocal is the sum of local components.
func (p Profile) TotalLocal() types.Money {
	return types.Sum(p.LocalComponents...)
}

// TotalInLocal is every shared cost expressed in local currency, unrounded.
func (p Profile) TotalInLocal() types.Money {
	return p.TotalForeignInLocal().Add(p.TotalLocal())
}
