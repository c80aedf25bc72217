package costing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"landedcost/internal/core/types"
)

// ProductCostPolicy decides the product reference cost after a receipt.
type ProductCostPolicy string

const (
	// LastCost overwrites the reference cost with the latest final unit cost.
	LastCost ProductCostPolicy = "last_cost"
	// WeightedAverage blends existing stock value with the received value.
	WeightedAverage ProductCostPolicy = "weighted_average"
)

// ParseProductCostPolicy accepts "last_cost" and "weighted_average". Empty means LastCost.
func ParseProductCostPolicy(s string) (ProductCostPolicy, error) {
	switch ProductCostPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", LastCost:
		return LastCost, nil
	case WeightedAverage:
		return WeightedAverage, nil
	default:
		return "", fmt.Errorf("unknown product cost policy %q", s)
	}
}

// NextCost returns the product cost after receiving qty units at unitCost.
// Negative stock (oversold) is treated as zero when averaging.
func (p ProductCostPolicy) NextCost(stock int64, cost types.Money, qty int64, unitCost types.Money) types.Money {
	if p != WeightedAverage || stock <= 0 {
		return types.Round2(unitCost)
	}

	oldValue := cost.Mul(decimal.NewFromInt(stock))
	newValue := unitCost.Mul(decimal.NewFromInt(qty))
	total := decimal.NewFromInt(stock + qty)
	if !total.IsPositive() {
		return types.Round2(unitCost)
	}
	return types.Round2(oldValue.Add(newValue).Div(total))
}
