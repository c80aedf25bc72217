// Package types provides the numeric value types shared by costing and persistence.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// Rate is an exchange rate: local currency units per one foreign unit.
type Rate = decimal.Decimal

// Fractional digits accepted on input and kept in storage.
const (
	// MoneyScale applies to local amounts and shared costs.
	MoneyScale int32 = 2
	// ForeignPriceScale applies to unit prices in the purchase currency.
	ForeignPriceScale int32 = 4
	// RateScale applies to exchange rates.
	RateScale int32 = 8
)

// NewMoneyFromString creates a Money value from a string.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// One is the identity exchange rate.
func One() Rate {
	return decimal.NewFromInt(1)
}

// Round2 rounds half away from zero to MoneyScale digits.
func Round2(m Money) Money {
	return m.Round(MoneyScale)
}

// Sum adds values at full precision.
func Sum(values ...Money) Money {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// RoundPtr rounds an optional value, preserving nil.
func RoundPtr(m *Money) *Money {
	if m == nil {
		return nil
	}
	r := Round2(*m)
	return &r
}

// FitsScale reports whether v has at most scale significant fractional digits.
// Trailing zeros do not count: 1.500 fits scale 1.
func FitsScale(v decimal.Decimal, scale int32) bool {
	return v.Equal(v.Round(scale))
}
