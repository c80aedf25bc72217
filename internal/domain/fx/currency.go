// Package fx converts purchase-currency amounts into the bookkeeping (local) currency.
//
// All functions are pure. The exchange rate is scoped to a single purchase and
// expressed as local units per one foreign unit.
package fx

import (
	"regexp"
	"strings"

	"landedcost/internal/core/apperror"
	"landedcost/internal/core/types"
)

// DefaultLocalCurrency is used when configuration does not name one.
const DefaultLocalCurrency = "ARS"

var isoCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// NormalizeCode trims and upper-cases a currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCode checks that code is a 3-letter ISO 4217 alphabetic code.
func ValidateCode(code string) error {
	if !isoCodeRe.MatchString(code) {
		return apperror.NewValidation("currency code must be 3 uppercase letters").
			WithDetail("field", "currencyCode").
			WithDetail("value", code)
	}
	return nil
}

// ValidateRate rejects zero and negative rates.
func ValidateRate(rate types.Rate) error {
	if !rate.IsPositive() {
		return apperror.NewValidation("exchange rate must be greater than zero").
			WithDetail("field", "exchangeRate").
			WithDetail("value", rate.String())
	}
	return nil
}

// Policy knows which currency is local.
type Policy struct {
	LocalCurrency string
}

// NewPolicy returns a Policy for the given local currency code.
func NewPolicy(local string) Policy {
	local = NormalizeCode(local)
	if local == "" {
		local = DefaultLocalCurrency
	}
	return Policy{LocalCurrency: local}
}

// IsLocal reports whether code is the bookkeeping currency. An empty code
// means local.
func (p Policy) IsLocal(code string) bool {
	code = NormalizeCode(code)
	return code == "" || code == p.LocalCurrency
}

// EffectiveCode normalises code and maps empty to the local currency.
func (p Policy) EffectiveCode(code string) string {
	code = NormalizeCode(code)
	if code == "" {
		return p.LocalCurrency
	}
	return code
}

// EffectiveRate returns 1 for the local currency regardless of the stored rate.
func (p Policy) EffectiveRate(code string, stored types.Rate) types.Rate {
	if p.IsLocal(code) {
		return types.One()
	}
	return stored
}

// Convert multiplies at full precision. Callers round at output.
func Convert(amountForeign types.Money, rate types.Rate) types.Money {
	return amountForeign.Mul(rate)
}

// ToLocal converts a foreign amount and rounds to 2 decimals.
func ToLocal(amountForeign types.Money, rate types.Rate) types.Money {
	return types.Round2(Convert(amountForeign, rate))
}

// ToForeign is the inverse of ToLocal. rate must be positive.
func ToForeign(amountLocal types.Money, rate types.Rate) types.Money {
	return types.Round2(amountLocal.Div(rate))
}
