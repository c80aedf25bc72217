package fx

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"landedcost/internal/core/apperror"
	"landedcost/internal/core/types"
)

func TestPolicy_IsLocal(t *testing.T) {
	p := NewPolicy("ars")

	assert.Equal(t, "ARS", p.LocalCurrency)
	assert.True(t, p.IsLocal("ARS"))
	assert.True(t, p.IsLocal(" ars "))
	assert.True(t, p.IsLocal(""))
	assert.False(t, p.IsLocal("USD"))
}

func TestNewPolicy_Default(t *testing.T) {
	assert.Equal(t, DefaultLocalCurrency, NewPolicy("").LocalCurrency)
}

func TestPolicy_EffectiveRate_LocalIgnoresStoredRate(t *testing.T) {
	p := NewPolicy("ARS")

	assert.True(t, p.EffectiveRate("ARS", types.MustMoney("950")).Equal(decimal.NewFromInt(1)))
	assert.True(t, p.EffectiveRate("USD", types.MustMoney("950")).Equal(types.MustMoney("950")))
}

func TestToLocal(t *testing.T) {
	tests := []struct {
		amount, rate, want string
	}{
		{"10", "1000", "10000.00"},
		{"5", "1000", "5000.00"},
		{"1.235", "1", "1.24"},
		{"3.333", "3", "10.00"},
		{"0", "1234.5678", "0.00"},
	}

	for _, tt := range tests {
		got := ToLocal(types.MustMoney(tt.amount), types.MustMoney(tt.rate))
		assert.Equal(t, tt.want, got.StringFixed(2), "%s * %s", tt.amount, tt.rate)
	}
}

func TestRoundTrip(t *testing.T) {
	rates := []string{"1", "1000", "1234.5678", "3.3333"}
	amounts := []string{"0.01", "10", "99.99", "12345.67"}

	for _, r := range rates {
		rate := types.MustMoney(r)
		for _, a := range amounts {
			amount := types.MustMoney(a)
			back := ToLocal(amount, rate).Div(rate)
			assert.True(t, back.Sub(amount).Abs().LessThanOrEqual(types.MustMoney("0.01")),
				"round trip %s at %s gave %s", a, r, back)
		}
	}
}

func TestValidateRate(t *testing.T) {
	assert.NoError(t, ValidateRate(types.MustMoney("0.5")))
	assert.True(t, apperror.IsValidation(ValidateRate(types.Zero())))
	assert.True(t, apperror.IsValidation(ValidateRate(types.MustMoney("-1"))))
}

func TestValidateCode(t *testing.T) {
	assert.NoError(t, ValidateCode("USD"))
	assert.Error(t, ValidateCode("usd"))
	assert.Error(t, ValidateCode("US"))
	assert.Error(t, ValidateCode("USDT"))
}
