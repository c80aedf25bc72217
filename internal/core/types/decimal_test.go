package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2_HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "0.13", Round2(MustMoney("0.125")).StringFixed(2))
	assert.Equal(t, "-0.13", Round2(MustMoney("-0.125")).StringFixed(2))
	assert.Equal(t, "33.33", Round2(MustMoney("33.333333")).StringFixed(2))
}

func TestSum(t *testing.T) {
	assert.True(t, Sum().IsZero())
	assert.True(t, Sum(MustMoney("0.1"), MustMoney("0.2")).Equal(MustMoney("0.3")))
}

func TestRoundPtr(t *testing.T) {
	assert.Nil(t, RoundPtr(nil))

	v := MustMoney("10.005")
	r := RoundPtr(&v)
	if assert.NotNil(t, r) {
		assert.Equal(t, "10.01", r.StringFixed(2))
	}
}

func TestFitsScale(t *testing.T) {
	tests := []struct {
		value string
		scale int32
		want  bool
	}{
		{"10", MoneyScale, true},
		{"0.01", MoneyScale, true},
		{"1.500", MoneyScale, true},
		{"0.005", MoneyScale, false},
		{"12.3456", ForeignPriceScale, true},
		{"12.34567", ForeignPriceScale, false},
		{"1000.12345678", RateScale, true},
		{"0.000000001", RateScale, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, FitsScale(MustMoney(tt.value), tt.scale))
		})
	}
}
