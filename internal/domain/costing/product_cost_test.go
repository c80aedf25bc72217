package costing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductCostPolicy_NextCost(t *testing.T) {
	tests := []struct {
		name     string
		policy   ProductCostPolicy
		stock    int64
		cost     string
		qty      int64
		unitCost string
		want     string
	}{
		{"last cost overwrites", LastCost, 10, "50", 10, "110", "110"},
		{"average blends", WeightedAverage, 10, "50", 10, "110", "80"},
		{"average with empty stock", WeightedAverage, 0, "50", 4, "12.5", "12.5"},
		{"average with negative stock", WeightedAverage, -3, "50", 4, "12.5", "12.5"},
		{"average rounds", WeightedAverage, 1, "10", 2, "10.01", "10.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.policy.NextCost(tt.stock, m(tt.cost), tt.qty, m(tt.unitCost))
			assertMoney(t, tt.want, got)
		})
	}
}

func TestParseProductCostPolicy(t *testing.T) {
	p, err := ParseProductCostPolicy("")
	require.NoError(t, err)
	assert.Equal(t, LastCost, p)

	p, err = ParseProductCostPolicy("weighted_average")
	require.NoError(t, err)
	assert.Equal(t, WeightedAverage, p)

	_, err = ParseProductCostPolicy("fifo")
	assert.Error(t, err)
}
