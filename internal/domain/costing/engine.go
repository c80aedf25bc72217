package costing

import (
	"landedcost/internal/core/types"
	"landedcost/internal/domain/fx"
)

// Input carries the raw purchase fields needed for a preview.
type Input struct {
	Lines        []Line
	Costs        SharedCosts
	CurrencyCode string
	ExchangeRate types.Rate
	Import       bool
}

// Engine binds the currency policy and rounding mode configured for the service.
type Engine struct {
	policy   fx.Policy
	rounding RoundingPolicy
}

// NewEngine creates an allocation engine.
func NewEngine(policy fx.Policy, rounding RoundingPolicy) *Engine {
	if rounding == "" {
		rounding = RoundAtOutput
	}
	return &Engine{policy: policy, rounding: rounding}
}

// Policy returns the currency policy used by the engine.
func (e *Engine) Policy() fx.Policy { return e.policy }

// Rounding returns the configured rounding mode.
func (e *Engine) Rounding() RoundingPolicy { return e.rounding }

// Preview computes the allocation for in. It is safe for concurrent use.
func (e *Engine) Preview(in Input) Result {
	rate := in.ExchangeRate
	if rate.IsZero() {
		rate = types.One()
	}
	profile := NewProfile(e.policy, in.CurrencyCode, rate, in.Costs, in.Import)
	return Allocate(in.Lines, profile, e.rounding)
}
