package costing

import (
	"fmt"
	"strings"
)

// RoundingPolicy selects how per-line rounding differences are treated.
type RoundingPolicy string

const (
	// RoundAtOutput keeps full precision and rounds each output independently.
	// The sum of rounded distributed costs may differ from the rounded total
	// by up to one cent per line.
	RoundAtOutput RoundingPolicy = "output"

	// AllocateRemainder rounds each line, then assigns the difference to the
	// line with the largest local subtotal (the last one on ties) so the
	// distributed costs add up exactly.
	AllocateRemainder RoundingPolicy = "remainder"
)

// ParseRoundingPolicy accepts "output" and "remainder". Empty means RoundAtOutput.
func ParseRoundingPolicy(s string) (RoundingPolicy, error) {
	switch RoundingPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoundAtOutput:
		return RoundAtOutput, nil
	case AllocateRemainder:
		return AllocateRemainder, nil
	default:
		return "", fmt.Errorf("unknown rounding policy %q", s)
	}
}
