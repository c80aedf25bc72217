// Package numerator provides the contract for document auto-numbering.
// Implementations live in the infrastructure layer.
package numerator

import (
	"fmt"
	"time"
)

// Strategy defines how numbers are reserved.
type Strategy int

const (
	// StrategyStrict reserves one number per call in the database. No gaps
	// as long as the surrounding transaction commits.
	StrategyStrict Strategy = iota

	// StrategyCached reserves ranges and hands them out from memory. Gaps
	// appear after restarts.
	StrategyCached
)

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g. "PO")
	Prefix string

	// IncludeYear adds year to the number
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	// ResetPeriod: "year", "month", "never"
	ResetPeriod string

	Strategy Strategy

	// RangeSize is the number of values reserved at once by StrategyCached (default 50)
	RangeSize int64
}

// DefaultConfig returns yearly strict numbering: PREFIX-YYYY-00001.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: "year",
		Strategy:    StrategyStrict,
	}
}

// Key identifies the sequence for cfg in period.
func (c Config) Key(period time.Time) string {
	switch c.ResetPeriod {
	case "month":
		return fmt.Sprintf("%s_%s", c.Prefix, period.Format("2006_01"))
	case "year":
		return fmt.Sprintf("%s_%s", c.Prefix, period.Format("2006"))
	default:
		return c.Prefix
	}
}

// Format renders the n-th number of the sequence.
func (c Config) Format(period time.Time, n int64) string {
	width := c.PadWidth
	if width == 0 {
		width = 5
	}
	if c.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", c.Prefix, period.Format("2006"), width, n)
	}
	return fmt.Sprintf("%s-%0*d", c.Prefix, width, n)
}
