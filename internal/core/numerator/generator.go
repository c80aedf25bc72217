package numerator

import (
	"context"
	"sync"
	"time"
)

// Generator produces sequential document numbers.
type Generator interface {
	// GetNextNumber returns the next formatted number for cfg in period.
	GetNextNumber(ctx context.Context, cfg Config, period time.Time) (string, error)
}

// MemoryGenerator keeps sequences in process memory. Used by the in-memory
// store and tests.
type MemoryGenerator struct {
	mu   sync.Mutex
	seqs map[string]int64
}

// NewMemoryGenerator creates an empty generator.
func NewMemoryGenerator() *MemoryGenerator {
	return &MemoryGenerator{seqs: make(map[string]int64)}
}

// GetNextNumber implements Generator.
func (g *MemoryGenerator) GetNextNumber(_ context.Context, cfg Config, period time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := cfg.Key(period)
	g.seqs[key]++
	return cfg.Format(period, g.seqs[key]), nil
}

var _ Generator = (*MemoryGenerator)(nil)
