// Package numerator provides the PostgreSQL implementation of document numbering.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "landedcost/internal/core/numerator"
)

// Querier is the subset of pgx used for sequence upserts.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type cachedRange struct {
	current int64
	max     int64
}

// Service hands out document numbers from sys_sequences.
// Calls run outside business transactions so a rolled-back document does
// not hold the sequence row lock; gaps are acceptable.
type Service struct {
	querier Querier

	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a numerator over querier (normally the pool).
func New(querier Querier) *Service {
	return &Service{
		querier: querier,
		ranges:  make(map[string]*cachedRange),
	}
}

// GetNextNumber returns the next formatted number for cfg in period.
func (s *Service) GetNextNumber(ctx context.Context, cfg corenumerator.Config, period time.Time) (string, error) {
	key := cfg.Key(period)

	var (
		num int64
		err error
	)
	switch cfg.Strategy {
	case corenumerator.StrategyCached:
		num, err = s.nextCached(ctx, key, cfg.RangeSize)
	default:
		num, err = s.reserve(ctx, key, 1)
	}
	if err != nil {
		return "", err
	}

	return cfg.Format(period, num), nil
}

// reserve bumps the sequence by n and returns the new upper bound.
func (s *Service) reserve(ctx context.Context, key string, n int64) (int64, error) {
	var upper int64
	err := s.querier.QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
		RETURNING current_val
	`, key, n).Scan(&upper)
	if err != nil {
		return 0, fmt.Errorf("reserve sequence %s: %w", key, err)
	}
	return upper, nil
}

// nextCached serves numbers from an in-memory range, reserving a new range
// of size values when it runs out.
func (s *Service) nextCached(ctx context.Context, key string, size int64) (int64, error) {
	if size <= 0 {
		size = 50
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	rng, ok := s.ranges[key]
	if !ok {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		upper, err := s.reserve(ctx, key, size)
		if err != nil {
			return 0, err
		}
		rng.current = upper - size
		rng.max = upper
	}

	rng.current++
	return rng.current, nil
}
