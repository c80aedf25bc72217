package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"landedcost/internal/core/apperror"
	"landedcost/internal/domain/documents/purchase"
	"landedcost/pkg/logger"
)

// DefaultLockTTL bounds how long a crashed holder can block completion.
const DefaultLockTTL = 30 * time.Second

// RedisLocker implements purchase.Locker with bsm/redislock. It serializes
// completion attempts across server instances ahead of the row lock.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	prefix string
}

var _ purchase.Locker = (*RedisLocker)(nil)

// NewRedisLocker creates a locker. ttl <= 0 selects DefaultLockTTL.
func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		prefix: "landedcost:lock:",
	}
}

// Lock obtains key without retrying. A held lock yields apperror Locked.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := l.client.Obtain(ctx, l.prefix+key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, apperror.NewLocked(key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func() {
		// The caller's ctx may already be cancelled; release must still run.
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.Warn(ctx, "release lock failed", "key", key, "error", err)
		}
	}, nil
}
