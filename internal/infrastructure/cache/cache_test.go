package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landedcost/internal/core/apperror"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLocker_Exclusive(t *testing.T) {
	_, client := newRedis(t)
	locker := NewRedisLocker(client, time.Minute)
	ctx := context.Background()

	release, err := locker.Lock(ctx, "purchase:complete:1")
	require.NoError(t, err)

	_, err = locker.Lock(ctx, "purchase:complete:1")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeLocked))

	other, err := locker.Lock(ctx, "purchase:complete:2")
	require.NoError(t, err)
	other()

	release()

	again, err := locker.Lock(ctx, "purchase:complete:1")
	require.NoError(t, err)
	again()
}

func TestRedisLocker_ExpiresAfterTTL(t *testing.T) {
	mr, client := newRedis(t)
	locker := NewRedisLocker(client, time.Second)
	ctx := context.Background()

	_, err := locker.Lock(ctx, "k")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	release, err := locker.Lock(ctx, "k")
	require.NoError(t, err)
	release()
}

func TestIdempotencyStore_Lifecycle(t *testing.T) {
	_, client := newRedis(t)
	store := NewIdempotencyStore(client, time.Hour)
	ctx := context.Background()

	rec, err := store.Acquire(ctx, "abc", "h1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = store.Acquire(ctx, "abc", "h1")
	assert.True(t, apperror.HasCode(err, apperror.CodeLocked))

	require.NoError(t, store.Complete(ctx, "abc", "h1", 200, "application/json", []byte(`{"ok":true}`)))

	rec, err = store.Acquire(ctx, "abc", "h1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 200, rec.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(rec.Body))

	_, err = store.Acquire(ctx, "abc", "other-body")
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))
}

func TestIdempotencyStore_Release(t *testing.T) {
	_, client := newRedis(t)
	store := NewIdempotencyStore(client, time.Hour)
	ctx := context.Background()

	_, err := store.Acquire(ctx, "k", "h")
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "k"))

	rec, err := store.Acquire(ctx, "k", "h")
	require.NoError(t, err)
	assert.Nil(t, rec)
}
