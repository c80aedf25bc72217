package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"landedcost/internal/core/apperror"
)

// IdempotencyStatus is the state of an idempotency key.
type IdempotencyStatus string

const (
	IdempotencyPending IdempotencyStatus = "pending"
	IdempotencyDone    IdempotencyStatus = "done"
)

// IdempotencyRecord is what is kept under a key.
type IdempotencyRecord struct {
	Status      IdempotencyStatus `json:"status"`
	RequestHash string            `json:"requestHash"`
	StatusCode  int               `json:"statusCode,omitempty"`
	ContentType string            `json:"contentType,omitempty"`
	Body        []byte            `json:"body,omitempty"`
}

// IdempotencyStore keeps request outcomes in Redis so a retried mutating
// request replays the first response instead of running twice.
type IdempotencyStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewIdempotencyStore creates a store. ttl <= 0 selects 24h.
func NewIdempotencyStore(client redis.UniversalClient, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, ttl: ttl, prefix: "landedcost:idem:"}
}

// Acquire claims key for a request with requestHash. It returns:
//   - (nil, nil) when the key was claimed and the request should run;
//   - (record, nil) when a finished response exists for the same request;
//   - an apperror when the key is in flight or was used with another body.
func (s *IdempotencyStore) Acquire(ctx context.Context, key, requestHash string) (*IdempotencyRecord, error) {
	pending, err := json.Marshal(IdempotencyRecord{Status: IdempotencyPending, RequestHash: requestHash})
	if err != nil {
		return nil, err
	}

	ok, err := s.client.SetNX(ctx, s.prefix+key, pending, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return nil, nil
	}

	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		// Expired between SETNX and GET; the client may retry.
		return nil, apperror.NewLocked("idempotency key " + key)
	}
	if err != nil {
		return nil, fmt.Errorf("read idempotency key: %w", err)
	}

	var rec IdempotencyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	if rec.RequestHash != requestHash {
		return nil, apperror.NewConflict("idempotency key reused with a different request").
			WithDetail("key", key)
	}
	if rec.Status == IdempotencyPending {
		return nil, apperror.NewLocked("idempotency key " + key)
	}
	return &rec, nil
}

// Complete stores the response for key.
func (s *IdempotencyStore) Complete(ctx context.Context, key, requestHash string, statusCode int, contentType string, body []byte) error {
	raw, err := json.Marshal(IdempotencyRecord{
		Status:      IdempotencyDone,
		RequestHash: requestHash,
		StatusCode:  statusCode,
		ContentType: contentType,
		Body:        body,
	})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store idempotent response: %w", err)
	}
	return nil
}

// Release drops a pending key so the request can be retried, used when the
// request failed with a retryable error.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
