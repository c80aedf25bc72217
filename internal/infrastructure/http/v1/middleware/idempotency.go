package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"landedcost/internal/core/apperror"
	appctx "landedcost/internal/core/context"
	"landedcost/internal/infrastructure/cache"
	"landedcost/pkg/logger"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"
const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

const (
	ctxIdempotencyKey   = "idempotency_key"
	ctxIdempotencyHash  = "idempotency_hash"
	ctxIdempotencyStore = "idempotency_store"
)

// Idempotency replays the stored response of a POST/PUT carrying an
// X-Idempotency-Key header instead of running it again. Keys are scoped to
// the user and the request path.
func Idempotency(store *cache.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > 128 {
			_ = c.Error(apperror.NewValidation("idempotency key is too long").
				WithDetail("header", HeaderIdempotencyKey))
			c.Abort()
			return
		}

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, _ := io.ReadAll(limited)
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		hash := sha256.Sum256(body)
		requestHash := hex.EncodeToString(hash[:])
		scoped := appctx.GetUserID(c.Request.Context()) + ":" + c.Request.Method + " " + c.Request.URL.Path + ":" + key

		replay, err := store.Acquire(c.Request.Context(), scoped, requestHash)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				_ = c.Error(appErr)
			} else {
				_ = c.Error(apperror.NewInternal(err).WithDetail("component", "idempotency"))
			}
			c.Abort()
			return
		}

		if replay != nil {
			c.Header("Idempotent-Replayed", "true")
			if len(replay.Body) == 0 {
				c.Status(replay.StatusCode)
			} else {
				c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			}
			c.Abort()
			return
		}

		c.Set(ctxIdempotencyKey, scoped)
		c.Set(ctxIdempotencyHash, requestHash)
		c.Set(ctxIdempotencyStore, store)

		c.Next()
	}
}

// CompleteIdempotency stores the response of the current request for
// replay. It does nothing when the request carried no idempotency key.
func CompleteIdempotency(c *gin.Context, statusCode int, contentType string, body []byte) {
	key, store, ok := idempotencyState(c)
	if !ok {
		return
	}
	hash := c.GetString(ctxIdempotencyHash)
	if err := store.Complete(c.Request.Context(), key, hash, statusCode, contentType, body); err != nil {
		logger.Warn(c.Request.Context(), "store idempotent response failed", "error", err)
	}
}

func releaseIdempotency(c *gin.Context) {
	key, store, ok := idempotencyState(c)
	if !ok {
		return
	}
	if err := store.Release(c.Request.Context(), key); err != nil {
		logger.Warn(c.Request.Context(), "release idempotency key failed", "error", err)
	}
}

func idempotencyState(c *gin.Context) (string, *cache.IdempotencyStore, bool) {
	key := c.GetString(ctxIdempotencyKey)
	if key == "" {
		return "", nil, false
	}
	v, exists := c.Get(ctxIdempotencyStore)
	if !exists {
		return "", nil, false
	}
	store, ok := v.(*cache.IdempotencyStore)
	return key, store, ok && store != nil
}
