// Package middleware holds the gin middleware chain of the API: tracing,
// access logging, error rendering, panic recovery, bearer auth and
// idempotency keys.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"landedcost/internal/core/apperror"
	appctx "landedcost/internal/core/context"
	"landedcost/pkg/logger"
)

// Recovery turns a handler panic into an INTERNAL_ERROR for ErrorHandler to
// render. The stack goes to the log and the span, never to the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			ctx := c.Request.Context()
			panicErr := fmt.Errorf("panic: %v", rec)
			logger.Error(ctx, "panic recovered", "error", rec, "stack", string(debug.Stack()))

			span := trace.SpanFromContext(ctx)
			span.RecordError(panicErr)
			span.SetStatus(codes.Error, "panic")

			_ = c.Error(apperror.NewInternal(panicErr).
				WithDetail("request_id", appctx.GetRequestID(ctx)))
			c.Abort()
		}()
		c.Next()
	}
}
