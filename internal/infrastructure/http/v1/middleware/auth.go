package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"landedcost/internal/core/apperror"
	appctx "landedcost/internal/core/context"
)

// JWTValidator decodes a bearer token into the caller. auth.JWTService implements it.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.UserContext, error)
}

// Auth rejects requests without a valid bearer token. Permission checks
// happen in the services through the policy authorizer.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, found := strings.Cut(c.GetHeader("Authorization"), " ")
		switch {
		case scheme == "":
			abortUnauthorized(c, "missing authorization header")
			return
		case !found || !strings.EqualFold(scheme, "bearer"):
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		user, err := validator.ValidateToken(strings.TrimSpace(token))
		if err != nil || user == nil || user.UserID == "" {
			abortUnauthorized(c, "invalid token")
			return
		}

		ctx := appctx.WithUser(c.Request.Context(), user)
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("enduser.id", user.UserID))
		c.Request = c.Request.WithContext(ctx)

		c.Set("user_id", user.UserID)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
