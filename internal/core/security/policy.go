// Package security produces the authorization decisions consumed by domain services.
package security

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"landedcost/internal/core/apperror"
	appctx "landedcost/internal/core/context"
)

// Permission is an action string such as "purchase:update".
type Permission string

const (
	PermissionPurchaseRead   Permission = "purchase:read"
	PermissionPurchaseCreate Permission = "purchase:create"
	PermissionPurchaseUpdate Permission = "purchase:update"
	PermissionPurchaseDelete Permission = "purchase:delete"

	PermissionProductRead   Permission = "product:read"
	PermissionProductCreate Permission = "product:create"
)

// DefaultPolicy grants admins everything and everyone else what their token lists.
const DefaultPolicy = `is_admin || action in permissions || (action.endsWith(":read") && "read:*" in permissions)`

// Authorizer decides whether the caller in ctx may perform an action.
type Authorizer interface {
	Authorize(ctx context.Context, action Permission) error
}

// PolicyAuthorizer evaluates a CEL expression against the request's user context.
//
// Variables available to the expression:
//
//	action      string
//	user_id     string
//	roles       list(string)
//	permissions list(string)
//	is_admin    bool
type PolicyAuthorizer struct {
	expr string
	prg  cel.Program
}

// NewPolicyAuthorizer compiles expr once. The expression must evaluate to bool.
func NewPolicyAuthorizer(expr string) (*PolicyAuthorizer, error) {
	env, err := cel.NewEnv(
		cel.Variable("action", cel.StringType),
		cel.Variable("user_id", cel.StringType),
		cel.Variable("roles", cel.ListType(cel.StringType)),
		cel.Variable("permissions", cel.ListType(cel.StringType)),
		cel.Variable("is_admin", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile policy: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("policy must return bool, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build policy program: %w", err)
	}

	return &PolicyAuthorizer{expr: expr, prg: prg}, nil
}

// Authorize returns Unauthorized when ctx carries no user and Forbidden when
// the policy rejects the action.
func (a *PolicyAuthorizer) Authorize(ctx context.Context, action Permission) error {
	user := appctx.GetUser(ctx)
	if user == nil {
		return apperror.NewUnauthorized("authentication required")
	}

	out, _, err := a.prg.ContextEval(ctx, map[string]any{
		"action":      string(action),
		"user_id":     user.UserID,
		"roles":       nonNil(user.Roles),
		"permissions": nonNil(user.Permissions),
		"is_admin":    user.IsAdmin,
	})
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("evaluate policy: %w", err))
	}

	allowed, ok := out.Value().(bool)
	if !ok || !allowed {
		return apperror.NewForbidden("not allowed to perform this action").
			WithDetail("action", string(action))
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// AllowAll is used by tools and tests that run without a caller identity.
type AllowAll struct{}

func (AllowAll) Authorize(context.Context, Permission) error { return nil }
