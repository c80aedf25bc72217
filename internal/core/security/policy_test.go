package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landedcost/internal/core/apperror"
	appctx "landedcost/internal/core/context"
)

func TestPolicyAuthorizer_DefaultPolicy(t *testing.T) {
	auth, err := NewPolicyAuthorizer(DefaultPolicy)
	require.NoError(t, err)

	tests := []struct {
		name    string
		user    *appctx.UserContext
		action  Permission
		wantErr func(error) bool
	}{
		{
			name:   "admin may update",
			user:   &appctx.UserContext{UserID: "u1", IsAdmin: true},
			action: PermissionPurchaseUpdate,
		},
		{
			name:   "explicit permission",
			user:   &appctx.UserContext{UserID: "u2", Permissions: []string{"purchase:update"}},
			action: PermissionPurchaseUpdate,
		},
		{
			name:   "wildcard grants read only",
			user:   &appctx.UserContext{UserID: "u3", Permissions: []string{"read:*"}},
			action: PermissionPurchaseRead,
		},
		{
			name:    "wildcard does not grant update",
			user:    &appctx.UserContext{UserID: "u3", Permissions: []string{"read:*"}},
			action:  PermissionPurchaseUpdate,
			wantErr: func(err error) bool { return apperror.HasCode(err, apperror.CodeForbidden) },
		},
		{
			name:    "no permissions",
			user:    &appctx.UserContext{UserID: "u4"},
			action:  PermissionPurchaseUpdate,
			wantErr: func(err error) bool { return apperror.HasCode(err, apperror.CodeForbidden) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := appctx.WithUser(context.Background(), tt.user)
			err := auth.Authorize(ctx, tt.action)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
		})
	}
}

func TestPolicyAuthorizer_NoUser(t *testing.T) {
	auth, err := NewPolicyAuthorizer(DefaultPolicy)
	require.NoError(t, err)

	err = auth.Authorize(context.Background(), PermissionPurchaseRead)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
}

func TestPolicyAuthorizer_CustomRolePolicy(t *testing.T) {
	auth, err := NewPolicyAuthorizer(`"buyer" in roles && action.startsWith("purchase:")`)
	require.NoError(t, err)

	buyer := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "b", Roles: []string{"buyer"}})
	assert.NoError(t, auth.Authorize(buyer, PermissionPurchaseUpdate))

	viewer := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "v", Roles: []string{"viewer"}})
	assert.Error(t, auth.Authorize(viewer, PermissionPurchaseUpdate))
}

func TestNewPolicyAuthorizer_RejectsBadExpressions(t *testing.T) {
	_, err := NewPolicyAuthorizer(`action +`)
	assert.Error(t, err)

	_, err = NewPolicyAuthorizer(`action`)
	assert.Error(t, err, "non-bool policy must be rejected")
}
