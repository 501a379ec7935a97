// Package reqctx carries the authenticated caller through service calls.
// The HTTP layer builds a RequestContext once from the verified access token;
// services receive it as a plain value and never look at headers or claims.
package reqctx

import (
	"context"

	"github.com/google/uuid"
)

// Well-known roles carried in access tokens.
const (
	RoleAdmin    = "admin"
	RolePro      = "pro"
	RoleCustomer = "customer"
)

// RequestContext is the typed identity of the caller.
type RequestContext struct {
	UserID   uuid.UUID
	Roles    []string
	TenantID *uuid.UUID
}

// HasRole reports whether the caller carries the role.
func (rc RequestContext) HasRole(role string) bool {
	for _, r := range rc.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the caller is a platform administrator.
func (rc RequestContext) IsAdmin() bool {
	return rc.HasRole(RoleAdmin)
}

// IsAuthenticated reports whether a user id is present.
func (rc RequestContext) IsAuthenticated() bool {
	return rc.UserID != uuid.Nil
}

type contextKey struct{}

// With stores rc on ctx.
func With(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rc)
}

// From returns the RequestContext stored on ctx, if any.
func From(ctx context.Context) (RequestContext, bool) {
	rc, ok := ctx.Value(contextKey{}).(RequestContext)
	return rc, ok
}
