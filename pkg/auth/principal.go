package auth

import (
	"context"
	"slices"
)

// Roles understood by RoleAuthorizer.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID  string
	Email   string
	Roles   []string
	Tenants []string
}

// HasRole reports whether the principal carries role.
func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// MemberOf reports whether the principal may act for tenantID.
func (p Principal) MemberOf(tenantID string) bool {
	return slices.Contains(p.Tenants, tenantID)
}

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal adds the caller to ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the caller stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// Actor returns the user id of the caller, or "system" for unauthenticated
// internal calls.
func Actor(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok && p.UserID != "" {
		return p.UserID
	}
	return "system"
}
