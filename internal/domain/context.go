package domain

import "context"

type tenantKey struct{}

// TenantContext carries the authenticated tenant through request context.
// It is resolved by the auth middleware before a plan is compiled; the
// compiler trusts these values and binds them as parameters.
type TenantContext struct {
	TenantID    string
	LocationID  string // optional; empty when the token is tenant-wide
	PrincipalID string
}

// WithTenant stores a TenantContext in the context.
func WithTenant(ctx context.Context, t TenantContext) context.Context {
	return context.WithValue(ctx, tenantKey{}, t)
}

// TenantFromContext extracts the TenantContext from the context.
func TenantFromContext(ctx context.Context) (TenantContext, bool) {
	t, ok := ctx.Value(tenantKey{}).(TenantContext)
	return t, ok
}
