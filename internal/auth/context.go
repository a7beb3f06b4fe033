package auth

import (
	"context"
	"errors"
)

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal attaches a resolved Principal to the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal retrieves the Principal the Authentication stage attached.
func GetPrincipal(ctx context.Context) (Principal, error) {
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok {
		return nil, errors.New("auth: no principal in context")
	}
	return p, nil
}

// GetTenantID is the common case: read just the tenant id.
func GetTenantID(ctx context.Context) (string, error) {
	p, err := GetPrincipal(ctx)
	if err != nil {
		return "", err
	}
	return p.GetTenantID(), nil
}

// MustGetTenantID panics if no tenant is bound; safe only where the
// Authentication stage is guaranteed to have already run.
func MustGetTenantID(ctx context.Context) string {
	tid, err := GetTenantID(ctx)
	if err != nil {
		panic(err)
	}
	return tid
}
