// Package auth resolves an inbound request's caller against the gateway's
// layered token chain and threads the resulting tenant/plan/status through
// context, mirroring helm's Principal/BasePrincipal/context pattern
// generalized from pure JWT to API-key, channel-token, JWT, and env-token
// resolution.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/store"
)

// Principal is the authenticated identity a request carries once resolved.
type Principal interface {
	GetTenantID() string
	GetUserID() string
	GetPlan() string
	GetStatus() string
}

// BasePrincipal is the concrete Principal every resolution path produces.
type BasePrincipal struct {
	TenantID string
	UserID   string
	Plan     string
	Status   string
}

func (b *BasePrincipal) GetTenantID() string { return b.TenantID }
func (b *BasePrincipal) GetUserID() string   { return b.UserID }
func (b *BasePrincipal) GetPlan() string     { return b.Plan }
func (b *BasePrincipal) GetStatus() string   { return b.Status }

// ErrInactiveSubscription signals a tenant whose billing state forbids
// further requests; the pipeline maps this to HTTP 402.
var ErrInactiveSubscription = errors.New("auth: tenant subscription is not active")

// ErrNoMatch signals that the token matched nothing in the resolution
// chain; the pipeline maps this to HTTP 401.
var ErrNoMatch = errors.New("auth: no matching credential")

// hashToken is the SHA-256 hex digest every token is looked up by; raw
// tokens are never persisted.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Resolver implements the token resolution chain: API-key hash, then
// channel-token hash, then JWT/JWKS, then (non-production only, or
// explicit override) an environment-provided token.
type Resolver struct {
	store         store.Store
	jwtValidator  *JWTValidator
	envToken      string
	allowEnvToken bool
}

// NewResolver builds a Resolver. jwtValidator may be nil to skip the JWT
// step entirely (e.g. no JWKS endpoint configured).
func NewResolver(s store.Store, jwtValidator *JWTValidator, envToken string, allowEnvToken bool) *Resolver {
	return &Resolver{store: s, jwtValidator: jwtValidator, envToken: envToken, allowEnvToken: allowEnvToken}
}

// Resolve runs the full chain for a raw bearer token and returns the
// Principal it maps to, loading the tenant's billing state to reject
// inactive subscriptions before the caller proceeds.
func (r *Resolver) Resolve(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return nil, ErrNoMatch
	}

	if p, err := r.byAPIKey(ctx, token); err == nil {
		return r.checkBilling(ctx, p)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if p, err := r.byChannelToken(ctx, token); err == nil {
		return r.checkBilling(ctx, p)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if r.jwtValidator != nil {
		if p, err := r.byJWT(token); err == nil {
			return r.checkBilling(ctx, p)
		}
	}

	if r.allowEnvToken && r.envToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(r.envToken)) == 1 {
		return &BasePrincipal{TenantID: "dev", UserID: "env-token", Plan: "dev", Status: "active"}, nil
	}

	return nil, ErrNoMatch
}

func (r *Resolver) byAPIKey(ctx context.Context, token string) (*BasePrincipal, error) {
	key, err := r.store.GetAPIKeyByHash(ctx, hashToken(token))
	if err != nil {
		return nil, err
	}
	return &BasePrincipal{TenantID: key.TenantID, UserID: key.UserID}, nil
}

func (r *Resolver) byChannelToken(ctx context.Context, token string) (*BasePrincipal, error) {
	ct, err := r.store.GetChannelTokenByHash(ctx, hashToken(token))
	if err != nil {
		return nil, err
	}
	return &BasePrincipal{TenantID: ct.TenantID}, nil
}

func (r *Resolver) byJWT(token string) (*BasePrincipal, error) {
	claims, err := r.jwtValidator.Validate(token)
	if err != nil {
		return nil, err
	}
	if claims.TenantID == "" {
		return nil, fmt.Errorf("auth: token missing tenant binding")
	}
	return &BasePrincipal{TenantID: claims.TenantID, UserID: claims.Subject}, nil
}

func (r *Resolver) checkBilling(ctx context.Context, p *BasePrincipal) (Principal, error) {
	billing, err := r.store.GetBillingState(ctx, p.TenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, nil
		}
		return nil, fmt.Errorf("auth: load billing state: %w", err)
	}
	p.Plan = billing.Plan
	p.Status = billing.Status
	if billing.Status != "active" {
		return nil, ErrInactiveSubscription
	}
	return p, nil
}
