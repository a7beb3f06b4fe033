// Package tenants provides the provisioning operations /signup,
// /session, and /integrations/* need on top of the Store's plain CRUD:
// generating raw secrets, hashing them before they ever reach the
// database, and minting one-time connect codes for channel binding.
package tenants

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/store"
)

// Provisioner wraps a Store with the higher-level signup/session/channel
// operations the API layer exposes.
type Provisioner struct {
	store store.Store
}

// New builds a Provisioner over the given Store.
func New(s store.Store) *Provisioner {
	return &Provisioner{store: s}
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func randomSecret(prefix string, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("tenants: generate secret: %w", err)
	}
	return prefix + base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

// Signup creates a tenant, its first user, and a starting API key, returning
// the raw (unhashed) key exactly once — it is never recoverable afterward.
func (p *Provisioner) Signup(ctx context.Context, name, email, plan string) (tenant *store.Tenant, user *store.User, rawAPIKey string, err error) {
	now := time.Now().UTC()

	tenant = &store.Tenant{TenantID: uuid.NewString(), Name: name, Plan: plan, Status: "active", CreatedAt: now}
	if err = p.store.CreateTenant(ctx, tenant); err != nil {
		return nil, nil, "", fmt.Errorf("tenants: create tenant: %w", err)
	}

	user = &store.User{UserID: uuid.NewString(), TenantID: tenant.TenantID, Email: email, CreatedAt: now}
	if err = p.store.CreateUser(ctx, user); err != nil {
		return nil, nil, "", fmt.Errorf("tenants: create user: %w", err)
	}

	rawAPIKey, err = randomSecret("edon_live_", 24)
	if err != nil {
		return nil, nil, "", err
	}
	key := &store.ApiKey{
		KeyID: uuid.NewString(), UserID: user.UserID, TenantID: tenant.TenantID,
		KeyHash: sha256Hex(rawAPIKey), Label: "signup", CreatedAt: now,
	}
	if err = p.store.CreateAPIKey(ctx, key); err != nil {
		return nil, nil, "", fmt.Errorf("tenants: create api key: %w", err)
	}

	return tenant, user, rawAPIKey, nil
}

// IssueChannelToken mints a raw channel token for (tenant, channel),
// returning it once; only its hash is persisted.
func (p *Provisioner) IssueChannelToken(ctx context.Context, tenantID, channel string, ttl time.Duration) (rawToken string, err error) {
	rawToken, err = randomSecret("edon_chan_", 20)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	tok := &store.ChannelToken{
		TokenID: uuid.NewString(), TenantID: tenantID, Channel: channel,
		TokenHash: sha256Hex(rawToken), CreatedAt: now,
	}
	if ttl > 0 {
		expires := now.Add(ttl)
		tok.ExpiresAt = &expires
	}
	if err := p.store.CreateChannelToken(ctx, tok); err != nil {
		return "", fmt.Errorf("tenants: create channel token: %w", err)
	}
	return rawToken, nil
}

// IssueConnectCode mints a one-time code a user enters in an external
// channel (Slack, Discord...) to bind it to their tenant.
func (p *Provisioner) IssueConnectCode(ctx context.Context, tenantID, userID, channel string, ttl time.Duration) (string, error) {
	code, err := randomSecret("", 5)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	c := &store.ConnectCode{
		Code: code, TenantID: tenantID, UserID: userID, Channel: channel,
		ExpiresAt: now.Add(ttl), CreatedAt: now,
	}
	if err := p.store.CreateConnectCode(ctx, c); err != nil {
		return "", fmt.Errorf("tenants: create connect code: %w", err)
	}
	return code, nil
}

// BindChannel consumes a connect code and records the resulting binding
// between an external channel identity and the tenant/user it belongs to.
func (p *Provisioner) BindChannel(ctx context.Context, code, externalID string) (*store.ChannelBinding, error) {
	consumed, err := p.store.ConsumeConnectCode(ctx, code, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("tenants: consume connect code: %w", err)
	}

	binding := &store.ChannelBinding{
		BindingID:  uuid.NewString(),
		TenantID:   consumed.TenantID,
		UserID:     consumed.UserID,
		Channel:    consumed.Channel,
		ExternalID: externalID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := p.store.CreateChannelBinding(ctx, binding); err != nil {
		return nil, fmt.Errorf("tenants: create channel binding: %w", err)
	}
	return binding, nil
}
