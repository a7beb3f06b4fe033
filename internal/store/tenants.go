package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateTenant inserts a new tenant row.
func (s *SQLStore) CreateTenant(ctx context.Context, t *Tenant) error {
	query := fmt.Sprintf(`INSERT INTO tenants (tenant_id, name, plan, status, created_at) VALUES (%s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5))
	_, err := s.db.ExecContext(ctx, query, t.TenantID, t.Name, t.Plan, t.Status, t.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

// GetTenant returns a tenant by id, or sql.ErrNoRows.
func (s *SQLStore) GetTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	query := fmt.Sprintf(`SELECT tenant_id, name, plan, status, created_at FROM tenants WHERE tenant_id = %s`, s.ph(1))
	row := s.db.QueryRowContext(ctx, query, tenantID)

	var t Tenant
	var createdAt string
	if err := row.Scan(&t.TenantID, &t.Name, &t.Plan, &t.Status, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &t, nil
}

// GetBillingState derives the minimal {status, plan, period} triple the
// authentication middleware needs from the tenant row; period is always
// "monthly" since billing period tracking itself is out of scope.
func (s *SQLStore) GetBillingState(ctx context.Context, tenantID string) (*BillingState, error) {
	t, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &BillingState{TenantID: t.TenantID, Status: t.Status, Plan: t.Plan, Period: "monthly"}, nil
}

// CreateUser inserts a new user row.
func (s *SQLStore) CreateUser(ctx context.Context, u *User) error {
	query := fmt.Sprintf(`INSERT INTO users (user_id, tenant_id, email, created_at) VALUES (%s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	_, err := s.db.ExecContext(ctx, query, u.UserID, u.TenantID, u.Email, u.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// CreateAPIKey inserts a hash-only API key row.
func (s *SQLStore) CreateAPIKey(ctx context.Context, k *ApiKey) error {
	query := fmt.Sprintf(`INSERT INTO api_keys (key_id, user_id, tenant_id, key_hash, label, created_at) VALUES (%s, %s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))
	_, err := s.db.ExecContext(ctx, query, k.KeyID, k.UserID, k.TenantID, k.KeyHash, k.Label, k.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

// GetAPIKeyByHash looks up a (non-revoked) API key by its SHA-256 hash.
func (s *SQLStore) GetAPIKeyByHash(ctx context.Context, hash string) (*ApiKey, error) {
	query := fmt.Sprintf(`
		SELECT key_id, user_id, tenant_id, key_hash, label, created_at, revoked_at
		FROM api_keys WHERE key_hash = %s AND revoked_at IS NULL
	`, s.ph(1))
	row := s.db.QueryRowContext(ctx, query, hash)

	var k ApiKey
	var createdAt string
	var revokedAt sql.NullString
	if err := row.Scan(&k.KeyID, &k.UserID, &k.TenantID, &k.KeyHash, &k.Label, &createdAt, &revokedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get api key: %w", err)
	}
	k.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if revokedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, revokedAt.String)
		k.RevokedAt = &t
	}
	return &k, nil
}

// CreateChannelToken inserts a channel-bound token row.
func (s *SQLStore) CreateChannelToken(ctx context.Context, tok *ChannelToken) error {
	var expiresAt any
	if tok.ExpiresAt != nil {
		expiresAt = tok.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	query := fmt.Sprintf(`INSERT INTO channel_tokens (token_id, tenant_id, channel, token_hash, created_at, expires_at) VALUES (%s, %s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))
	_, err := s.db.ExecContext(ctx, query, tok.TokenID, tok.TenantID, tok.Channel, tok.TokenHash, tok.CreatedAt.UTC().Format(time.RFC3339Nano), expiresAt)
	if err != nil {
		return fmt.Errorf("create channel token: %w", err)
	}
	return nil
}

// GetChannelTokenByHash looks up a channel token by its SHA-256 hash.
func (s *SQLStore) GetChannelTokenByHash(ctx context.Context, hash string) (*ChannelToken, error) {
	query := fmt.Sprintf(`
		SELECT token_id, tenant_id, channel, token_hash, created_at, expires_at
		FROM channel_tokens WHERE token_hash = %s
	`, s.ph(1))
	row := s.db.QueryRowContext(ctx, query, hash)

	var tok ChannelToken
	var createdAt string
	var expiresAt sql.NullString
	if err := row.Scan(&tok.TokenID, &tok.TenantID, &tok.Channel, &tok.TokenHash, &createdAt, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get channel token: %w", err)
	}
	tok.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if expiresAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, expiresAt.String)
		tok.ExpiresAt = &t
	}
	return &tok, nil
}

// CreateConnectCode inserts a one-time channel-binding code.
func (s *SQLStore) CreateConnectCode(ctx context.Context, c *ConnectCode) error {
	query := fmt.Sprintf(`INSERT INTO connect_codes (code, tenant_id, user_id, channel, expires_at, created_at) VALUES (%s, %s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))
	_, err := s.db.ExecContext(ctx, query, c.Code, c.TenantID, c.UserID, c.Channel, c.ExpiresAt.UTC().Format(time.RFC3339Nano), c.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create connect code: %w", err)
	}
	return nil
}

// ConsumeConnectCode atomically marks a connect code consumed, rejecting an
// already-consumed or expired code.
func (s *SQLStore) ConsumeConnectCode(ctx context.Context, code string, now time.Time) (*ConnectCode, error) {
	selectQuery := fmt.Sprintf(`
		SELECT code, tenant_id, user_id, channel, expires_at, consumed_at, created_at
		FROM connect_codes WHERE code = %s
	`, s.ph(1))
	row := s.db.QueryRowContext(ctx, selectQuery, code)

	var c ConnectCode
	var expiresAt, createdAt string
	var consumedAt sql.NullString
	if err := row.Scan(&c.Code, &c.TenantID, &c.UserID, &c.Channel, &expiresAt, &consumedAt, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get connect code: %w", err)
	}
	if consumedAt.Valid {
		return nil, fmt.Errorf("connect code already consumed")
	}
	c.ExpiresAt, _ = time.Parse(time.RFC3339Nano, expiresAt)
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if now.After(c.ExpiresAt) {
		return nil, fmt.Errorf("connect code expired")
	}

	updateQuery := fmt.Sprintf(`UPDATE connect_codes SET consumed_at = %s WHERE code = %s AND consumed_at IS NULL`, s.ph(1), s.ph(2))
	res, err := s.db.ExecContext(ctx, updateQuery, now.UTC().Format(time.RFC3339Nano), code)
	if err != nil {
		return nil, fmt.Errorf("consume connect code: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("connect code already consumed")
	}
	return &c, nil
}

// CreateChannelBinding inserts a channel binding row.
func (s *SQLStore) CreateChannelBinding(ctx context.Context, b *ChannelBinding) error {
	query := fmt.Sprintf(`INSERT INTO channel_bindings (binding_id, tenant_id, user_id, channel, external_id, created_at) VALUES (%s, %s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))
	_, err := s.db.ExecContext(ctx, query, b.BindingID, b.TenantID, b.UserID, b.Channel, b.ExternalID, b.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create channel binding: %w", err)
	}
	return nil
}

// GetChannelBinding looks up a binding by (channel, external_id).
func (s *SQLStore) GetChannelBinding(ctx context.Context, channel, externalID string) (*ChannelBinding, error) {
	query := fmt.Sprintf(`
		SELECT binding_id, tenant_id, user_id, channel, external_id, created_at
		FROM channel_bindings WHERE channel = %s AND external_id = %s
	`, s.ph(1), s.ph(2))
	row := s.db.QueryRowContext(ctx, query, channel, externalID)

	var b ChannelBinding
	var createdAt string
	if err := row.Scan(&b.BindingID, &b.TenantID, &b.UserID, &b.Channel, &b.ExternalID, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get channel binding: %w", err)
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &b, nil
}
