package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// SetCredential upserts a credential row keyed by (credential_id, tenant_id).
// Most-recently-written-wins on conflict; never returns ciphertext to the
// caller (callers only ever see "saved").
func (s *SQLStore) SetCredential(ctx context.Context, c *Credential) error {
	now := s.now()
	query := fmt.Sprintf(`
		INSERT INTO credentials (credential_id, tenant_id, tool_name, credential_type, ciphertext_hex, nonce_hex, created_at, updated_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s)
		ON CONFLICT (credential_id, tenant_id) DO UPDATE SET
			tool_name = excluded.tool_name,
			credential_type = excluded.credential_type,
			ciphertext_hex = excluded.ciphertext_hex,
			nonce_hex = excluded.nonce_hex,
			updated_at = excluded.updated_at
	`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8))

	_, err := s.db.ExecContext(ctx, query,
		c.CredentialID, c.TenantID, c.ToolName, c.CredentialType,
		hex.EncodeToString(c.Ciphertext), hex.EncodeToString(c.Nonce),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("set credential: %w", err)
	}
	return nil
}

// GetCredential looks up a credential by the exact (credential_id, tenant_id)
// pair with no cross-tenant fallback: a row written under a different
// tenant_id (including the empty/global tenant) is never returned.
func (s *SQLStore) GetCredential(ctx context.Context, credentialID, tenantID string) (*Credential, error) {
	query := fmt.Sprintf(`
		SELECT credential_id, tenant_id, tool_name, credential_type, ciphertext_hex, nonce_hex, created_at, updated_at
		FROM credentials WHERE credential_id = %s AND tenant_id = %s
	`, s.ph(1), s.ph(2))

	row := s.db.QueryRowContext(ctx, query, credentialID, tenantID)

	var (
		c                          Credential
		ciphertextHex, nonceHex    string
		createdAt, updatedAt       string
	)
	if err := row.Scan(&c.CredentialID, &c.TenantID, &c.ToolName, &c.CredentialType, &ciphertextHex, &nonceHex, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}

	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	c.Ciphertext = ciphertext
	c.Nonce = nonce
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &c, nil
}

// DeleteCredential removes a credential scoped to the exact tenant.
func (s *SQLStore) DeleteCredential(ctx context.Context, credentialID, tenantID string) error {
	query := fmt.Sprintf(`DELETE FROM credentials WHERE credential_id = %s AND tenant_id = %s`, s.ph(1), s.ph(2))
	_, err := s.db.ExecContext(ctx, query, credentialID, tenantID)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}
