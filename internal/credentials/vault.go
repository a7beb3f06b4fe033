// Package credentials provides encrypted-at-rest storage for connector
// secrets, following helm's AES-256-GCM vault pattern, generalized from
// per-provider OAuth tokens to arbitrary tool credential payloads and
// strict per-tenant scoping.
package credentials

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/store"
)

// Input is the caller-supplied payload for POST /credentials/set.
type Input struct {
	CredentialID   string
	TenantID       string
	ToolName       string
	CredentialType string
	CredentialData map[string]any
}

// Vault encrypts credential payloads at rest and enforces strict tenant
// scoping: Get never falls back across tenant boundaries.
type Vault struct {
	store  store.Store
	encKey []byte
	mu     sync.RWMutex
}

// New builds a Vault. encKey must be exactly 32 bytes (AES-256).
func New(s store.Store, encKey []byte) (*Vault, error) {
	if len(encKey) != 32 {
		return nil, errors.New("credentials: encryption key must be 32 bytes for AES-256")
	}
	return &Vault{store: s, encKey: encKey}, nil
}

// Set encrypts and upserts a credential. Never returns the plaintext it was
// given; callers only ever see a {"status":"saved"} acknowledgment.
func (v *Vault) Set(ctx context.Context, in Input) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	plaintext, err := json.Marshal(in.CredentialData)
	if err != nil {
		return fmt.Errorf("credentials: marshal payload: %w", err)
	}

	ciphertext, nonce, err := v.encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("credentials: encrypt: %w", err)
	}

	now := time.Now().UTC()
	return v.store.SetCredential(ctx, &store.Credential{
		CredentialID:   in.CredentialID,
		TenantID:       in.TenantID,
		ToolName:       in.ToolName,
		CredentialType: in.CredentialType,
		Ciphertext:     ciphertext,
		Nonce:          nonce,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

// Get decrypts and returns the credential payload for (credential_id,
// tenant_id) exactly — never used by any HTTP handler, only by connector
// construction. The vault is write-only at the handler layer.
func (v *Vault) Get(ctx context.Context, credentialID, tenantID string) (map[string]any, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	row, err := v.store.GetCredential(ctx, credentialID, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("credentials: lookup: %w", err)
	}

	plaintext, err := v.decrypt(row.Ciphertext, row.Nonce)
	if err != nil {
		return nil, fmt.Errorf("credentials: decrypt: %w", err)
	}

	var data map[string]any
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, fmt.Errorf("credentials: unmarshal payload: %w", err)
	}
	return data, nil
}

// Delete removes a credential scoped to the exact tenant.
func (v *Vault) Delete(ctx context.Context, credentialID, tenantID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.store.DeleteCredential(ctx, credentialID, tenantID)
}

func (v *Vault) encrypt(plaintext []byte) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(v.encKey)
	if err != nil {
		return nil, nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("new gcm: %w", err)
	}
	nonce = make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

func (v *Vault) decrypt(ciphertext, nonce []byte) ([]byte, error) {
	block, err := aes.NewCipher(v.encKey)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	return plaintext, nil
}
