package credentials_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/credentials"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/store"
)

func newTestVault(t *testing.T) *credentials.Vault {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "edon-test.db")
	s, err := store.Open(context.Background(), "", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	v, err := credentials.New(s, key)
	require.NoError(t, err)
	return v
}

func TestVault_SetAndGetRoundTrips(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, v.Set(ctx, credentials.Input{
		CredentialID: "gmail-1", TenantID: "t-1", ToolName: "gmail", CredentialType: "oauth",
		CredentialData: map[string]any{"access_token": "secret-abc", "refresh_token": "secret-xyz"},
	}))

	data, err := v.Get(ctx, "gmail-1", "t-1")
	require.NoError(t, err)
	assert.Equal(t, "secret-abc", data["access_token"])
}

func TestVault_CiphertextNeverStoredAsPlaintext(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "edon-test.db")
	s, err := store.Open(context.Background(), "", dbPath)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	key := make([]byte, 32)
	v, err := credentials.New(s, key)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, v.Set(ctx, credentials.Input{
		CredentialID: "cred-x", TenantID: "t-1", ToolName: "github", CredentialType: "pat",
		CredentialData: map[string]any{"token": "ghp_verysecretvalue"},
	}))

	row, err := s.GetCredential(ctx, "cred-x", "t-1")
	require.NoError(t, err)
	assert.NotContains(t, string(row.Ciphertext), "ghp_verysecretvalue")
}

func TestVault_RejectsShortKey(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "edon-test.db")
	s, err := store.Open(context.Background(), "", dbPath)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, err = credentials.New(s, []byte("too-short"))
	assert.Error(t, err)
}

func TestVault_GetMissingReturnsNoRows(t *testing.T) {
	v := newTestVault(t)
	_, err := v.Get(context.Background(), "missing", "t-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestVault_DeleteIsTenantScoped(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, v.Set(ctx, credentials.Input{
		CredentialID: "cred-y", TenantID: "t-1", ToolName: "github", CredentialType: "pat",
		CredentialData: map[string]any{"token": "abc"},
	}))
	require.NoError(t, v.Set(ctx, credentials.Input{
		CredentialID: "cred-y", TenantID: "t-2", ToolName: "github", CredentialType: "pat",
		CredentialData: map[string]any{"token": "def"},
	}))

	require.NoError(t, v.Delete(ctx, "cred-y", "t-1"))

	_, err := v.Get(ctx, "cred-y", "t-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	data, err := v.Get(ctx, "cred-y", "t-2")
	require.NoError(t, err)
	assert.Equal(t, "def", data["token"])
}
