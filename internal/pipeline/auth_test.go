package pipeline_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/auth"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/pipeline"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "edon-test.db")
	s, err := store.Open(context.Background(), "", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestAuthentication_SkipsPublicPaths(t *testing.T) {
	s := newTestStore(t)
	resolver := auth.NewResolver(s, nil, "", false)
	called := false

	handler := pipeline.Authentication(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthentication_RejectsMissingToken(t *testing.T) {
	s := newTestStore(t)
	resolver := auth.NewResolver(s, nil, "", false)

	handler := pipeline.Authentication(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without a valid token")
	}))

	req := httptest.NewRequest(http.MethodPost, "/execute", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthentication_AttachesPrincipalAndAgentID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateTenant(ctx, &store.Tenant{TenantID: "t-1", Name: "Acme", Plan: "pro", Status: "active", CreatedAt: time.Now()}))
	require.NoError(t, s.CreateUser(ctx, &store.User{UserID: "u-1", TenantID: "t-1", Email: "a@acme.test", CreatedAt: time.Now()}))
	require.NoError(t, s.CreateAPIKey(ctx, &store.ApiKey{KeyID: "k-1", UserID: "u-1", TenantID: "t-1", KeyHash: sha256Hex("tok-1"), CreatedAt: time.Now()}))

	resolver := auth.NewResolver(s, nil, "", false)

	var gotTenant string
	handler := pipeline.Authentication(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tid, err := auth.GetTenantID(r.Context())
		require.NoError(t, err)
		gotTenant = tid
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/execute", nil)
	req.Header.Set("X-EDON-TOKEN", "tok-1")
	req.Header.Set("X-Agent-ID", "agent-7")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t-1", gotTenant)
}

func TestAuthentication_InactiveTenantGets402(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateTenant(ctx, &store.Tenant{TenantID: "t-2", Name: "Suspended", Plan: "free", Status: "suspended", CreatedAt: time.Now()}))
	require.NoError(t, s.CreateUser(ctx, &store.User{UserID: "u-2", TenantID: "t-2", Email: "b@x.test", CreatedAt: time.Now()}))
	require.NoError(t, s.CreateAPIKey(ctx, &store.ApiKey{KeyID: "k-2", UserID: "u-2", TenantID: "t-2", KeyHash: sha256Hex("tok-2"), CreatedAt: time.Now()}))

	resolver := auth.NewResolver(s, nil, "", false)
	handler := pipeline.Authentication(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run for an inactive tenant")
	}))

	req := httptest.NewRequest(http.MethodPost, "/execute", nil)
	req.Header.Set("X-EDON-TOKEN", "tok-2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}
