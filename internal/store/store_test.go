package store_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/store"
)

func newTestStore(t *testing.T) *store.SQLStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "edon-test.db")
	s, err := store.Open(context.Background(), "", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndGetIntent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	intent := &policy.IntentContract{
		IntentID:       "it-1",
		Objective:      "send status emails",
		Scope:          map[string][]string{"email": {"send", "draft"}},
		Constraints:    map[string]any{"drafts_only": true},
		RiskLevel:      policy.RiskLow,
		ApprovedByUser: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, s.SaveIntent(ctx, intent))

	got, err := s.GetIntent(ctx, "it-1")
	require.NoError(t, err)
	assert.Equal(t, intent.Objective, got.Objective)
	assert.Equal(t, intent.Scope, got.Scope)
	assert.True(t, got.ApprovedByUser)
	assert.Equal(t, true, got.Constraints["drafts_only"])
}

func TestGetIntent_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetIntent(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSaveIntent_UpsertOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	intent := &policy.IntentContract{IntentID: "it-2", Objective: "v1", Scope: map[string][]string{}, Constraints: map[string]any{}, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.SaveIntent(ctx, intent))

	intent.Objective = "v2"
	intent.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, s.SaveIntent(ctx, intent))

	got, err := s.GetIntent(ctx, "it-2")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Objective)
}

func TestRecordDecisionAndQueryAudit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &store.AuditEvent{
		EventID: "ev-1", DecisionID: "dec-1", ActionID: "act-1",
		TenantID: "t-1", AgentID: "agent-1", Tool: "email", Op: "send",
		ParamsJSON: `{}`, Verdict: "ALLOW", ReasonCode: "APPROVED",
		Explanation: "ok", PolicyVersion: "policy-v1", CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.RecordDecision(ctx, e))

	got, err := s.GetDecision(ctx, "dec-1")
	require.NoError(t, err)
	assert.Equal(t, "act-1", got.ActionID)

	events, total, err := s.QueryAudit(ctx, store.AuditFilter{TenantID: "t-1", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, "dec-1", events[0].DecisionID)
}

func TestRecordDecision_DuplicateDecisionIDIsNoOp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := &store.AuditEvent{EventID: "ev-a", DecisionID: "dec-dup", ActionID: "act-a", Tool: "file", Op: "read", ParamsJSON: "{}", Verdict: "ALLOW", ReasonCode: "APPROVED", Explanation: "ok", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.RecordDecision(ctx, e))

	e2 := *e
	e2.EventID = "ev-b"
	e2.Explanation = "different"
	require.NoError(t, s.RecordDecision(ctx, &e2))

	got, err := s.GetDecision(ctx, "dec-dup")
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Explanation)
}

func TestBlockReasons(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, reason := range []string{"SCOPE_VIOLATION", "SCOPE_VIOLATION", "RISK_TOO_HIGH"} {
		e := &store.AuditEvent{
			EventID: "ev-" + string(rune('a'+i)), DecisionID: "dec-" + string(rune('a'+i)),
			ActionID: "act", Tool: "file", Op: "read", ParamsJSON: "{}",
			Verdict: "BLOCK", ReasonCode: reason, Explanation: "x", CreatedAt: now,
		}
		require.NoError(t, s.RecordDecision(ctx, e))
	}

	counts, err := s.BlockReasons(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.NotEmpty(t, counts)
	assert.Equal(t, "SCOPE_VIOLATION", counts[0].ReasonCode)
	assert.Equal(t, 2, counts[0].Count)
}

func TestCredentials_StrictTenantIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.SetCredential(ctx, &store.Credential{
		CredentialID: "cred-1", TenantID: "tenant-a", ToolName: "gmail", CredentialType: "oauth",
		Ciphertext: []byte("ciphertext-a"), Nonce: []byte("nonce-a"), CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, s.SetCredential(ctx, &store.Credential{
		CredentialID: "cred-1", TenantID: "tenant-b", ToolName: "gmail", CredentialType: "oauth",
		Ciphertext: []byte("ciphertext-b"), Nonce: []byte("nonce-b"), CreatedAt: now, UpdatedAt: now,
	}))

	got, err := s.GetCredential(ctx, "cred-1", "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, []byte("ciphertext-a"), got.Ciphertext)

	_, err = s.GetCredential(ctx, "cred-1", "tenant-c")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCredentials_MostRecentlyWrittenWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.SetCredential(ctx, &store.Credential{
		CredentialID: "cred-2", TenantID: "tenant-a", ToolName: "github", CredentialType: "pat",
		Ciphertext: []byte("first"), Nonce: []byte("n1"), CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, s.SetCredential(ctx, &store.Credential{
		CredentialID: "cred-2", TenantID: "tenant-a", ToolName: "github", CredentialType: "pat",
		Ciphertext: []byte("second"), Nonce: []byte("n2"), CreatedAt: now, UpdatedAt: now.Add(time.Minute),
	}))

	got, err := s.GetCredential(ctx, "cred-2", "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got.Ciphertext)
}

func TestIncrementCounter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	windowStart := time.Now().UTC().Truncate(time.Minute)

	c1, err := s.IncrementCounter(ctx, "default", "agent-1", windowStart)
	require.NoError(t, err)
	assert.Equal(t, 1, c1)

	c2, err := s.IncrementCounter(ctx, "default", "agent-1", windowStart)
	require.NoError(t, err)
	assert.Equal(t, 2, c2)

	c3, err := s.IncrementCounter(ctx, "default", "agent-2", windowStart)
	require.NoError(t, err)
	assert.Equal(t, 1, c3)
}

func TestActivePolicyPreset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	name, err := s.GetActivePolicyPreset(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", name)

	require.NoError(t, s.SetActivePolicyPreset(ctx, "standard"))
	name, err = s.GetActivePolicyPreset(ctx)
	require.NoError(t, err)
	assert.Equal(t, "standard", name)

	require.NoError(t, s.SetActivePolicyPreset(ctx, "elevated"))
	name, err = s.GetActivePolicyPreset(ctx)
	require.NoError(t, err)
	assert.Equal(t, "elevated", name)
}

func TestConnectCodeConsumeOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateConnectCode(ctx, &store.ConnectCode{
		Code: "code-1", TenantID: "t-1", UserID: "u-1", Channel: "slack",
		ExpiresAt: now.Add(time.Hour), CreatedAt: now,
	}))

	got, err := s.ConsumeConnectCode(ctx, "code-1", now)
	require.NoError(t, err)
	assert.Equal(t, "t-1", got.TenantID)

	_, err = s.ConsumeConnectCode(ctx, "code-1", now)
	assert.Error(t, err)
}

func TestConnectCodeExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateConnectCode(ctx, &store.ConnectCode{
		Code: "code-2", TenantID: "t-1", UserID: "u-1", Channel: "slack",
		ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-time.Hour),
	}))

	_, err := s.ConsumeConnectCode(ctx, "code-2", now)
	assert.Error(t, err)
}
