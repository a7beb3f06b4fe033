package intent_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/intent"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
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

func TestManager_SetThenGetRoundTrips(t *testing.T) {
	m := intent.New(newTestStore(t))
	ctx := context.Background()

	in := &policy.IntentContract{
		IntentID:  "intent-1",
		Objective: "handle inbox",
		Scope:     map[string][]string{"email": {"read", "send"}},
		RiskLevel: policy.RiskMedium,
	}
	require.NoError(t, m.Set(ctx, in))

	got, err := m.Get(ctx, "intent-1")
	require.NoError(t, err)
	assert.Equal(t, "handle inbox", got.Objective)
	assert.True(t, got.AllowsToolOp("email", "send"))
	assert.False(t, got.CreatedAt.IsZero())
}

func TestManager_GetUnknownReturnsDefaultDeny(t *testing.T) {
	m := intent.New(newTestStore(t))
	got, err := m.Get(context.Background(), "nope")
	assert.Error(t, err)
	assert.Equal(t, "default-deny", got.IntentID)
	assert.Empty(t, got.Scope)
}

func TestManager_SetPreservesOriginalCreatedAt(t *testing.T) {
	m := intent.New(newTestStore(t))
	ctx := context.Background()

	first := &policy.IntentContract{IntentID: "intent-2", Scope: map[string][]string{}}
	require.NoError(t, m.Set(ctx, first))
	firstCreated := first.CreatedAt

	second := &policy.IntentContract{IntentID: "intent-2", Objective: "updated", Scope: map[string][]string{}}
	require.NoError(t, m.Set(ctx, second))

	assert.Equal(t, firstCreated, second.CreatedAt)
}
