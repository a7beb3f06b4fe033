// Package intent is a thin CRUD wrapper over the Store's IntentContract
// table, the same shape as internal/audit's Recorder over decisions.
package intent

import (
	"context"
	"time"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/store"
)

// Manager persists and retrieves IntentContracts.
type Manager struct {
	store store.Store
}

// New builds a Manager over the given Store.
func New(s store.Store) *Manager {
	return &Manager{store: s}
}

// Set upserts an intent, stamping CreatedAt on first write and UpdatedAt on
// every write.
func (m *Manager) Set(ctx context.Context, i *policy.IntentContract) error {
	now := time.Now().UTC()
	if existing, err := m.store.GetIntent(ctx, i.IntentID); err == nil {
		i.CreatedAt = existing.CreatedAt
	} else {
		i.CreatedAt = now
	}
	i.UpdatedAt = now
	return m.store.SaveIntent(ctx, i)
}

// Get returns the stored intent, or policy.DefaultDenyIntent() if unknown,
// so a caller that forgot to set an intent still gets a well-formed
// default-deny contract rather than a nil-pointer surprise.
func (m *Manager) Get(ctx context.Context, intentID string) (*policy.IntentContract, error) {
	i, err := m.store.GetIntent(ctx, intentID)
	if err != nil {
		return policy.DefaultDenyIntent(), err
	}
	return i, nil
}
