package connector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/credentials"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/store"
)

// MemoryStore is the narrow persistence surface the memory connector needs,
// satisfied by store.Store.
type MemoryStore interface {
	RememberMemory(ctx context.Context, m *store.MemoryItem) error
	RecallMemory(ctx context.Context, tenantID, key string) (*store.MemoryItem, error)
	ListMemory(ctx context.Context, tenantID string) ([]store.MemoryItem, error)
}

// MemoryConnector backs the agent's long-lived "remember"/"recall" tool. It
// needs no credential — the tenant boundary alone scopes the data, the same
// way the filesystem connector scopes by sandbox root rather than a secret.
type MemoryConnector struct {
	backing  MemoryStore
	tenantID string
}

// NewMemoryConnectorFactory closes over the backing MemoryStore.
func NewMemoryConnectorFactory(backing MemoryStore) Factory {
	return func(ctx context.Context, vault *credentials.Vault, credentialID, tenantID string) (Connector, error) {
		if backing == nil {
			return nil, fmt.Errorf("memory: no backing store configured")
		}
		return &MemoryConnector{backing: backing, tenantID: tenantID}, nil
	}
}

func (c *MemoryConnector) Invoke(ctx context.Context, action *policy.Action) (Result, error) {
	switch action.Op {
	case "remember":
		return c.remember(ctx, action)
	case "recall":
		return c.recall(ctx, action)
	case "list":
		return c.list(ctx)
	default:
		return Result{OK: false, Error: fmt.Sprintf("unsupported memory op %q", action.Op)}, nil
	}
}

func (c *MemoryConnector) remember(ctx context.Context, action *policy.Action) (Result, error) {
	key, _ := action.Params["key"].(string)
	value, _ := action.Params["value"].(string)
	if key == "" {
		return Result{OK: false, Error: "missing key"}, nil
	}
	agentID, _ := action.Params["agent_id"].(string)

	if err := c.backing.RememberMemory(ctx, &store.MemoryItem{
		TenantID: c.tenantID,
		AgentID:  agentID,
		Key:      key,
		Value:    value,
	}); err != nil {
		return Result{}, fmt.Errorf("memory: remember: %w", err)
	}
	return Result{OK: true, Output: map[string]any{"key": key}}, nil
}

func (c *MemoryConnector) recall(ctx context.Context, action *policy.Action) (Result, error) {
	key, _ := action.Params["key"].(string)
	if key == "" {
		return Result{OK: false, Error: "missing key"}, nil
	}

	item, err := c.backing.RecallMemory(ctx, c.tenantID, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{OK: false, Error: fmt.Sprintf("nothing remembered for key %q", key)}, nil
		}
		return Result{}, fmt.Errorf("memory: recall: %w", err)
	}
	return Result{OK: true, Output: map[string]any{"key": item.Key, "value": item.Value}}, nil
}

func (c *MemoryConnector) list(ctx context.Context) (Result, error) {
	items, err := c.backing.ListMemory(ctx, c.tenantID)
	if err != nil {
		return Result{}, fmt.Errorf("memory: list: %w", err)
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]any{"key": item.Key, "value": item.Value})
	}
	return Result{OK: true, Output: map[string]any{"items": out}}, nil
}
