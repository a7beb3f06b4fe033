package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RememberMemory stores or overwrites a tenant-scoped key/value fact. Unlike
// credentials, memory items have no composite uniqueness constraint beyond
// (tenant_id, key) by convention, so a write replaces any prior row with the
// same key for that tenant.
func (s *SQLStore) RememberMemory(ctx context.Context, m *MemoryItem) error {
	if m.MemoryID == "" {
		m.MemoryID = uuid.NewString()
	}
	if _, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM memory_items WHERE tenant_id = %s AND key = %s`, s.ph(1), s.ph(2)),
		m.TenantID, m.Key,
	); err != nil {
		return fmt.Errorf("remember memory: clear prior: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO memory_items (memory_id, tenant_id, agent_id, key, value, created_at)
		VALUES (%s, %s, %s, %s, %s, %s)
	`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))

	_, err := s.db.ExecContext(ctx, query, m.MemoryID, m.TenantID, m.AgentID, m.Key, m.Value, s.now().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("remember memory: %w", err)
	}
	return nil
}

// RecallMemory returns the stored value for (tenant_id, key), or
// (nil, sql.ErrNoRows) if nothing has been remembered under that key.
func (s *SQLStore) RecallMemory(ctx context.Context, tenantID, key string) (*MemoryItem, error) {
	query := fmt.Sprintf(`
		SELECT memory_id, tenant_id, agent_id, key, value, created_at
		FROM memory_items WHERE tenant_id = %s AND key = %s
	`, s.ph(1), s.ph(2))

	row := s.db.QueryRowContext(ctx, query, tenantID, key)

	var m MemoryItem
	var createdAt string
	if err := row.Scan(&m.MemoryID, &m.TenantID, &m.AgentID, &m.Key, &m.Value, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("recall memory: %w", err)
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &m, nil
}

// ListMemory returns every fact remembered for a tenant, most recent first.
func (s *SQLStore) ListMemory(ctx context.Context, tenantID string) ([]MemoryItem, error) {
	query := fmt.Sprintf(`
		SELECT memory_id, tenant_id, agent_id, key, value, created_at
		FROM memory_items WHERE tenant_id = %s ORDER BY created_at DESC
	`, s.ph(1))

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list memory: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []MemoryItem
	for rows.Next() {
		var m MemoryItem
		var createdAt string
		if err := rows.Scan(&m.MemoryID, &m.TenantID, &m.AgentID, &m.Key, &m.Value, &createdAt); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}
