package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SetActivePolicyPreset upserts the singleton active_policy_preset row.
func (s *SQLStore) SetActivePolicyPreset(ctx context.Context, name string) error {
	query := fmt.Sprintf(`
		INSERT INTO active_policy_preset (id, preset_name, updated_at) VALUES (1, %s, %s)
		ON CONFLICT (id) DO UPDATE SET preset_name = excluded.preset_name, updated_at = excluded.updated_at
	`, s.ph(1), s.ph(2))
	_, err := s.db.ExecContext(ctx, query, name, s.now().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set active policy preset: %w", err)
	}
	return nil
}

// GetActivePolicyPreset returns the currently active preset name, or "" if none set.
func (s *SQLStore) GetActivePolicyPreset(ctx context.Context) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT preset_name FROM active_policy_preset WHERE id = 1`)
	var name string
	if err := row.Scan(&name); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("get active policy preset: %w", err)
	}
	return name, nil
}
