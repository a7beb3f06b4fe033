package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
)

// SaveIntent upserts an IntentContract keyed by IntentID.
func (s *SQLStore) SaveIntent(ctx context.Context, intent *policy.IntentContract) error {
	scopeJSON, err := json.Marshal(intent.Scope)
	if err != nil {
		return fmt.Errorf("marshal scope: %w", err)
	}
	constraintsJSON, err := json.Marshal(intent.Constraints)
	if err != nil {
		return fmt.Errorf("marshal constraints: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO intents (intent_id, objective, scope_json, constraints_json, risk_level, approved_by_user, created_at, updated_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s)
		ON CONFLICT (intent_id) DO UPDATE SET
			objective = excluded.objective,
			scope_json = excluded.scope_json,
			constraints_json = excluded.constraints_json,
			risk_level = excluded.risk_level,
			approved_by_user = excluded.approved_by_user,
			updated_at = excluded.updated_at
	`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8))

	_, err = s.db.ExecContext(ctx, query,
		intent.IntentID, intent.Objective, string(scopeJSON), string(constraintsJSON),
		string(intent.RiskLevel), boolToInt(intent.ApprovedByUser),
		intent.CreatedAt.UTC().Format(time.RFC3339Nano), intent.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save intent: %w", err)
	}
	return nil
}

// GetIntent returns the stored IntentContract, or (nil, sql.ErrNoRows) if unknown.
func (s *SQLStore) GetIntent(ctx context.Context, intentID string) (*policy.IntentContract, error) {
	query := fmt.Sprintf(`
		SELECT intent_id, objective, scope_json, constraints_json, risk_level, approved_by_user, created_at, updated_at
		FROM intents WHERE intent_id = %s
	`, s.ph(1))

	row := s.db.QueryRowContext(ctx, query, intentID)

	var (
		id, objective, scopeJSON, constraintsJSON, risk, createdAt, updatedAt string
		approved                                                             int
	)
	if err := row.Scan(&id, &objective, &scopeJSON, &constraintsJSON, &risk, &approved, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get intent: %w", err)
	}

	intent := &policy.IntentContract{
		IntentID:       id,
		Objective:      objective,
		RiskLevel:      policy.RiskLevel(risk),
		ApprovedByUser: approved != 0,
	}
	if err := json.Unmarshal([]byte(scopeJSON), &intent.Scope); err != nil {
		return nil, fmt.Errorf("unmarshal scope: %w", err)
	}
	if err := json.Unmarshal([]byte(constraintsJSON), &intent.Constraints); err != nil {
		return nil, fmt.Errorf("unmarshal constraints: %w", err)
	}
	intent.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	intent.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return intent, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
