package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// RecordDecision persists one AuditEvent. decision_id is unique, so a retried
// submission with the same action_id/decision_id is a no-op rather than a
// duplicate row: exactly one audit/decision pair per action id.
func (s *SQLStore) RecordDecision(ctx context.Context, e *AuditEvent) error {
	query := fmt.Sprintf(`
		INSERT INTO audit_events (event_id, decision_id, action_id, intent_id, agent_id, tenant_id, tool, op, params_json, verdict, reason_code, explanation, policy_version, created_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		ON CONFLICT (decision_id) DO NOTHING
	`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9), s.ph(10), s.ph(11), s.ph(12), s.ph(13), s.ph(14))

	_, err := s.db.ExecContext(ctx, query,
		e.EventID, e.DecisionID, e.ActionID, e.IntentID, e.AgentID, e.TenantID,
		e.Tool, e.Op, e.ParamsJSON, e.Verdict, e.ReasonCode, e.Explanation, e.PolicyVersion,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

const auditSelectColumns = `event_id, decision_id, action_id, intent_id, agent_id, tenant_id, tool, op, params_json, verdict, reason_code, explanation, policy_version, created_at`

// GetDecision returns the AuditEvent for a decision_id, or sql.ErrNoRows.
func (s *SQLStore) GetDecision(ctx context.Context, decisionID string) (*AuditEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM audit_events WHERE decision_id = %s`, auditSelectColumns, s.ph(1))
	row := s.db.QueryRowContext(ctx, query, decisionID)
	return scanAuditEvent(row)
}

// QueryDecisions filters audit_events the same way QueryAudit does; kept as
// a distinct method because the decisions/query and audit/query endpoints
// differ slightly in default limit and required fields at the handler layer.
func (s *SQLStore) QueryDecisions(ctx context.Context, f DecisionFilter) ([]AuditEvent, int, error) {
	return s.queryAuditEvents(ctx, AuditFilter{
		TenantID: f.TenantID,
		AgentID:  f.AgentID,
		Since:    f.Since,
		Until:    f.Until,
		Limit:    f.Limit,
	}, f.IntentID, f.Verdict)
}

// QueryAudit filters audit_events by tenant/agent/tool/time range.
func (s *SQLStore) QueryAudit(ctx context.Context, f AuditFilter) ([]AuditEvent, int, error) {
	return s.queryAuditEvents(ctx, f, "", "")
}

func (s *SQLStore) queryAuditEvents(ctx context.Context, f AuditFilter, intentID, verdict string) ([]AuditEvent, int, error) {
	var where []string
	var args []any

	add := func(col, val string) {
		if val == "" {
			return
		}
		args = append(args, val)
		where = append(where, fmt.Sprintf("%s = %s", col, s.ph(len(args))))
	}
	add("tenant_id", f.TenantID)
	add("agent_id", f.AgentID)
	add("tool", f.Tool)
	add("intent_id", intentID)
	add("verdict", verdict)

	if f.Since != nil {
		args = append(args, f.Since.UTC().Format(time.RFC3339Nano))
		where = append(where, fmt.Sprintf("created_at >= %s", s.ph(len(args))))
	}
	if f.Until != nil {
		args = append(args, f.Until.UTC().Format(time.RFC3339Nano))
		where = append(where, fmt.Sprintf("created_at <= %s", s.ph(len(args))))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM audit_events %s`, whereClause)
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	args = append(args, limit)
	listQuery := fmt.Sprintf(`SELECT %s FROM audit_events %s ORDER BY created_at DESC LIMIT %s`, auditSelectColumns, whereClause, s.ph(len(args)))

	rows, err := s.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []AuditEvent
	for rows.Next() {
		e, err := scanAuditEventRows(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// Timeseries buckets verdict counts into fixed-width windows since a cutoff.
func (s *SQLStore) Timeseries(ctx context.Context, since time.Time, bucket time.Duration) ([]TimeseriesPoint, error) {
	query := fmt.Sprintf(`SELECT verdict, created_at FROM audit_events WHERE created_at >= %s ORDER BY created_at ASC`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("query timeseries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := map[time.Time]map[string]int{}
	for rows.Next() {
		var verdict, createdAtStr string
		if err := rows.Scan(&verdict, &createdAtStr); err != nil {
			return nil, err
		}
		createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			continue
		}
		bucketStart := createdAt.Truncate(bucket)
		if counts[bucketStart] == nil {
			counts[bucketStart] = map[string]int{}
		}
		counts[bucketStart][verdict]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var points []TimeseriesPoint
	for bucketStart, verdicts := range counts {
		for verdict, count := range verdicts {
			points = append(points, TimeseriesPoint{BucketStart: bucketStart, Verdict: verdict, Count: count})
		}
	}
	return points, nil
}

// BlockReasons aggregates BLOCK-verdict reason codes since a cutoff.
func (s *SQLStore) BlockReasons(ctx context.Context, since time.Time) ([]BlockReasonCount, error) {
	query := fmt.Sprintf(`
		SELECT reason_code, COUNT(*) FROM audit_events
		WHERE verdict = 'BLOCK' AND created_at >= %s
		GROUP BY reason_code
		ORDER BY COUNT(*) DESC
	`, s.ph(1))
	rows, err := s.db.QueryContext(ctx, query, since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("query block reasons: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []BlockReasonCount
	for rows.Next() {
		var c BlockReasonCount
		if err := rows.Scan(&c.ReasonCode, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAuditEvent(row *sql.Row) (*AuditEvent, error) {
	e, err := scanAuditEventCommon(row)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	return e, err
}

func scanAuditEventRows(rows *sql.Rows) (*AuditEvent, error) {
	return scanAuditEventCommon(rows)
}

func scanAuditEventCommon(s scannable) (*AuditEvent, error) {
	var e AuditEvent
	var createdAt string
	if err := s.Scan(&e.EventID, &e.DecisionID, &e.ActionID, &e.IntentID, &e.AgentID, &e.TenantID,
		&e.Tool, &e.Op, &e.ParamsJSON, &e.Verdict, &e.ReasonCode, &e.Explanation, &e.PolicyVersion, &createdAt); err != nil {
		return nil, err
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &e, nil
}
