// Package audit records the governor's decisions and exposes the query
// surface behind /decisions and /audit/query. It is a flat, queryable log,
// not a hash-chained ledger: cryptographic non-repudiation is explicitly out
// of scope, unlike helm's signed receipt store.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/store"
)

// Recorder persists Action/Decision pairs and answers audit queries.
type Recorder struct {
	store store.Store
}

// New builds a Recorder over the given Store.
func New(s store.Store) *Recorder {
	return &Recorder{store: s}
}

// DecisionID is deterministic per action: "dec-<action_id>-<unix_nano>".
// Recording the same Action (same ID and RequestedAt) twice yields the same
// decision_id, so RecordDecision's ON CONFLICT DO NOTHING keeps one row.
// Each /execute request builds a new Action, so a retried request gets a
// new decision_id.
func DecisionID(actionID string, at time.Time) string {
	return fmt.Sprintf("dec-%s-%d", actionID, at.UnixNano())
}

// Record writes one AuditEvent for an evaluated action.
func (r *Recorder) Record(ctx context.Context, action *policy.Action, decision policy.Decision, intentID, agentID, tenantID string) error {
	paramsJSON, err := json.Marshal(action.Params)
	if err != nil {
		return fmt.Errorf("audit: marshal params: %w", err)
	}

	now := time.Now().UTC()
	event := &store.AuditEvent{
		EventID:       uuid.NewString(),
		DecisionID:    DecisionID(action.ID, action.RequestedAt),
		ActionID:      action.ID,
		IntentID:      intentID,
		AgentID:       agentID,
		TenantID:      tenantID,
		Tool:          string(action.Tool),
		Op:            action.Op,
		ParamsJSON:    string(paramsJSON),
		Verdict:       string(decision.Verdict),
		ReasonCode:    string(decision.ReasonCode),
		Explanation:   decision.Explanation,
		PolicyVersion: decision.PolicyVersion,
		CreatedAt:     now,
	}
	return r.store.RecordDecision(ctx, event)
}

// Decisions answers GET /decisions/query.
func (r *Recorder) Decisions(ctx context.Context, f store.DecisionFilter) ([]store.AuditEvent, int, error) {
	return r.store.QueryDecisions(ctx, f)
}

// Get answers GET /decisions/{id}.
func (r *Recorder) Get(ctx context.Context, decisionID string) (*store.AuditEvent, error) {
	return r.store.GetDecision(ctx, decisionID)
}

// Events answers GET /audit/query.
func (r *Recorder) Events(ctx context.Context, f store.AuditFilter) ([]store.AuditEvent, int, error) {
	return r.store.QueryAudit(ctx, f)
}

// Timeseries answers GET /timeseries: verdict counts bucketed since a cutoff.
func (r *Recorder) Timeseries(ctx context.Context, since time.Time, bucket time.Duration) ([]store.TimeseriesPoint, error) {
	return r.store.Timeseries(ctx, since, bucket)
}

// BlockReasons answers GET /block-reasons.
func (r *Recorder) BlockReasons(ctx context.Context, since time.Time) ([]store.BlockReasonCount, error) {
	return r.store.BlockReasons(ctx, since)
}
