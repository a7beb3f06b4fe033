package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/apierror"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/store"
)

const defaultQueryLimit = 100

// parseLimit enforces the query surface's limit boundary: 0 is rejected
// outright rather than silently treated as "unbounded", and anything over
// 1000 is rejected rather than silently clamped — the store layer's own
// clamp-to-100 exists only for callers that skip this check.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultQueryLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		apierror.BadRequest(w, "limit must be an integer")
		return 0, false
	}
	if n <= 0 {
		apierror.BadRequest(w, "limit must be greater than 0")
		return 0, false
	}
	if n > 1000 {
		apierror.BadRequest(w, "limit must not exceed 1000")
		return 0, false
	}
	return n, true
}

func parseSince(w http.ResponseWriter, r *http.Request) (*time.Time, bool) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		apierror.BadRequest(w, "since must be an RFC3339 timestamp")
		return nil, false
	}
	return &t, true
}

func parseUntil(w http.ResponseWriter, r *http.Request) (*time.Time, bool) {
	raw := r.URL.Query().Get("until")
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		apierror.BadRequest(w, "until must be an RFC3339 timestamp")
		return nil, false
	}
	return &t, true
}

type queryResponse struct {
	Events []store.AuditEvent `json:"events"`
	Total  int                `json:"total"`
}

// handleDecisionsQuery is GET /decisions/query.
func (gw *Gateway) handleDecisionsQuery(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	since, ok := parseSince(w, r)
	if !ok {
		return
	}
	until, ok := parseUntil(w, r)
	if !ok {
		return
	}

	f := store.DecisionFilter{
		TenantID: tenantID,
		AgentID:  r.URL.Query().Get("agent_id"),
		IntentID: r.URL.Query().Get("intent_id"),
		Verdict:  r.URL.Query().Get("verdict"),
		Since:    since,
		Until:    until,
		Limit:    limit,
	}

	events, total, err := gw.Audit.Decisions(r.Context(), f)
	if err != nil {
		apierror.Internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Events: events, Total: total})
}

// handleDecisionGet is GET /decisions/{id}.
func (gw *Gateway) handleDecisionGet(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireTenant(w, r); !ok {
		return
	}

	id := chi.URLParam(r, "id")
	event, err := gw.Audit.Get(r.Context(), id)
	if err != nil {
		apierror.NotFound(w, "decision not found")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// handleAuditQuery is GET /audit/query.
func (gw *Gateway) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	since, ok := parseSince(w, r)
	if !ok {
		return
	}
	until, ok := parseUntil(w, r)
	if !ok {
		return
	}

	f := store.AuditFilter{
		TenantID: tenantID,
		AgentID:  r.URL.Query().Get("agent_id"),
		Tool:     r.URL.Query().Get("tool"),
		Since:    since,
		Until:    until,
		Limit:    limit,
	}

	events, total, err := gw.Audit.Events(r.Context(), f)
	if err != nil {
		apierror.Internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Events: events, Total: total})
}

// handleTimeseries is GET /timeseries?since=...&bucket_minutes=....
func (gw *Gateway) handleTimeseries(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireTenant(w, r); !ok {
		return
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			apierror.BadRequest(w, "since must be an RFC3339 timestamp")
			return
		}
		since = t
	}

	bucket := time.Hour
	if raw := r.URL.Query().Get("bucket_minutes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			apierror.BadRequest(w, "bucket_minutes must be a positive integer")
			return
		}
		bucket = time.Duration(n) * time.Minute
	}

	points, err := gw.Audit.Timeseries(r.Context(), since, bucket)
	if err != nil {
		apierror.Internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": points})
}

// handleBlockReasons is GET /block-reasons?since=....
func (gw *Gateway) handleBlockReasons(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireTenant(w, r); !ok {
		return
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			apierror.BadRequest(w, "since must be an RFC3339 timestamp")
			return
		}
		since = t
	}

	reasons, err := gw.Audit.BlockReasons(r.Context(), since)
	if err != nil {
		apierror.Internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reasons": reasons})
}
