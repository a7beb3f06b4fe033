package api

import (
	"net/http"
	"time"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/apierror"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/connector"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
)

type executeRequest struct {
	Tool          string         `json:"tool"`
	Op            string         `json:"op"`
	Params        map[string]any `json:"params"`
	IntentID      string         `json:"intent_id"`
	AgentID       string         `json:"agent_id"`
	Source        string         `json:"source"`
	Tags          []string       `json:"tags"`
	EstimatedRisk string         `json:"estimated_risk"`
	CredentialID  string         `json:"credential_id"`
}

type executeResponse struct {
	ActionID string            `json:"action_id"`
	Decision policy.Decision   `json:"decision"`
	Result   *connector.Result `json:"result,omitempty"`
}

func actionSource(s string) policy.ActionSource {
	switch policy.ActionSource(s) {
	case policy.SourceUser, policy.SourceDelegated:
		return policy.ActionSource(s)
	default:
		return policy.SourceAgent
	}
}

// handleExecute is POST /execute: build an Action from the request, run it
// through the evaluator, persist the decision, and dispatch to the
// connector registry when the verdict allows it.
func (gw *Gateway) handleExecute(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req executeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Tool == "" || req.Op == "" {
		apierror.BadRequest(w, "tool and op are required")
		return
	}

	action := policy.NewAction(policy.Tool(req.Tool), req.Op, req.Params, actionSource(req.Source))
	if len(req.Tags) > 0 {
		action.Tags = req.Tags
	}
	if req.EstimatedRisk != "" {
		action.EstimatedRisk = policy.RiskLevel(req.EstimatedRisk)
	}

	agentID := requestAgentID(r, req.AgentID)
	intentID := requestIntentID(r, req.IntentID)

	intentContract, _ := gw.Intents.Get(r.Context(), intentID)

	start := time.Now().UTC()
	decision := gw.Evaluator.Evaluate(action, intentContract, start, gw.History)
	gw.Telemetry.RecordEvaluatorDuration(time.Since(start))
	gw.Telemetry.RecordDecision(string(decision.Verdict), string(decision.ReasonCode))

	if err := gw.Audit.Record(r.Context(), action, decision, intentID, agentID, tenantID); err != nil {
		apierror.Internal(w, err)
		return
	}

	resp := executeResponse{ActionID: action.ID, Decision: decision}

	if decision.Verdict == policy.VerdictAllow || decision.Verdict == policy.VerdictDegrade {
		dispatchAction := action
		if decision.Verdict == policy.VerdictDegrade && decision.SafeAlternative != nil {
			dispatchAction = decision.SafeAlternative
		}
		result := gw.dispatch(w, r, dispatchAction, tenantID, req.CredentialID)
		if result == nil {
			return // dispatch already wrote a 503 or 401 response
		}
		resp.Result = result
	}

	writeJSON(w, http.StatusOK, resp)
}

// dispatch builds the tool's connector and invokes it. A non-nil Connector
// error means the downstream was unreachable and the caller gets a 503
// directly (this returns nil to signal the caller already wrote a
// response). An upstream 401 (an expired or revoked credential) is mapped
// through as a real 401 for the same reason. Any other failure —
// unregistered tool, missing credential, a non-401 upstream 4xx/5xx — is
// folded into a Result{OK:false} the handler still returns as part of a
// 200 envelope.
func (gw *Gateway) dispatch(w http.ResponseWriter, r *http.Request, action *policy.Action, tenantID, credentialOverride string) *connector.Result {
	credID := credentialID(string(action.Tool), tenantID, credentialOverride)

	conn, err := gw.Connectors.Build(r.Context(), string(action.Tool), credID, tenantID)
	if err != nil {
		return &connector.Result{OK: false, Error: err.Error()}
	}

	result, err := conn.Invoke(r.Context(), action)
	if err != nil {
		apierror.ServiceUnavailable(w, "")
		return nil
	}
	if result.UpstreamStatus == http.StatusUnauthorized {
		apierror.Unauthorized(w, result.Error)
		return nil
	}
	return &result
}

type clawdbotInvokeRequest struct {
	Tool     string         `json:"tool"`
	Params   map[string]any `json:"params"`
	IntentID string         `json:"intent_id"`
	AgentID  string         `json:"agent_id"`
	Source   string         `json:"source"`
}

// handleClawdbotInvoke is POST /clawdbot/invoke (aliased at /edon/invoke):
// the super-tool proxy path. The governed op is always "invoke" — every
// policy pack grants clawdbot/invoke unconditionally — and the caller's
// inner tool name rides through in params for the upstream to act on.
func (gw *Gateway) handleClawdbotInvoke(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req clawdbotInvokeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Tool == "" {
		apierror.BadRequest(w, "tool is required")
		return
	}

	params := make(map[string]any, len(req.Params)+1)
	for k, v := range req.Params {
		params[k] = v
	}
	params["tool"] = req.Tool

	action := policy.NewAction(policy.ToolClawdbot, "invoke", params, actionSource(req.Source))

	agentID := requestAgentID(r, req.AgentID)
	intentID := requestIntentID(r, req.IntentID)
	intentContract, _ := gw.Intents.Get(r.Context(), intentID)

	start := time.Now().UTC()
	decision := gw.Evaluator.Evaluate(action, intentContract, start, gw.History)
	gw.Telemetry.RecordEvaluatorDuration(time.Since(start))
	gw.Telemetry.RecordDecision(string(decision.Verdict), string(decision.ReasonCode))

	if err := gw.Audit.Record(r.Context(), action, decision, intentID, agentID, tenantID); err != nil {
		apierror.Internal(w, err)
		return
	}

	resp := executeResponse{ActionID: action.ID, Decision: decision}

	if decision.Verdict == policy.VerdictAllow || decision.Verdict == policy.VerdictDegrade {
		dispatchAction := action
		if decision.Verdict == policy.VerdictDegrade && decision.SafeAlternative != nil {
			dispatchAction = decision.SafeAlternative
		}
		result := gw.dispatch(w, r, dispatchAction, tenantID, "")
		if result == nil {
			return
		}
		resp.Result = result
	}

	writeJSON(w, http.StatusOK, resp)
}
