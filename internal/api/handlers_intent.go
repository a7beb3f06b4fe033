package api

import (
	"net/http"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/apierror"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
)

type intentSetRequest struct {
	IntentID       string              `json:"intent_id"`
	Objective      string              `json:"objective"`
	Scope          map[string][]string `json:"scope"`
	Constraints    map[string]any      `json:"constraints"`
	RiskLevel      string              `json:"risk_level"`
	ApprovedByUser bool                `json:"approved_by_user"`
}

// handleIntentSet is POST /intent/set: upsert an IntentContract.
func (gw *Gateway) handleIntentSet(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireTenant(w, r); !ok {
		return
	}

	var req intentSetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IntentID == "" {
		apierror.BadRequest(w, "intent_id is required")
		return
	}
	if req.Scope == nil {
		req.Scope = map[string][]string{}
	}
	if req.Constraints == nil {
		req.Constraints = map[string]any{}
	}

	contract := &policy.IntentContract{
		IntentID:       req.IntentID,
		Objective:      req.Objective,
		Scope:          req.Scope,
		Constraints:    req.Constraints,
		RiskLevel:      policy.RiskLevel(req.RiskLevel),
		ApprovedByUser: req.ApprovedByUser,
	}

	if err := gw.Intents.Set(r.Context(), contract); err != nil {
		apierror.Internal(w, err)
		return
	}

	writeJSON(w, http.StatusOK, contract)
}

// handleIntentGet is GET /intent/get?intent_id=...: fetch an IntentContract,
// falling back to the default-deny contract when the id is unknown.
func (gw *Gateway) handleIntentGet(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireTenant(w, r); !ok {
		return
	}

	intentID := r.URL.Query().Get("intent_id")
	if intentID == "" {
		apierror.BadRequest(w, "intent_id query parameter is required")
		return
	}

	contract, err := gw.Intents.Get(r.Context(), intentID)
	if err != nil {
		writeJSON(w, http.StatusOK, contract)
		return
	}
	writeJSON(w, http.StatusOK, contract)
}
