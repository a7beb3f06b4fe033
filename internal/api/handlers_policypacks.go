package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/apierror"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/intent/policypacks"
)

// handlePolicyPacksList is GET /policy-packs: the four fixed preset names an
// operator can apply instead of hand-authoring an IntentContract.
func (gw *Gateway) handlePolicyPacksList(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireTenant(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"packs": policypacks.Names()})
}

type policyPackApplyRequest struct {
	IntentID string `json:"intent_id"`
}

// handlePolicyPackApply is POST /policy-packs/{pack}/apply: materialize the
// named preset into a live IntentContract under the given intent id.
func (gw *Gateway) handlePolicyPackApply(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireTenant(w, r); !ok {
		return
	}

	pack := chi.URLParam(r, "pack")

	var req policyPackApplyRequest
	if r.ContentLength > 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	if req.IntentID == "" {
		req.IntentID = pack
	}

	contract, err := policypacks.Apply(pack, req.IntentID)
	if err != nil {
		apierror.NotFound(w, err.Error())
		return
	}

	if err := gw.Intents.Set(r.Context(), contract); err != nil {
		apierror.Internal(w, err)
		return
	}

	if err := gw.Store.SetActivePolicyPreset(r.Context(), pack); err != nil {
		apierror.Internal(w, err)
		return
	}

	writeJSON(w, http.StatusOK, contract)
}
