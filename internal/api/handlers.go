package api

import (
	"encoding/json"
	"net/http"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/apierror"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/auth"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/ctxutil"
)

// writeJSON writes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes the request body into v, writing a 400 and returning
// false on any malformed payload. Validation has already bounded the body
// size and shape by the time a handler runs; this only unmarshals it into a
// concrete struct.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		apierror.BadRequest(w, "request body required")
		return false
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		apierror.BadRequest(w, "request body is not valid JSON")
		return false
	}
	return true
}

// requireTenant reads the authenticated caller's tenant id, writing a 401
// if somehow no principal reached this handler (should not happen: every
// non-public path runs through Authentication first).
func requireTenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID, err := auth.GetTenantID(r.Context())
	if err != nil {
		apierror.Unauthorized(w, "")
		return "", false
	}
	return tenantID, true
}

// requestAgentID prefers the X-Agent-ID header the Authentication stage
// threaded through context, falling back to a body-supplied agent id.
func requestAgentID(r *http.Request, fallback string) string {
	if agentID := ctxutil.AgentID(r.Context()); agentID != "" {
		return agentID
	}
	return fallback
}

// requestIntentID prefers the X-Intent-ID header, falling back to a
// body-supplied intent id.
func requestIntentID(r *http.Request, fallback string) string {
	if intentID := ctxutil.IntentID(r.Context()); intentID != "" {
		return intentID
	}
	return fallback
}

// credentialID is the stable per-tenant, per-tool credential naming
// convention the vault and its connectors agree on: "<tool>_<tenant_id>".
// A caller-supplied override takes precedence, letting a tenant hold more
// than one credential per tool.
func credentialID(tool, tenantID, override string) string {
	if override != "" {
		return override
	}
	return tool + "_" + tenantID
}
