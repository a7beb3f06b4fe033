package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/apierror"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/credentials"
)

type credentialSetRequest struct {
	CredentialID   string         `json:"credential_id"`
	ToolName       string         `json:"tool_name"`
	CredentialType string         `json:"credential_type"`
	CredentialData map[string]any `json:"credential_data"`
}

// handleCredentialSet is POST /credentials/set. It is write-only: the
// payload is encrypted and stored, never echoed back.
func (gw *Gateway) handleCredentialSet(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req credentialSetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ToolName == "" {
		apierror.BadRequest(w, "tool_name is required")
		return
	}
	if req.CredentialData == nil {
		apierror.BadRequest(w, "credential_data is required")
		return
	}

	credID := credentialID(req.ToolName, tenantID, req.CredentialID)

	err := gw.Vault.Set(r.Context(), credentials.Input{
		CredentialID:   credID,
		TenantID:       tenantID,
		ToolName:       req.ToolName,
		CredentialType: req.CredentialType,
		CredentialData: req.CredentialData,
	})
	if err != nil {
		apierror.Internal(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "saved", "credential_id": credID})
}

// handleCredentialDelete is DELETE /credentials/{id}, scoped to the caller's
// own tenant — never a cross-tenant delete.
func (gw *Gateway) handleCredentialDelete(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := gw.Vault.Delete(r.Context(), id, tenantID); err != nil {
		apierror.Internal(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
