package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/apierror"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/auth"
)

type signupRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Plan  string `json:"plan"`
}

type signupResponse struct {
	TenantID string `json:"tenant_id"`
	User     struct {
		UserID   string `json:"user_id"`
		Email    string `json:"email"`
		TenantID string `json:"tenant_id"`
		Plan     string `json:"plan"`
		Status   string `json:"status"`
	} `json:"user"`
	APIKey string `json:"api_key"`
}

// handleSignup is POST /signup: provision a tenant, its first user, and a
// starting API key, returning the raw key exactly once.
func (gw *Gateway) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		apierror.BadRequest(w, "email is required")
		return
	}
	if req.Plan == "" {
		req.Plan = "free"
	}

	tenant, user, rawKey, err := gw.Tenants.Signup(r.Context(), req.Name, req.Email, req.Plan)
	if err != nil {
		apierror.Internal(w, err)
		return
	}

	resp := signupResponse{TenantID: tenant.TenantID, APIKey: rawKey}
	resp.User.UserID = user.UserID
	resp.User.Email = user.Email
	resp.User.TenantID = tenant.TenantID
	resp.User.Plan = tenant.Plan
	resp.User.Status = tenant.Status

	writeJSON(w, http.StatusOK, resp)
}

// extractSessionToken reads the bearer token on a request that — unlike
// every other route — skips the Authentication stage entirely: /session is
// on the public path list precisely so a caller can ask "who am I" before
// proving anything else, so it must resolve its own token.
func extractSessionToken(r *http.Request) string {
	if tok := r.Header.Get("X-EDON-TOKEN"); tok != "" {
		return tok
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// handleSession is GET /session: resolve the bearer token and report the
// principal it maps to, without requiring the full pipeline's
// Authentication stage to have already run.
func (gw *Gateway) handleSession(w http.ResponseWriter, r *http.Request) {
	token := extractSessionToken(r)
	if token == "" {
		apierror.Unauthorized(w, "")
		return
	}

	principal, err := gw.Resolver.Resolve(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrInactiveSubscription) {
			apierror.PaymentRequired(w, "")
			return
		}
		apierror.Unauthorized(w, "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"tenant_id": principal.GetTenantID(),
		"user_id":   principal.GetUserID(),
		"plan":      principal.GetPlan(),
		"status":    principal.GetStatus(),
	})
}
