package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/apierror"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/auth"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/credentials"
)

const connectCodeTTL = 10 * time.Minute

// connectableServices is the fixed set of tools a tenant can link a
// credential for through the connect-code flow.
var connectableServices = map[string]bool{
	"gmail":           true,
	"google_calendar": true,
	"brave_search":    true,
	"github":          true,
	"elevenlabs":      true,
}

var oauthServices = map[string]bool{
	"gmail":           true,
	"google_calendar": true,
}

// handleConnectButtons is GET /integrations/connect/buttons: the fixed list
// of services a client (a chat bot, a dashboard) can offer a user to
// connect.
func (gw *Gateway) handleConnectButtons(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireTenant(w, r); !ok {
		return
	}
	services := make([]map[string]string, 0, len(connectableServices))
	for _, s := range []string{"gmail", "google_calendar", "brave_search", "github", "elevenlabs"} {
		kind := "api_key"
		if oauthServices[s] {
			kind = "oauth"
		}
		services = append(services, map[string]string{"id": s, "type": kind})
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

type connectLinkRequest struct {
	Service string `json:"service"`
}

func (gw *Gateway) connectBaseURL(r *http.Request) string {
	if gw.Config.ConnectBaseURL != "" {
		return strings.TrimSuffix(gw.Config.ConnectBaseURL, "/")
	}
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// handleConnectLink is POST /integrations/connect/link: mint a one-time
// connect code for a service and return the URL a user follows to finish
// the connection (an OAuth redirect for gmail/google_calendar, a key-submit
// link otherwise).
func (gw *Gateway) handleConnectLink(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		apierror.Unauthorized(w, "")
		return
	}

	var req connectLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !connectableServices[req.Service] {
		apierror.BadRequest(w, "unknown service")
		return
	}

	code, err := gw.Tenants.IssueConnectCode(r.Context(), tenantID, principal.GetUserID(), req.Service, connectCodeTTL)
	if err != nil {
		apierror.Internal(w, err)
		return
	}

	base := gw.connectBaseURL(r)
	path := "/integrations/connect/submit"
	if oauthServices[req.Service] {
		path = fmt.Sprintf("/integrations/connect/%s/start", req.Service)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"url":        fmt.Sprintf("%s%s?code=%s", base, path, code),
		"code":       code,
		"expires_in": int(connectCodeTTL.Seconds()),
	})
}

// handleConnectStatus is GET /integrations/connect/status: which of the
// fixed connectable services the tenant already has a credential stored
// for. It never returns the credential payload itself — only a presence
// check against the "<tool>_<tenant_id>" credential id.
func (gw *Gateway) handleConnectStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	status := make(map[string]bool, len(connectableServices))
	for service := range connectableServices {
		_, err := gw.Store.GetCredential(r.Context(), credentialID(service, tenantID, ""), tenantID)
		status[service] = err == nil
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": status})
}

func connectCodeErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound, "connect code not found"
	case strings.Contains(err.Error(), "expired"):
		return http.StatusGone, "connect code expired"
	case strings.Contains(err.Error(), "consumed"):
		return http.StatusConflict, "connect code already used"
	default:
		return http.StatusInternalServerError, ""
	}
}

type connectSubmitRequest struct {
	Code           string         `json:"code"`
	CredentialType string         `json:"credential_type"`
	CredentialData map[string]any `json:"credential_data"`
}

// handleConnectSubmit is POST /integrations/connect/submit: the API-key
// submission leg of the connect flow for services that don't use OAuth
// (brave_search, github, elevenlabs). It is on the public path list since
// the connect code itself, not a bearer token, is the proof of authority
// here, the same reasoning a paste-your-api-key form always needs.
func (gw *Gateway) handleConnectSubmit(w http.ResponseWriter, r *http.Request) {
	var req connectSubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" || len(req.CredentialData) == 0 {
		apierror.BadRequest(w, "code and credential_data are required")
		return
	}

	entry, err := gw.Store.ConsumeConnectCode(r.Context(), req.Code, time.Now().UTC())
	if err != nil {
		status, detail := connectCodeErrorStatus(err)
		if status == http.StatusInternalServerError {
			apierror.Internal(w, err)
			return
		}
		apierror.Write(w, status, detail)
		return
	}

	credType := req.CredentialType
	if credType == "" {
		credType = "api_key"
	}

	credID := credentialID(entry.Channel, entry.TenantID, "")
	if err := gw.Vault.Set(r.Context(), credentials.Input{
		CredentialID:   credID,
		TenantID:       entry.TenantID,
		ToolName:       entry.Channel,
		CredentialType: credType,
		CredentialData: req.CredentialData,
	}); err != nil {
		apierror.Internal(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "connected", "tool": entry.Channel})
}

const (
	gmailScopes          = "https://www.googleapis.com/auth/gmail.readonly https://www.googleapis.com/auth/gmail.send https://www.googleapis.com/auth/gmail.modify"
	googleCalendarScopes = "https://www.googleapis.com/auth/calendar https://www.googleapis.com/auth/calendar.events"
)

func googleOAuthScopes(service string) string {
	if service == "gmail" {
		return gmailScopes
	}
	return googleCalendarScopes
}

// handleOAuthStart returns GET /integrations/connect/{service}/start: it
// redirects the browser to Google's consent screen, carrying the connect
// code as the OAuth `state` so the callback can resolve which tenant this
// authorization belongs to. The code's validity is checked at the callback,
// not here — a code a redirect merely carries costs nothing to mint.
func (gw *Gateway) handleOAuthStart(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			apierror.BadRequest(w, "code query parameter is required")
			return
		}
		if gw.Config.GoogleClientID == "" {
			apierror.ServiceUnavailable(w, service+" oauth is not configured")
			return
		}

		base := gw.connectBaseURL(r)
		redirectURI := fmt.Sprintf("%s/integrations/connect/%s/callback", base, service)
		authURL := "https://accounts.google.com/o/oauth2/v2/auth?" + url.Values{
			"client_id":     {gw.Config.GoogleClientID},
			"redirect_uri":  {redirectURI},
			"response_type": {"code"},
			"scope":         {googleOAuthScopes(service)},
			"state":         {code},
			"access_type":   {"offline"},
			"prompt":        {"consent"},
		}.Encode()

		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

type googleTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// handleOAuthCallback returns GET /integrations/connect/{service}/callback:
// exchange the authorization code for tokens and save the resulting OAuth
// credential under the connect code's tenant.
func (gw *Gateway) handleOAuthCallback(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if oauthErr := r.URL.Query().Get("error"); oauthErr != "" {
			apierror.BadRequest(w, "oauth error: "+oauthErr)
			return
		}

		state := r.URL.Query().Get("state")
		authCode := r.URL.Query().Get("code")
		if state == "" || authCode == "" {
			apierror.BadRequest(w, "state and code query parameters are required")
			return
		}

		entry, err := gw.Store.ConsumeConnectCode(r.Context(), state, time.Now().UTC())
		if err != nil {
			status, detail := connectCodeErrorStatus(err)
			if status == http.StatusInternalServerError {
				apierror.Internal(w, err)
				return
			}
			apierror.Write(w, status, detail)
			return
		}

		if gw.Config.GoogleClientID == "" || gw.Config.GoogleClientSecret == "" {
			apierror.ServiceUnavailable(w, service+" oauth is not configured")
			return
		}

		base := gw.connectBaseURL(r)
		redirectURI := fmt.Sprintf("%s/integrations/connect/%s/callback", base, service)

		tokens, err := exchangeGoogleAuthCode(r, gw.Config.GoogleClientID, gw.Config.GoogleClientSecret, authCode, redirectURI)
		if err != nil {
			apierror.BadRequest(w, "token exchange failed")
			return
		}

		data := map[string]any{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"client_id":     gw.Config.GoogleClientID,
			"client_secret": gw.Config.GoogleClientSecret,
			"token_uri":     "https://oauth2.googleapis.com/token",
			"expires_at":    time.Now().UTC().Add(time.Duration(tokens.ExpiresIn) * time.Second).Unix(),
		}
		if service == "google_calendar" {
			data["calendar_id"] = "primary"
		}

		if err := gw.Vault.Set(r.Context(), credentials.Input{
			CredentialID:   credentialID(service, entry.TenantID, ""),
			TenantID:       entry.TenantID,
			ToolName:       service,
			CredentialType: "oauth2",
			CredentialData: data,
		}); err != nil {
			apierror.Internal(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "connected", "tool": service})
	}
}

func exchangeGoogleAuthCode(r *http.Request, clientID, clientSecret, code, redirectURI string) (*googleTokenResponse, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, "https://oauth2.googleapis.com/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("token exchange returned status %d: %s", resp.StatusCode, string(body))
	}

	var tokens googleTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &tokens, nil
}

type clawdbotConnectRequest struct {
	BaseURL      string `json:"base_url"`
	AuthMode     string `json:"auth_mode"`
	Secret       string `json:"secret"`
	CredentialID string `json:"credential_id"`
}

// handleClawdbotConnect is POST /integrations/clawdbot/connect: store the
// upstream super-tool proxy's base URL and auth secret as a credential.
func (gw *Gateway) handleClawdbotConnect(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req clawdbotConnectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.BaseURL == "" {
		apierror.BadRequest(w, "base_url is required")
		return
	}

	credID := credentialID("clawdbot", tenantID, req.CredentialID)
	if err := gw.Vault.Set(r.Context(), credentials.Input{
		CredentialID:   credID,
		TenantID:       tenantID,
		ToolName:       "clawdbot",
		CredentialType: "gateway",
		CredentialData: map[string]any{
			"base_url":  req.BaseURL,
			"auth_mode": req.AuthMode,
			"secret":    req.Secret,
		},
	}); err != nil {
		apierror.Internal(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"connected":     true,
		"credential_id": credID,
		"base_url":      req.BaseURL,
		"auth_mode":     req.AuthMode,
	})
}

// handleIntegrationStatus is GET /integrations/status: whether the clawdbot
// proxy credential is stored, the active policy preset, and whether network
// gating is on. Per-service connect-code status is served by
// /integrations/connect/status, not here.
func (gw *Gateway) handleIntegrationStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	_, err := gw.Store.GetCredential(r.Context(), credentialID("clawdbot", tenantID, ""), tenantID)
	clawdbotConnected := err == nil

	preset, _ := gw.Store.GetActivePolicyPreset(r.Context())

	writeJSON(w, http.StatusOK, map[string]any{
		"clawdbot": map[string]any{
			"connected": clawdbotConnected,
		},
		"active_policy_pack":   preset,
		"network_gating":       gw.Config.NetworkGatingEnabled,
	})
}

type channelConnectCodeRequest struct {
	Channel string `json:"channel"`
}

// handleChannelConnectCode is POST /integrations/channel/connect-code: mint
// a short-lived code a user enters in an external channel (a Telegram or
// Discord bot, for instance) to bind that channel identity to their tenant.
func (gw *Gateway) handleChannelConnectCode(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	principal, err := auth.GetPrincipal(r.Context())
	if err != nil {
		apierror.Unauthorized(w, "")
		return
	}

	var req channelConnectCodeRequest
	if r.ContentLength > 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	if req.Channel == "" {
		req.Channel = "telegram"
	}

	code, err := gw.Tenants.IssueConnectCode(r.Context(), tenantID, principal.GetUserID(), req.Channel, connectCodeTTL)
	if err != nil {
		apierror.Internal(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"code":        code,
		"channel":     req.Channel,
		"ttl_seconds": int(connectCodeTTL.Seconds()),
	})
}

type channelVerifyRequest struct {
	Code       string `json:"code"`
	ExternalID string `json:"external_id"`
	Username   string `json:"username"`
}

// handleChannelVerify is POST /integrations/channel/verify: the bot-side
// leg of channel binding. It is public: the caller proves authority with a
// shared bot secret header, not a tenant bearer token, since the bot
// itself has no tenant.
func (gw *Gateway) handleChannelVerify(w http.ResponseWriter, r *http.Request) {
	if gw.Config.ChannelBotSecret == "" {
		apierror.ServiceUnavailable(w, "channel bot secret is not configured")
		return
	}
	secret := r.Header.Get("X-EDON-BOT-SECRET")
	if secret == "" || secret != gw.Config.ChannelBotSecret {
		apierror.Unauthorized(w, "invalid bot secret")
		return
	}

	var req channelVerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" || req.ExternalID == "" {
		apierror.BadRequest(w, "code and external_id are required")
		return
	}

	binding, err := gw.Tenants.BindChannel(r.Context(), req.Code, req.ExternalID)
	if err != nil {
		status, detail := connectCodeErrorStatus(err)
		if status == http.StatusInternalServerError {
			apierror.Internal(w, err)
			return
		}
		apierror.Write(w, status, detail)
		return
	}

	token, err := gw.Tenants.IssueChannelToken(r.Context(), binding.TenantID, binding.Channel, 0)
	if err != nil {
		apierror.Internal(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"tenant_id": binding.TenantID,
		"channel":   binding.Channel,
		"token":     token,
	})
}
