package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/auth"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/config"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/credentials"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/store"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/tenants"
)

func newIntegrationsTestGateway(t *testing.T) (*Gateway, string, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "edon-test.db")
	s, err := store.Open(context.Background(), "", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	vault, err := credentials.New(s, key)
	require.NoError(t, err)

	prov := tenants.New(s)
	tenant, user, _, err := prov.Signup(context.Background(), "Acme", "a@acme.test", "pro")
	require.NoError(t, err)

	gw := &Gateway{
		Store:   s,
		Vault:   vault,
		Tenants: prov,
		Config: &config.Config{
			ChannelBotSecret: "bot-secret-1",
			ConnectBaseURL:   "https://gw.test",
		},
	}
	return gw, tenant.TenantID, user.UserID
}

func withPrincipal(r *http.Request, tenantID string) *http.Request {
	p := &auth.BasePrincipal{TenantID: tenantID, Plan: "pro", Status: "active"}
	return r.WithContext(auth.WithPrincipal(r.Context(), p))
}

func TestHandleConnectButtons_ListsFixedServices(t *testing.T) {
	gw, tenantID, _ := newIntegrationsTestGateway(t)

	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/integrations/connect/buttons", nil), tenantID)
	rec := httptest.NewRecorder()
	gw.handleConnectButtons(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Services []map[string]string `json:"services"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Len(t, body.Services, 5)
}

func TestHandleConnectLink_RejectsUnknownService(t *testing.T) {
	gw, tenantID, userID := newIntegrationsTestGateway(t)
	_ = userID

	body := strings.NewReader(`{"service":"not-a-real-service"}`)
	req := withPrincipal(httptest.NewRequest(http.MethodPost, "/integrations/connect/link", body), tenantID)
	rec := httptest.NewRecorder()
	gw.handleConnectLink(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleConnectLink_IssuesCodeForKnownService(t *testing.T) {
	gw, tenantID, _ := newIntegrationsTestGateway(t)

	body := strings.NewReader(`{"service":"github"}`)
	req := withPrincipal(httptest.NewRequest(http.MethodPost, "/integrations/connect/link", body), tenantID)
	rec := httptest.NewRecorder()
	gw.handleConnectLink(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Code string `json:"code"`
		URL  string `json:"url"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Code)
	assert.Contains(t, resp.URL, "/integrations/connect/submit")
}

func TestHandleConnectSubmit_UnknownCodeReturns404(t *testing.T) {
	gw, _, _ := newIntegrationsTestGateway(t)

	body := strings.NewReader(`{"code":"does-not-exist","credential_data":{"api_key":"x"}}`)
	req := httptest.NewRequest(http.MethodPost, "/integrations/connect/submit", body)
	rec := httptest.NewRecorder()
	gw.handleConnectSubmit(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleConnectSubmit_SavesCredentialAndConnectStatusReflectsIt(t *testing.T) {
	gw, tenantID, userID := newIntegrationsTestGateway(t)
	ctx := context.Background()

	code, err := gw.Tenants.IssueConnectCode(ctx, tenantID, userID, "github", 10*time.Minute)
	require.NoError(t, err)

	submitBody := strings.NewReader(`{"code":"` + code + `","credential_data":{"token":"ghp_abc123"}}`)
	submitReq := httptest.NewRequest(http.MethodPost, "/integrations/connect/submit", submitBody)
	submitRec := httptest.NewRecorder()
	gw.handleConnectSubmit(submitRec, submitReq)
	require.Equal(t, http.StatusOK, submitRec.Code)

	statusReq := withPrincipal(httptest.NewRequest(http.MethodGet, "/integrations/connect/status", nil), tenantID)
	statusRec := httptest.NewRecorder()
	gw.handleConnectStatus(statusRec, statusReq)

	require.Equal(t, http.StatusOK, statusRec.Code)
	var resp struct {
		Services map[string]bool `json:"services"`
	}
	require.NoError(t, json.NewDecoder(statusRec.Body).Decode(&resp))
	assert.True(t, resp.Services["github"])
	assert.False(t, resp.Services["gmail"])
}

func TestHandleConnectSubmit_ReusingCodeReturnsConflict(t *testing.T) {
	gw, tenantID, userID := newIntegrationsTestGateway(t)
	ctx := context.Background()

	code, err := gw.Tenants.IssueConnectCode(ctx, tenantID, userID, "github", 10*time.Minute)
	require.NoError(t, err)

	submit := func() *httptest.ResponseRecorder {
		body := strings.NewReader(`{"code":"` + code + `","credential_data":{"token":"ghp_abc123"}}`)
		req := httptest.NewRequest(http.MethodPost, "/integrations/connect/submit", body)
		rec := httptest.NewRecorder()
		gw.handleConnectSubmit(rec, req)
		return rec
	}

	first := submit()
	require.Equal(t, http.StatusOK, first.Code)

	second := submit()
	assert.Equal(t, http.StatusConflict, second.Code)
}

func TestHandleChannelVerify_RejectsWrongBotSecret(t *testing.T) {
	gw, _, _ := newIntegrationsTestGateway(t)

	body := strings.NewReader(`{"code":"whatever","external_id":"ext-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/integrations/channel/verify", body)
	req.Header.Set("X-EDON-BOT-SECRET", "wrong-secret")
	rec := httptest.NewRecorder()
	gw.handleChannelVerify(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleChannelConnectCodeThenVerify_BindsChannel(t *testing.T) {
	gw, tenantID, _ := newIntegrationsTestGateway(t)

	linkReq := withPrincipal(httptest.NewRequest(http.MethodPost, "/integrations/channel/connect-code", strings.NewReader(`{"channel":"telegram"}`)), tenantID)
	linkRec := httptest.NewRecorder()
	gw.handleChannelConnectCode(linkRec, linkReq)
	require.Equal(t, http.StatusOK, linkRec.Code)

	var linkResp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(linkRec.Body).Decode(&linkResp))

	verifyBody := strings.NewReader(`{"code":"` + linkResp.Code + `","external_id":"tg-12345"}`)
	verifyReq := httptest.NewRequest(http.MethodPost, "/integrations/channel/verify", verifyBody)
	verifyReq.Header.Set("X-EDON-BOT-SECRET", "bot-secret-1")
	verifyRec := httptest.NewRecorder()
	gw.handleChannelVerify(verifyRec, verifyReq)

	require.Equal(t, http.StatusOK, verifyRec.Code)
	var resp struct {
		TenantID string `json:"tenant_id"`
		Token    string `json:"token"`
		Channel  string `json:"channel"`
	}
	require.NoError(t, json.NewDecoder(verifyRec.Body).Decode(&resp))
	assert.Equal(t, tenantID, resp.TenantID)
	assert.Equal(t, "telegram", resp.Channel)
	assert.NotEmpty(t, resp.Token)
}

func TestHandleClawdbotConnect_SavesCredentialAndStatusReflectsIt(t *testing.T) {
	gw, tenantID, _ := newIntegrationsTestGateway(t)

	connectReq := withPrincipal(httptest.NewRequest(http.MethodPost, "/integrations/clawdbot/connect",
		strings.NewReader(`{"base_url":"https://clawdbot.internal","auth_mode":"bearer","secret":"s3cr3t"}`)), tenantID)
	connectRec := httptest.NewRecorder()
	gw.handleClawdbotConnect(connectRec, connectReq)
	require.Equal(t, http.StatusOK, connectRec.Code)

	statusReq := withPrincipal(httptest.NewRequest(http.MethodGet, "/integrations/status", nil), tenantID)
	statusRec := httptest.NewRecorder()
	gw.handleIntegrationStatus(statusRec, statusReq)
	require.Equal(t, http.StatusOK, statusRec.Code)

	var resp struct {
		Clawdbot struct {
			Connected bool `json:"connected"`
		} `json:"clawdbot"`
	}
	require.NoError(t, json.NewDecoder(statusRec.Body).Decode(&resp))
	assert.True(t, resp.Clawdbot.Connected)
}

func TestHandleOAuthStart_RequiresCode(t *testing.T) {
	gw, _, _ := newIntegrationsTestGateway(t)
	gw.Config.GoogleClientID = "client-1"

	req := httptest.NewRequest(http.MethodGet, "/integrations/connect/gmail/start", nil)
	rec := httptest.NewRecorder()
	gw.handleOAuthStart("gmail")(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleOAuthStart_RedirectsToGoogle(t *testing.T) {
	gw, tenantID, userID := newIntegrationsTestGateway(t)
	gw.Config.GoogleClientID = "client-1"
	ctx := context.Background()

	code, err := gw.Tenants.IssueConnectCode(ctx, tenantID, userID, "gmail", 10*time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/integrations/connect/gmail/start?code="+code, nil)
	rec := httptest.NewRecorder()
	gw.handleOAuthStart("gmail")(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	loc := rec.Header().Get("Location")
	assert.Contains(t, loc, "accounts.google.com")
	assert.Contains(t, loc, "state="+code)
}
