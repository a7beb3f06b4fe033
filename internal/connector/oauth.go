package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/credentials"
)

// refreshSafetyMargin is how far ahead of expiry an OAuth connector
// proactively refreshes its access token.
const refreshSafetyMargin = 5 * time.Minute

// oauthCredential is the shape stored for mail/calendar connectors.
type oauthCredential struct {
	AccessToken  string
	RefreshToken string
	ClientID     string
	ClientSecret string
	ExpiresAt    time.Time
}

func parseOAuthCredential(data map[string]any) oauthCredential {
	c := oauthCredential{
		AccessToken:  stringField(data, "access_token"),
		RefreshToken: stringField(data, "refresh_token"),
		ClientID:     stringField(data, "client_id"),
		ClientSecret: stringField(data, "client_secret"),
	}
	if raw := stringField(data, "expires_at"); raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			c.ExpiresAt = time.Unix(unix, 0).UTC()
		} else if t, err := time.Parse(time.RFC3339, raw); err == nil {
			c.ExpiresAt = t
		}
	}
	return c
}

func stringField(data map[string]any, key string) string {
	if v, ok := data[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// needsRefresh reports whether the token is within the refresh safety margin.
func (c oauthCredential) needsRefresh(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return c.ExpiresAt.Sub(now) < refreshSafetyMargin
}

// maybeRefresh exchanges a refresh token for a new access token against
// Google's token endpoint and writes the result back to the vault
// atomically, so a concurrent connector invocation never observes a
// half-refreshed credential.
func maybeRefresh(ctx context.Context, vault *credentials.Vault, credentialID, tenantID, toolName string, cred *oauthCredential) error {
	if !cred.needsRefresh(time.Now().UTC()) {
		return nil
	}
	if cred.RefreshToken == "" {
		return fmt.Errorf("oauth: token expired and no refresh_token stored")
	}

	form := url.Values{}
	form.Set("client_id", cred.ClientID)
	form.Set("client_secret", cred.ClientSecret)
	form.Set("refresh_token", cred.RefreshToken)
	form.Set("grant_type", "refresh_token")

	httpClient := &http.Client{Timeout: 15 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://oauth2.googleapis.com/token", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("oauth: build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("oauth: refresh request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("oauth: refresh failed with status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("oauth: decode refresh response: %w", err)
	}

	cred.AccessToken = body.AccessToken
	cred.ExpiresAt = time.Now().UTC().Add(time.Duration(body.ExpiresIn) * time.Second)

	return vault.Set(ctx, credentials.Input{
		CredentialID:   credentialID,
		TenantID:       tenantID,
		ToolName:       toolName,
		CredentialType: "oauth",
		CredentialData: map[string]any{
			"access_token":  cred.AccessToken,
			"refresh_token": cred.RefreshToken,
			"client_id":     cred.ClientID,
			"client_secret": cred.ClientSecret,
			"expires_at":    strconv.FormatInt(cred.ExpiresAt.Unix(), 10),
		},
	})
}
