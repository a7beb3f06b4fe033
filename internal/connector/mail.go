package connector

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/credentials"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
)

// GmailConnector calls the real Gmail API using an OAuth credential loaded
// from the vault, refreshing it lazily when near expiry.
type GmailConnector struct {
	vault        *credentials.Vault
	credentialID string
	tenantID     string
	cred         oauthCredential
	httpClient   *http.Client
}

// NewGmailConnector builds the gmail connector for this request's credential.
func NewGmailConnector(ctx context.Context, vault *credentials.Vault, credentialID, tenantID string) (Connector, error) {
	data, err := vault.Get(ctx, credentialID, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("gmail: no credential %q for tenant %q", credentialID, tenantID)
		}
		return nil, fmt.Errorf("gmail: load credential: %w", err)
	}
	return &GmailConnector{
		vault: vault, credentialID: credentialID, tenantID: tenantID,
		cred:       parseOAuthCredential(data),
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}, nil
}

func (c *GmailConnector) Invoke(ctx context.Context, action *policy.Action) (Result, error) {
	if err := maybeRefresh(ctx, c.vault, c.credentialID, c.tenantID, "gmail", &c.cred); err != nil {
		return Result{OK: false, Error: err.Error()}, nil
	}

	switch action.Op {
	case "send", "draft":
		return c.sendOrDraft(ctx, action)
	case "list":
		return c.list(ctx)
	default:
		return Result{OK: false, Error: fmt.Sprintf("unsupported gmail op %q", action.Op)}, nil
	}
}

func (c *GmailConnector) sendOrDraft(ctx context.Context, action *policy.Action) (Result, error) {
	endpoint := "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"
	if action.Op == "draft" {
		endpoint = "https://gmail.googleapis.com/gmail/v1/users/me/drafts"
	}

	payload, err := json.Marshal(map[string]any{
		"raw": buildRawMessage(action.Params),
	})
	if err != nil {
		return Result{}, fmt.Errorf("gmail: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("gmail: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cred.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{OK: false, Error: "downstream unavailable"}, fmt.Errorf("gmail: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return Result{OK: false, Error: fmt.Sprintf("gmail upstream status %d", resp.StatusCode), UpstreamStatus: resp.StatusCode}, nil
	}
	return Result{OK: true, Output: map[string]any{"status": action.Op + "ed", "upstream_status": resp.StatusCode, "body": string(body)}}, nil
}

func (c *GmailConnector) list(ctx context.Context) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://gmail.googleapis.com/gmail/v1/users/me/messages", nil)
	if err != nil {
		return Result{}, fmt.Errorf("gmail: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cred.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{OK: false, Error: "downstream unavailable"}, fmt.Errorf("gmail: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return Result{OK: false, Error: fmt.Sprintf("gmail upstream status %d: %s", resp.StatusCode, body), UpstreamStatus: resp.StatusCode}, nil
	}

	var parsed map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{OK: false, Error: "malformed upstream response"}, nil
	}
	return Result{OK: true, Output: parsed}, nil
}

// buildRawMessage is a minimal, unsigned RFC 2822 message placeholder; a
// production connector would base64url-encode a fully MIME-formed message.
func buildRawMessage(params map[string]any) string {
	subject, _ := params["subject"].(string)
	body, _ := params["body"].(string)
	return fmt.Sprintf("Subject: %s\r\n\r\n%s", subject, body)
}
