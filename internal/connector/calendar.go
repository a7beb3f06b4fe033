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

// GoogleCalendarConnector calls the Google Calendar API, sharing the
// same OAuth refresh helper as GmailConnector.
type GoogleCalendarConnector struct {
	vault        *credentials.Vault
	credentialID string
	tenantID     string
	cred         oauthCredential
	httpClient   *http.Client
}

// NewGoogleCalendarConnector builds the calendar connector for this request's credential.
func NewGoogleCalendarConnector(ctx context.Context, vault *credentials.Vault, credentialID, tenantID string) (Connector, error) {
	data, err := vault.Get(ctx, credentialID, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("google_calendar: no credential %q for tenant %q", credentialID, tenantID)
		}
		return nil, fmt.Errorf("google_calendar: load credential: %w", err)
	}
	return &GoogleCalendarConnector{
		vault: vault, credentialID: credentialID, tenantID: tenantID,
		cred:       parseOAuthCredential(data),
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}, nil
}

func (c *GoogleCalendarConnector) Invoke(ctx context.Context, action *policy.Action) (Result, error) {
	if err := maybeRefresh(ctx, c.vault, c.credentialID, c.tenantID, "google_calendar", &c.cred); err != nil {
		return Result{OK: false, Error: err.Error()}, nil
	}

	switch action.Op {
	case "create":
		return c.createEvent(ctx, action)
	case "list":
		return c.listEvents(ctx)
	default:
		return Result{OK: false, Error: fmt.Sprintf("unsupported calendar op %q", action.Op)}, nil
	}
}

func (c *GoogleCalendarConnector) createEvent(ctx context.Context, action *policy.Action) (Result, error) {
	payload, err := json.Marshal(map[string]any{
		"summary":     action.Params["title"],
		"description": action.Params["description"],
		"start":       action.Params["start"],
		"end":         action.Params["end"],
	})
	if err != nil {
		return Result{}, fmt.Errorf("calendar: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://www.googleapis.com/calendar/v3/calendars/primary/events", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("calendar: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cred.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{OK: false, Error: "downstream unavailable"}, fmt.Errorf("calendar: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return Result{OK: false, Error: fmt.Sprintf("calendar upstream status %d", resp.StatusCode), UpstreamStatus: resp.StatusCode}, nil
	}
	return Result{OK: true, Output: map[string]any{"status": "created"}}, nil
}

func (c *GoogleCalendarConnector) listEvents(ctx context.Context) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://www.googleapis.com/calendar/v3/calendars/primary/events", nil)
	if err != nil {
		return Result{}, fmt.Errorf("calendar: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cred.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{OK: false, Error: "downstream unavailable"}, fmt.Errorf("calendar: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return Result{OK: false, Error: fmt.Sprintf("calendar upstream status %d: %s", resp.StatusCode, body), UpstreamStatus: resp.StatusCode}, nil
	}

	var parsed map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{OK: false, Error: "malformed upstream response"}, nil
	}
	return Result{OK: true, Output: parsed}, nil
}
