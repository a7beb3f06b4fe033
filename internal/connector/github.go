package connector

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/credentials"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
)

// GithubConnector issues code-host operations (issues, PR comments) against
// the GitHub REST API using a stored personal access token.
type GithubConnector struct {
	token      string
	httpClient *http.Client
}

// NewGithubConnector builds the github connector for this request's credential.
func NewGithubConnector(ctx context.Context, vault *credentials.Vault, credentialID, tenantID string) (Connector, error) {
	data, err := vault.Get(ctx, credentialID, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("github: no credential %q for tenant %q", credentialID, tenantID)
		}
		return nil, fmt.Errorf("github: load credential: %w", err)
	}
	return &GithubConnector{token: stringField(data, "token"), httpClient: &http.Client{Timeout: 20 * time.Second}}, nil
}

func (c *GithubConnector) Invoke(ctx context.Context, action *policy.Action) (Result, error) {
	switch action.Op {
	case "create_issue":
		return c.createIssue(ctx, action)
	default:
		return Result{OK: false, Error: fmt.Sprintf("unsupported github op %q", action.Op)}, nil
	}
}

func (c *GithubConnector) createIssue(ctx context.Context, action *policy.Action) (Result, error) {
	repo, _ := action.Params["repo"].(string)
	if repo == "" {
		return Result{OK: false, Error: "missing repo"}, nil
	}

	payload, err := json.Marshal(map[string]any{
		"title": action.Params["title"],
		"body":  action.Params["body"],
	})
	if err != nil {
		return Result{}, fmt.Errorf("github: marshal issue: %w", err)
	}

	endpoint := fmt.Sprintf("https://api.github.com/repos/%s/issues", repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("github: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{OK: false, Error: "downstream unavailable"}, fmt.Errorf("github: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return Result{OK: false, Error: fmt.Sprintf("github upstream status %d", resp.StatusCode), UpstreamStatus: resp.StatusCode}, nil
	}

	var parsed map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{OK: true, Output: map[string]any{"status": "created"}}, nil
	}
	return Result{OK: true, Output: parsed}, nil
}
