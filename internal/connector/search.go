package connector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/credentials"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
)

// SearchConnector calls the Brave Search API using a credential-scoped
// subscription key.
type SearchConnector struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSearchConnectorFactory closes over the upstream Brave Search base URL.
func NewSearchConnectorFactory(baseURL string) Factory {
	return func(ctx context.Context, vault *credentials.Vault, credentialID, tenantID string) (Connector, error) {
		data, err := vault.Get(ctx, credentialID, tenantID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("brave_search: no credential %q for tenant %q", credentialID, tenantID)
			}
			return nil, fmt.Errorf("brave_search: load credential: %w", err)
		}
		if baseURL == "" {
			baseURL = "https://api.search.brave.com/res/v1/web/search"
		}
		return &SearchConnector{
			baseURL:    baseURL,
			apiKey:     stringField(data, "api_key"),
			httpClient: &http.Client{Timeout: 15 * time.Second},
		}, nil
	}
}

func (c *SearchConnector) Invoke(ctx context.Context, action *policy.Action) (Result, error) {
	if action.Op != "search" {
		return Result{OK: false, Error: fmt.Sprintf("unsupported search op %q", action.Op)}, nil
	}

	query, _ := action.Params["query"].(string)
	if query == "" {
		return Result{OK: false, Error: "missing query"}, nil
	}

	endpoint := c.baseURL + "?" + url.Values{"q": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, fmt.Errorf("brave_search: build request: %w", err)
	}
	req.Header.Set("X-Subscription-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{OK: false, Error: "downstream unavailable"}, fmt.Errorf("brave_search: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return Result{OK: false, Error: fmt.Sprintf("brave_search upstream status %d", resp.StatusCode), UpstreamStatus: resp.StatusCode}, nil
	}

	var parsed map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{OK: false, Error: "malformed upstream response"}, nil
	}
	return Result{OK: true, Output: parsed}, nil
}
