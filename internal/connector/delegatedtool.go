package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/credentials"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
)

// DelegatedToolConnector proxies an already-governed Action to the upstream
// super-tool it replaces (the clawdbot/edon alias). It forwards the inner
// tool name and params verbatim and returns the upstream JSON body as the
// Result's Output. The invoke handler returns that Result under "result"
// next to the governance "decision"; it adds no edon_verdict or
// edon_explanation fields.
type DelegatedToolConnector struct {
	baseURL    string
	httpClient *http.Client
}

// NewDelegatedToolConnectorFactory closes over the upstream base URL.
func NewDelegatedToolConnectorFactory(baseURL string) Factory {
	return func(ctx context.Context, vault *credentials.Vault, credentialID, tenantID string) (Connector, error) {
		return &DelegatedToolConnector{baseURL: baseURL, httpClient: &http.Client{Timeout: 30 * time.Second}}, nil
	}
}

func (c *DelegatedToolConnector) Invoke(ctx context.Context, action *policy.Action) (Result, error) {
	if c.baseURL == "" {
		return Result{OK: false, Error: "delegated tool proxy not configured"}, nil
	}

	innerTool, _ := action.Params["tool"].(string)
	if innerTool == "" {
		return Result{OK: false, Error: "missing inner tool name"}, nil
	}

	payload, err := json.Marshal(map[string]any{
		"tool":   innerTool,
		"op":     action.Op,
		"params": action.Params,
	})
	if err != nil {
		return Result{}, fmt.Errorf("clawdbot: marshal proxy request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoke", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("clawdbot: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{OK: false, Error: "upstream tool unavailable"}, fmt.Errorf("clawdbot: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{OK: false, Error: "could not read upstream response"}, nil
	}

	if resp.StatusCode >= 400 {
		return Result{OK: false, Error: fmt.Sprintf("upstream status %d", resp.StatusCode), UpstreamStatus: resp.StatusCode}, nil
	}

	var upstream map[string]any
	if err := json.Unmarshal(body, &upstream); err != nil {
		return Result{OK: true, Output: map[string]any{"raw": string(body)}}, nil
	}
	return Result{OK: true, Output: upstream}, nil
}
