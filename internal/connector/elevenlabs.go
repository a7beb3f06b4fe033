package connector

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/credentials"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
)

// ElevenLabsConnector synthesizes speech via the ElevenLabs text-to-speech API.
type ElevenLabsConnector struct {
	apiKey     string
	httpClient *http.Client
}

// NewElevenLabsConnector builds the tts connector for this request's credential.
func NewElevenLabsConnector(ctx context.Context, vault *credentials.Vault, credentialID, tenantID string) (Connector, error) {
	data, err := vault.Get(ctx, credentialID, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("elevenlabs: no credential %q for tenant %q", credentialID, tenantID)
		}
		return nil, fmt.Errorf("elevenlabs: load credential: %w", err)
	}
	return &ElevenLabsConnector{apiKey: stringField(data, "api_key"), httpClient: &http.Client{Timeout: 30 * time.Second}}, nil
}

func (c *ElevenLabsConnector) Invoke(ctx context.Context, action *policy.Action) (Result, error) {
	if action.Op != "synthesize" {
		return Result{OK: false, Error: fmt.Sprintf("unsupported elevenlabs op %q", action.Op)}, nil
	}

	text, _ := action.Params["text"].(string)
	if text == "" {
		return Result{OK: false, Error: "missing text"}, nil
	}
	voiceID, _ := action.Params["voice_id"].(string)
	if voiceID == "" {
		voiceID = "21m00Tcm4TlvDq8ikWAM"
	}

	payload, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": "eleven_monolingual_v1",
	})
	if err != nil {
		return Result{}, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("https://api.elevenlabs.io/v1/text-to-speech/%s", voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{OK: false, Error: "downstream unavailable"}, fmt.Errorf("elevenlabs: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return Result{OK: false, Error: fmt.Sprintf("elevenlabs upstream status %d", resp.StatusCode), UpstreamStatus: resp.StatusCode}, nil
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{OK: false, Error: "could not read upstream audio"}, nil
	}
	return Result{OK: true, Output: map[string]any{
		"audio_base64": base64.StdEncoding.EncodeToString(audio),
		"content_type": "audio/mpeg",
	}}, nil
}
