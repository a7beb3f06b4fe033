package connector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/credentials"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
)

// EmailConnector is a sandboxed mail backend: it never contacts a real SMTP
// relay. "send" and "draft" both append to a local outbox file, matching
// the network-gated posture required of every non-approved surface.
type EmailConnector struct {
	outboxPath string
}

// NewEmailConnector builds the sandbox email connector; it needs no credential.
func NewEmailConnector(ctx context.Context, vault *credentials.Vault, credentialID, tenantID string) (Connector, error) {
	return &EmailConnector{outboxPath: filepath.Join(os.TempDir(), "edon-email-outbox.log")}, nil
}

func (c *EmailConnector) Invoke(ctx context.Context, action *policy.Action) (Result, error) {
	f, err := os.OpenFile(c.outboxPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return Result{}, fmt.Errorf("email: open outbox: %w", err)
	}
	defer func() { _ = f.Close() }()

	line := fmt.Sprintf("%s op=%s recipients=%v subject=%v\n",
		time.Now().UTC().Format(time.RFC3339), action.Op, action.Params["recipients"], action.Params["subject"])
	if _, err := f.WriteString(line); err != nil {
		return Result{}, fmt.Errorf("email: write outbox: %w", err)
	}

	status := action.Op + "ed"
	if action.Op == "send" {
		status = "sent"
	}
	return Result{OK: true, Output: map[string]any{"status": status, "op": action.Op}}, nil
}
