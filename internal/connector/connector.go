// Package connector implements the per-tool executors a governed Action is
// handed off to once the evaluator returns ALLOW (or, for DEGRADE, the safe
// alternative Action). Connectors are
// constructed fresh per request from the caller's (credential_id, tenant_id)
// pair — never cached across requests — so a revoked or rotated credential
// takes effect on the very next call.
package connector

import (
	"context"
	"fmt"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/credentials"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
)

// Result is what a connector's Invoke returns to the execute handler.
// UpstreamStatus carries the raw HTTP status code a remote API responded
// with, when OK is false because of it; the execute handler maps a 401
// there through as a real 401 instead of folding it into a 200 envelope.
type Result struct {
	OK             bool           `json:"ok"`
	Output         map[string]any `json:"output,omitempty"`
	Error          string         `json:"error,omitempty"`
	UpstreamStatus int            `json:"-"`
}

// Connector executes one allowed Action against a real or sandboxed backend.
type Connector interface {
	Invoke(ctx context.Context, action *policy.Action) (Result, error)
}

// Factory builds a Connector for one request, given the credential and
// tenant the caller authenticated as. credentialID may be empty for tools
// that need no stored secret (e.g. the filesystem sandbox).
type Factory func(ctx context.Context, vault *credentials.Vault, credentialID, tenantID string) (Connector, error)

// Registry maps tool name to the Factory that builds its Connector.
type Registry struct {
	factories map[string]Factory
	vault     *credentials.Vault
}

// NewRegistry builds a Registry with the default tool set wired in.
func NewRegistry(vault *credentials.Vault, opts Options) *Registry {
	r := &Registry{factories: map[string]Factory{}, vault: vault}

	r.Register(string(policy.ToolEmail), NewEmailConnector)
	r.Register(string(policy.ToolFile), NewFilesystemConnectorFactory(opts.FilesystemRoot))
	r.Register(string(policy.ToolClawdbot), NewDelegatedToolConnectorFactory(opts.DelegatedToolBaseURL))
	r.Register(string(policy.ToolBraveSearch), NewSearchConnectorFactory(opts.SearchBaseURL))
	r.Register(string(policy.ToolGmail), NewGmailConnector)
	r.Register(string(policy.ToolGoogleCal), NewGoogleCalendarConnector)
	r.Register(string(policy.ToolGithub), NewGithubConnector)
	r.Register(string(policy.ToolElevenLabs), NewElevenLabsConnector)
	r.Register(string(policy.ToolMemory), NewMemoryConnectorFactory(opts.MemoryStore))

	return r
}

// Options configures the default connector set's external endpoints.
type Options struct {
	FilesystemRoot       string
	DelegatedToolBaseURL string
	SearchBaseURL        string
	MemoryStore          MemoryStore
}

// Register adds or replaces the Factory for a tool name.
func (r *Registry) Register(tool string, f Factory) {
	r.factories[tool] = f
}

// Build constructs a Connector for the given tool, credential, and tenant.
func (r *Registry) Build(ctx context.Context, tool, credentialID, tenantID string) (Connector, error) {
	factory, ok := r.factories[tool]
	if !ok {
		return nil, fmt.Errorf("connector: no connector registered for tool %q", tool)
	}
	return factory(ctx, r.vault, credentialID, tenantID)
}
