package connector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/credentials"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
)

func newTestGithubConnector(t *testing.T) *GithubConnector {
	t.Helper()
	v, _ := newTestVaultAndStore(t)
	ctx := context.Background()
	require.NoError(t, v.Set(ctx, credentials.Input{
		CredentialID: "gh-1", TenantID: "t-1", ToolName: "github", CredentialType: "pat",
		CredentialData: map[string]any{"token": "ghp_abc"},
	}))
	c, err := NewGithubConnector(ctx, v, "gh-1", "t-1")
	require.NoError(t, err)
	return c.(*GithubConnector)
}

func TestGithubConnector_CreateIssueMissingRepoFails(t *testing.T) {
	c := newTestGithubConnector(t)
	action := policy.NewAction(policy.ToolGithub, "create_issue", map[string]any{"title": "bug"}, policy.SourceAgent)
	res, err := c.Invoke(context.Background(), action)
	require.NoError(t, err)
	assert.False(t, res.OK)
}

func TestGithubConnector_UnsupportedOpFails(t *testing.T) {
	c := newTestGithubConnector(t)
	action := policy.NewAction(policy.ToolGithub, "close_issue", map[string]any{"repo": "octo/hello"}, policy.SourceAgent)
	res, err := c.Invoke(context.Background(), action)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "close_issue")
}

func TestNewGithubConnector_UnknownCredentialFails(t *testing.T) {
	v, _ := newTestVaultAndStore(t)
	_, err := NewGithubConnector(context.Background(), v, "missing", "t-1")
	assert.Error(t, err)
}
