package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.LiteMode())
	assert.Equal(t, 30, cfg.MaxActionsPerMinute)
	assert.Equal(t, 8, cfg.WorkHoursStart)
	assert.Equal(t, 18, cfg.WorkHoursEnd)
}

func TestLoad_DatabaseURLDisablesLiteMode(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://edon@localhost:5432/edon?sslmode=disable")
	cfg := config.Load()
	assert.False(t, cfg.LiteMode())
}

func TestValidate_RequiresEncryptionKeyWhenStrict(t *testing.T) {
	t.Setenv("EDON_CREDENTIALS_STRICT", "true")
	cfg := config.Load()
	cfg.CredentialEncryptionKey = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENCRYPTION_KEY")
}

func TestValidate_RejectsEnvTokenInProdWithoutOverride(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("EDON_ENV_TOKEN", "dev-secret")
	t.Setenv("EDON_CREDENTIALS_STRICT", "false")
	cfg := config.Load()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALLOW_ENV_TOKEN_IN_PROD")
}

func TestValidate_RejectsInvalidWorkHoursWindow(t *testing.T) {
	t.Setenv("EDON_CREDENTIALS_STRICT", "false")
	cfg := config.Load()
	cfg.WorkHoursStart = 20
	cfg.WorkHoursEnd = 8
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "work hours")
}

func TestValidate_OK(t *testing.T) {
	t.Setenv("EDON_CREDENTIALS_STRICT", "false")
	cfg := config.Load()
	require.NoError(t, cfg.Validate())
}
