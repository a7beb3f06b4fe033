package policypacks_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/intent/policypacks"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
)

func TestApply_AllNamedPacksLoad(t *testing.T) {
	for _, name := range policypacks.Names() {
		intent, err := policypacks.Apply(name, "intent-"+name)
		require.NoError(t, err, name)
		assert.Equal(t, "intent-"+name, intent.IntentID)
		assert.NotEmpty(t, intent.Objective)
		assert.Contains(t, intent.Scope[string(policy.ToolClawdbot)], "invoke")
	}
}

func TestApply_UnknownPackErrors(t *testing.T) {
	_, err := policypacks.Apply("nonexistent", "x")
	assert.Error(t, err)
}

func TestApply_ConservativeIsLowRisk(t *testing.T) {
	intent, err := policypacks.Apply("conservative", "intent-1")
	require.NoError(t, err)
	assert.Equal(t, policy.RiskLow, intent.RiskLevel)
	assert.False(t, intent.AllowsToolOp("shell", "exec"))
}

func TestApply_AutonomousDevAllowsShell(t *testing.T) {
	intent, err := policypacks.Apply("autonomous-dev", "intent-2")
	require.NoError(t, err)
	assert.True(t, intent.AllowsToolOp("shell", "exec"))
	assert.True(t, intent.AllowsToolOp(string(policy.ToolClawdbot), "invoke"))
}
