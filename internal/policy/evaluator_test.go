package policy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy/history"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy/rules"
)

func newEvaluator(t *testing.T) *policy.Evaluator {
	t.Helper()
	set, err := rules.NewSet()
	require.NoError(t, err)
	return policy.NewEvaluator(policy.DefaultConfig(), set)
}

func scopedIntent(scope map[string][]string) *policy.IntentContract {
	now := time.Now().UTC()
	return &policy.IntentContract{
		IntentID:    "it-1",
		Objective:   "send an email to the team",
		Scope:       scope,
		Constraints: map[string]any{},
		RiskLevel:   policy.RiskLow,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestEvaluate_ScopeViolationBlocks(t *testing.T) {
	e := newEvaluator(t)
	intent := scopedIntent(map[string][]string{"calendar": {"create"}})
	action := policy.NewAction(policy.ToolEmail, "send", map[string]any{"recipients": []string{"a@x.com"}}, policy.SourceAgent)

	d := e.Evaluate(action, intent, time.Now().UTC(), history.New())

	assert.Equal(t, policy.VerdictBlock, d.Verdict)
	assert.Equal(t, policy.ReasonScopeViolation, d.ReasonCode)
}

func TestEvaluate_DefaultDenyIntentBlocksEverything(t *testing.T) {
	e := newEvaluator(t)
	intent := policy.DefaultDenyIntent()
	action := policy.NewAction(policy.ToolEmail, "send", map[string]any{}, policy.SourceAgent)

	d := e.Evaluate(action, intent, time.Now().UTC(), history.New())

	assert.Equal(t, policy.VerdictBlock, d.Verdict)
	assert.Equal(t, policy.ReasonScopeViolation, d.ReasonCode)
}

func TestEvaluate_DangerousShellCommandOutOfScopeStillReportsRiskTooHigh(t *testing.T) {
	e := newEvaluator(t)
	intent := scopedIntent(map[string][]string{"email": {"send"}})
	action := policy.NewAction(policy.ToolShell, "run", map[string]any{"command": "rm -rf /"}, policy.SourceAgent)

	d := e.Evaluate(action, intent, time.Now().UTC(), history.New())

	assert.Equal(t, policy.VerdictBlock, d.Verdict)
	assert.Equal(t, policy.ReasonRiskTooHigh, d.ReasonCode)
}

func TestEvaluate_DraftsOnlyDegradesEmailSend(t *testing.T) {
	e := newEvaluator(t)
	intent := scopedIntent(map[string][]string{"email": {"send", "draft"}})
	intent.Constraints["drafts_only"] = true
	action := policy.NewAction(policy.ToolEmail, "send", map[string]any{"recipients": []string{"a@x.com"}}, policy.SourceAgent)

	d := e.Evaluate(action, intent, time.Now().UTC(), history.New())

	require.Equal(t, policy.VerdictDegrade, d.Verdict)
	assert.Equal(t, policy.ReasonDegradedToSafeAlt, d.ReasonCode)
	require.NotNil(t, d.SafeAlternative)
	assert.Equal(t, "draft", d.SafeAlternative.Op)
	assert.Equal(t, policy.ToolEmail, d.SafeAlternative.Tool)
	assert.Equal(t, action.Source, d.SafeAlternative.Source)
	assert.Equal(t, action.RequestedAt, d.SafeAlternative.RequestedAt)
}

func TestEvaluate_WorkHoursOnlyBlocksOutsideWindow(t *testing.T) {
	e := newEvaluator(t)
	intent := scopedIntent(map[string][]string{"email": {"send"}})
	intent.Constraints["work_hours_only"] = true
	action := policy.NewAction(policy.ToolEmail, "send", map[string]any{"recipients": []string{"a@x.com"}}, policy.SourceAgent)

	night := time.Date(2026, 7, 30, 23, 0, 0, 0, time.UTC)
	d := e.Evaluate(action, intent, night, history.New())

	assert.Equal(t, policy.VerdictBlock, d.Verdict)
	assert.Equal(t, policy.ReasonOutOfHours, d.ReasonCode)
}

func TestEvaluate_LoopDetectionPausesOnThresholdCrossingAction(t *testing.T) {
	e := newEvaluator(t)
	intent := scopedIntent(map[string][]string{"file": {"read"}})
	h := history.New()
	now := time.Now().UTC()

	var last policy.Decision
	for i := 0; i < 5; i++ {
		action := policy.NewAction(policy.ToolFile, "read", map[string]any{"path": "/tmp/a"}, policy.SourceAgent)
		last = e.Evaluate(action, intent, now, h)
	}

	assert.Equal(t, policy.VerdictPause, last.Verdict)
	assert.Equal(t, policy.ReasonLoopDetected, last.ReasonCode)
}

func TestEvaluate_RateLimitPausesAfterMax(t *testing.T) {
	cfg := policy.DefaultConfig()
	cfg.MaxActionsPerMinute = 2
	set, err := rules.NewSet()
	require.NoError(t, err)
	e := policy.NewEvaluator(cfg, set)

	intent := scopedIntent(map[string][]string{"file": {"read"}})
	h := history.New()
	now := time.Now().UTC()

	var last policy.Decision
	for i := 0; i < 3; i++ {
		action := policy.NewAction(policy.ToolFile, "read", map[string]any{"path": "/tmp/file-" + string(rune('a'+i))}, policy.SourceAgent)
		last = e.Evaluate(action, intent, now, h)
	}

	assert.Equal(t, policy.VerdictPause, last.Verdict)
	assert.Equal(t, policy.ReasonRateLimit, last.ReasonCode)
}

func TestEvaluate_NoExternalSharingBlocksExportOp(t *testing.T) {
	e := newEvaluator(t)
	intent := scopedIntent(map[string][]string{"file": {"export"}})
	intent.Constraints["no_external_sharing"] = true
	action := policy.NewAction(policy.ToolFile, "export", map[string]any{"path": "/tmp/a"}, policy.SourceAgent)

	d := e.Evaluate(action, intent, time.Now().UTC(), history.New())

	assert.Equal(t, policy.VerdictBlock, d.Verdict)
	assert.Equal(t, policy.ReasonDataExfil, d.ReasonCode)
}

func TestEvaluate_MaxRecipientsEscalatesWithDraftAlternative(t *testing.T) {
	e := newEvaluator(t)
	intent := scopedIntent(map[string][]string{"email": {"send", "draft"}})
	intent.Constraints["max_recipients"] = 2
	action := policy.NewAction(policy.ToolEmail, "send", map[string]any{
		"recipients": []string{"a@x.com", "b@x.com", "c@x.com"},
	}, policy.SourceAgent)

	d := e.Evaluate(action, intent, time.Now().UTC(), history.New())

	require.Equal(t, policy.VerdictEscalate, d.Verdict)
	assert.True(t, d.RequiredConfirmation)
	require.NotNil(t, d.SafeAlternative)
	assert.Equal(t, "draft", d.SafeAlternative.Op)
}

func TestEvaluate_RecipientsAtCapIsAllowed(t *testing.T) {
	e := newEvaluator(t)
	intent := scopedIntent(map[string][]string{"email": {"send"}})
	intent.Constraints["max_recipients"] = 2
	action := policy.NewAction(policy.ToolEmail, "send", map[string]any{
		"recipients": []string{"a@x.com", "b@x.com"},
	}, policy.SourceAgent)

	d := e.Evaluate(action, intent, time.Now().UTC(), history.New())

	assert.Equal(t, policy.VerdictAllow, d.Verdict)
}

func TestEvaluate_HighRiskRequiresConfirmationUnlessPreApproved(t *testing.T) {
	e := newEvaluator(t)
	intent := scopedIntent(map[string][]string{"file": {"delete"}})
	intent.Objective = "clean up old files in the downloads folder"
	action := policy.NewAction(policy.ToolFile, "delete", map[string]any{"path": "/tmp/a"}, policy.SourceAgent)
	action.EstimatedRisk = policy.RiskHigh

	d := e.Evaluate(action, intent, time.Now().UTC(), history.New())
	assert.Equal(t, policy.VerdictEscalate, d.Verdict)

	intent.ApprovedByUser = true
	action2 := policy.NewAction(policy.ToolFile, "delete", map[string]any{"path": "/tmp/b"}, policy.SourceAgent)
	action2.EstimatedRisk = policy.RiskHigh
	d2 := e.Evaluate(action2, intent, time.Now().UTC(), history.New())
	assert.Equal(t, policy.VerdictAllow, d2.Verdict)
}

func TestEvaluate_IntentMismatchBlocksWhenObjectiveUnrelated(t *testing.T) {
	e := newEvaluator(t)
	intent := scopedIntent(map[string][]string{"github": {"create_issue"}})
	intent.Objective = "water the office plants every morning"
	action := policy.NewAction(policy.ToolGithub, "create_issue", map[string]any{"title": "bug"}, policy.SourceAgent)

	d := e.Evaluate(action, intent, time.Now().UTC(), history.New())

	assert.Equal(t, policy.VerdictBlock, d.Verdict)
	assert.Equal(t, policy.ReasonIntentMismatch, d.ReasonCode)
}

func TestEvaluate_AmbiguousShortObjectiveEscalatesWhenConfigured(t *testing.T) {
	e := newEvaluator(t)
	intent := scopedIntent(map[string][]string{"github": {"create_issue"}})
	intent.Objective = "do stuff"
	intent.Constraints["escalate_on_ambiguous_intent"] = true
	action := policy.NewAction(policy.ToolGithub, "create_issue", map[string]any{"title": "bug"}, policy.SourceAgent)

	d := e.Evaluate(action, intent, time.Now().UTC(), history.New())

	assert.Equal(t, policy.VerdictEscalate, d.Verdict)
	assert.Equal(t, policy.ReasonNeedConfirmation, d.ReasonCode)
}

func TestEvaluate_ClawdbotSubAllowlistBlocksUnlistedInnerTool(t *testing.T) {
	e := newEvaluator(t)
	intent := scopedIntent(map[string][]string{"clawdbot": {"invoke"}})
	intent.Objective = "use clawdbot to search the web"
	intent.Constraints["allowed_clawdbot_tools"] = []string{"web_search"}
	action := policy.NewAction(policy.ToolClawdbot, "invoke", map[string]any{"tool": "shell_exec"}, policy.SourceAgent)

	d := e.Evaluate(action, intent, time.Now().UTC(), history.New())

	assert.Equal(t, policy.VerdictBlock, d.Verdict)
	assert.Equal(t, policy.ReasonScopeViolation, d.ReasonCode)
}

func TestEvaluate_NilActionReturnsConfigurationError(t *testing.T) {
	e := newEvaluator(t)
	intent := policy.DefaultDenyIntent()

	d := e.Evaluate(nil, intent, time.Now().UTC(), history.New())

	assert.Equal(t, policy.VerdictError, d.Verdict)
	assert.Equal(t, policy.ReasonConfigurationError, d.ReasonCode)
}
