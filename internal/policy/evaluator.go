package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy/fingerprint"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy/history"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy/rules"
)

// Config holds the evaluator's tunable thresholds, set from environment
// variables at boot.
type Config struct {
	MaxActionsPerMinute      int
	LoopDetectionWindow      time.Duration
	LoopDetectionThreshold   int
	WorkHoursStart           int // inclusive, 24h
	WorkHoursEnd             int // exclusive, 24h
	PolicyVersion            string
}

// DefaultConfig mirrors the source's PolicyConfig defaults.
func DefaultConfig() Config {
	return Config{
		MaxActionsPerMinute:    30,
		LoopDetectionWindow:    60 * time.Second,
		LoopDetectionThreshold: 5,
		WorkHoursStart:         8,
		WorkHoursEnd:           18,
		PolicyVersion:          "policy-v1",
	}
}

// Evaluator is the stateless-w.r.t.-persistence governor: it reads an
// in-memory history ring and a compiled rule set, and never performs I/O.
type Evaluator struct {
	cfg     Config
	rules   *rules.Set
}

// NewEvaluator builds an evaluator with the given config and compiled rules.
func NewEvaluator(cfg Config, ruleSet *rules.Set) *Evaluator {
	return &Evaluator{cfg: cfg, rules: ruleSet}
}

// PolicyVersion reports the evaluator's configured policy version string,
// the same value every Decision it returns carries.
func (e *Evaluator) PolicyVersion() string {
	return e.cfg.PolicyVersion
}

// Evaluate is the pure decision function: (Action, IntentContract, Clock,
// HistoryWindow) -> Decision. It never raises; on an internal invariant
// failure it returns ERROR rather than panicking, so callers can treat ERROR
// as uniformly non-executable.
func (e *Evaluator) Evaluate(action *Action, intent *IntentContract, now time.Time, h *history.Ring) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			d = Decision{
				Verdict:      VerdictError,
				ReasonCode:   ReasonEvaluatorError,
				Explanation:  "internal evaluator error",
				PolicyVersion: e.cfg.PolicyVersion,
			}
		}
	}()

	if action == nil || intent == nil {
		return Decision{
			Verdict:       VerdictError,
			ReasonCode:    ReasonConfigurationError,
			Explanation:   "missing action or intent",
			PolicyVersion: e.cfg.PolicyVersion,
		}
	}

	// 1. Compute server-side risk.
	computedRisk := action.EstimatedRisk
	if computedRisk == "" {
		computedRisk = RiskLow
	}
	if action.Tool == ToolShell {
		command, _ := action.Params["command"].(string)
		if e.rules.IsDangerousCommand(command) {
			computedRisk = RiskCritical
		}
	}
	action.ComputedRisk = computedRisk

	// 2. Drafts-only degrade — runs before scope so it can rescue an
	// otherwise out-of-scope send.
	if BoolConstraint(intent.Constraints, "drafts_only") && isEmailSend(action) {
		alt := action.Clone("draft", "degraded")
		alt.ComputedRisk = computedRisk
		return Decision{
			Verdict:       VerdictDegrade,
			ReasonCode:    ReasonDegradedToSafeAlt,
			Explanation:   "intent requires drafts_only; degrading send to draft",
			SafeAlternative: alt,
			PolicyVersion: e.cfg.PolicyVersion,
		}
	}

	// 3. Scope check — risk dominates scope when both apply.
	if !intent.AllowsToolOp(string(action.Tool), action.Op) {
		if computedRisk == RiskCritical {
			return e.blockf(ReasonRiskTooHigh, "dangerous operation blocked: %s.%s (also out of scope)", action.Tool, action.Op)
		}
		return e.blockf(ReasonScopeViolation, "action %s.%s not in scope", action.Tool, action.Op)
	}

	// 4. Delegated-tool sub-allowlist.
	if action.Tool == ToolClawdbot && action.Op == "invoke" {
		allowed := StringSliceConstraint(intent.Constraints, "allowed_clawdbot_tools")
		if len(allowed) > 0 {
			inner, _ := action.Params["tool"].(string)
			if !contains(allowed, inner) {
				return e.blockf(ReasonScopeViolation, "delegated tool %q not in allowed list", inner)
			}
		}
	}

	// 5. Work-hours window.
	if BoolConstraint(intent.Constraints, "work_hours_only") {
		hour := now.Hour()
		if hour < e.cfg.WorkHoursStart || hour >= e.cfg.WorkHoursEnd {
			return e.blockf(ReasonOutOfHours, "action requested outside work hours (hour=%d, window=[%d,%d))", hour, e.cfg.WorkHoursStart, e.cfg.WorkHoursEnd)
		}
	}

	// 6. Record in history before the remaining checks, so an action that
	// is itself the threshold-crossing repetition is caught on submission.
	fp := fingerprint.MustOf(action.Params)
	h.Record(string(action.Tool), action.Op, fp, now)

	// 7. Loop detection.
	if h.CountRecent(string(action.Tool), action.Op, fp, e.cfg.LoopDetectionWindow, now) >= e.cfg.LoopDetectionThreshold {
		return Decision{
			Verdict:       VerdictPause,
			ReasonCode:    ReasonLoopDetected,
			Explanation:   fmt.Sprintf("loop detected: %s.%s repeated %d+ times in %s", action.Tool, action.Op, e.cfg.LoopDetectionThreshold, e.cfg.LoopDetectionWindow),
			PolicyVersion: e.cfg.PolicyVersion,
		}
	}

	// 8. Rate limit.
	if h.CountAllRecent(time.Minute, now) >= e.cfg.MaxActionsPerMinute {
		return Decision{
			Verdict:       VerdictPause,
			ReasonCode:    ReasonRateLimit,
			Explanation:   fmt.Sprintf("rate limit exceeded: %d actions/minute", e.cfg.MaxActionsPerMinute),
			PolicyVersion: e.cfg.PolicyVersion,
		}
	}

	// 9. Data-exfiltration check.
	if BoolConstraint(intent.Constraints, "no_external_sharing") {
		if e.rules.IsExternalSharing(action.Op, paramsString(action.Params)) {
			return e.blockf(ReasonDataExfil, "external sharing detected in %s operation", action.Op)
		}
	}

	// 10. Recipient cap.
	if maxRecipients, ok := IntConstraint(intent.Constraints, "max_recipients"); ok {
		count := recipientCount(action.Params)
		if count > maxRecipients && action.Op == "send" {
			alt := action.Clone("draft", "degraded", "too_many_recipients")
			alt.ComputedRisk = computedRisk
			return Decision{
				Verdict:              VerdictEscalate,
				ReasonCode:           ReasonNeedConfirmation,
				Explanation:          fmt.Sprintf("recipient count (%d) exceeds max (%d); requires confirmation", count, maxRecipients),
				SafeAlternative:      alt,
				RequiredConfirmation: true,
				PolicyVersion:        e.cfg.PolicyVersion,
				EscalationQuestion:   fmt.Sprintf("send to %d recipients? (max allowed: %d)", count, maxRecipients),
				EscalationOptions: []EscalationOption{
					{ID: "allow_once", Label: "Allow once"},
					{ID: "draft_only", Label: "Save as draft only"},
					{ID: "keep_blocking", Label: "Keep blocking"},
				},
			}
		}
	}

	// 11. Risk threshold.
	if computedRisk == RiskHigh || computedRisk == RiskCritical {
		if !(intent.ApprovedByUser && computedRisk == RiskHigh) {
			return Decision{
				Verdict:              VerdictEscalate,
				ReasonCode:           ReasonNeedConfirmation,
				Explanation:          fmt.Sprintf("high/critical risk action requires user confirmation (risk: %s)", computedRisk),
				RequiredConfirmation: true,
				PolicyVersion:        e.cfg.PolicyVersion,
			}
		}
	}

	// 12. Objective alignment.
	if !e.rules.AlignsWithObjective(string(action.Tool), intent.Objective) {
		objectiveShort := len(strings.TrimSpace(intent.Objective)) < 15
		if objectiveShort && BoolConstraint(intent.Constraints, "escalate_on_ambiguous_intent") {
			return Decision{
				Verdict:              VerdictEscalate,
				ReasonCode:           ReasonNeedConfirmation,
				Explanation:          "intent is ambiguous; please clarify",
				RequiredConfirmation: true,
				PolicyVersion:        e.cfg.PolicyVersion,
				EscalationQuestion:   "what would you like to do? (e.g. search, send email, create calendar event)",
				EscalationOptions: []EscalationOption{
					{ID: "clarify", Label: "I'll clarify"},
					{ID: "keep_blocking", Label: "Cancel"},
				},
			}
		}
		return e.blockf(ReasonIntentMismatch, "action does not align with intent objective: %s", intent.Objective)
	}

	// 13. Otherwise, ALLOW.
	return Decision{
		Verdict:       VerdictAllow,
		ReasonCode:    ReasonApproved,
		Explanation:   "action approved",
		PolicyVersion: e.cfg.PolicyVersion,
	}
}

func (e *Evaluator) blockf(reason ReasonCode, format string, args ...any) Decision {
	return Decision{
		Verdict:       VerdictBlock,
		ReasonCode:    reason,
		Explanation:   fmt.Sprintf(format, args...),
		PolicyVersion: e.cfg.PolicyVersion,
	}
}

func isEmailSend(a *Action) bool {
	return (a.Tool == ToolEmail || a.Tool == ToolGmail) && a.Op == "send"
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func recipientCount(params map[string]any) int {
	v, ok := params["recipients"]
	if !ok {
		return 0
	}
	switch r := v.(type) {
	case []string:
		return len(r)
	case []any:
		return len(r)
	case string:
		if r == "" {
			return 0
		}
		return len(strings.Split(r, ","))
	default:
		return 1
	}
}

func paramsString(params map[string]any) string {
	var b strings.Builder
	for k, v := range params {
		fmt.Fprintf(&b, "%s=%v ", k, v)
	}
	return b.String()
}
