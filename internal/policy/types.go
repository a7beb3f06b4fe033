// Package policy implements the governance decision pipeline: the
// IntentContract-aware evaluator ("governor") that turns a proposed Action
// into a Decision, plus the supporting history ring and fingerprinting used
// by loop and rate checks.
package policy

import (
	"time"

	"github.com/google/uuid"
)

// Tool enumerates the connector-backed tools an Action may target.
type Tool string

const (
	ToolEmail        Tool = "email"
	ToolShell        Tool = "shell"
	ToolCalendar     Tool = "calendar"
	ToolFile         Tool = "file"
	ToolClawdbot     Tool = "clawdbot"
	ToolBraveSearch  Tool = "brave_search"
	ToolGmail        Tool = "gmail"
	ToolGoogleCal    Tool = "google_calendar"
	ToolElevenLabs   Tool = "elevenlabs"
	ToolGithub       Tool = "github"
	ToolMemory       Tool = "memory"
)

// RiskLevel is the closed set of risk tiers an Action can carry.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ActionSource identifies who proposed an Action.
type ActionSource string

const (
	SourceAgent     ActionSource = "agent"
	SourceUser      ActionSource = "user"
	SourceDelegated ActionSource = "delegated"
)

// Verdict is the evaluator's closed-set outcome for an Action.
type Verdict string

const (
	VerdictAllow    Verdict = "ALLOW"
	VerdictBlock    Verdict = "BLOCK"
	VerdictEscalate Verdict = "ESCALATE"
	VerdictDegrade  Verdict = "DEGRADE"
	VerdictPause    Verdict = "PAUSE"
	VerdictError    Verdict = "ERROR"
)

// ReasonCode is the closed set of decision reasons surfaced to clients.
type ReasonCode string

const (
	ReasonApproved           ReasonCode = "APPROVED"
	ReasonScopeViolation     ReasonCode = "SCOPE_VIOLATION"
	ReasonRiskTooHigh        ReasonCode = "RISK_TOO_HIGH"
	ReasonDataExfil          ReasonCode = "DATA_EXFIL"
	ReasonOutOfHours         ReasonCode = "OUT_OF_HOURS"
	ReasonIntentMismatch     ReasonCode = "INTENT_MISMATCH"
	ReasonNeedConfirmation   ReasonCode = "NEED_CONFIRMATION"
	ReasonDegradedToSafeAlt  ReasonCode = "DEGRADED_TO_SAFE_ALTERNATIVE"
	ReasonLoopDetected       ReasonCode = "LOOP_DETECTED"
	ReasonRateLimit          ReasonCode = "RATE_LIMIT"
	ReasonEvaluatorError     ReasonCode = "EVALUATOR_ERROR"
	ReasonConfigurationError ReasonCode = "CONFIGURATION_ERROR"
)

// EscalationOption is one choice offered alongside an ESCALATE verdict.
type EscalationOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Action is a proposed side-effecting operation. Immutable after
// construction except for ComputedRisk, which the evaluator fills in.
type Action struct {
	ID           string         `json:"id"`
	Tool         Tool           `json:"tool"`
	Op           string         `json:"op"`
	Params       map[string]any `json:"params"`
	RequestedAt  time.Time      `json:"requested_at"`
	Source       ActionSource   `json:"source"`
	Tags         []string       `json:"tags"`
	EstimatedRisk RiskLevel     `json:"estimated_risk"`
	ComputedRisk  RiskLevel     `json:"computed_risk,omitempty"`
}

// NewAction fills in defaults (id, requested_at) the way the wire layer
// is expected to for a freshly submitted action.
func NewAction(tool Tool, op string, params map[string]any, source ActionSource) *Action {
	if params == nil {
		params = map[string]any{}
	}
	return &Action{
		ID:            uuid.NewString(),
		Tool:          tool,
		Op:            op,
		Params:        params,
		RequestedAt:   time.Now().UTC(),
		Source:        source,
		Tags:          []string{},
		EstimatedRisk: RiskLow,
	}
}

// Clone returns a copy of the action with Op replaced and a tag appended —
// used to build DEGRADE/ESCALATE safe alternatives without mutating the
// original. The safe alternative's tool/source/requested_at must match
// the original action's.
func (a *Action) Clone(op string, extraTags ...string) *Action {
	params := make(map[string]any, len(a.Params))
	for k, v := range a.Params {
		params[k] = v
	}
	tags := make([]string, 0, len(a.Tags)+len(extraTags))
	tags = append(tags, a.Tags...)
	tags = append(tags, extraTags...)
	return &Action{
		ID:            uuid.NewString(),
		Tool:          a.Tool,
		Op:            op,
		Params:        params,
		RequestedAt:   a.RequestedAt,
		Source:        a.Source,
		Tags:          tags,
		EstimatedRisk: a.EstimatedRisk,
		ComputedRisk:  a.ComputedRisk,
	}
}

// Decision is the evaluator's output for a single Action.
type Decision struct {
	Verdict              Verdict            `json:"verdict"`
	ReasonCode           ReasonCode         `json:"reason_code"`
	Explanation          string             `json:"explanation"`
	SafeAlternative       *Action            `json:"safe_alternative,omitempty"`
	RequiredConfirmation bool               `json:"required_confirmation"`
	PolicyVersion        string             `json:"policy_version"`
	EscalationQuestion   string             `json:"escalation_question,omitempty"`
	EscalationOptions    []EscalationOption `json:"escalation_options,omitempty"`
}

// IntentContract declares what an agent is currently authorized to attempt.
// Scope is the only source of tool/op authorization: an empty scope means
// deny everything.
type IntentContract struct {
	IntentID       string              `json:"intent_id"`
	Objective      string              `json:"objective"`
	Scope          map[string][]string `json:"scope"`
	Constraints    map[string]any      `json:"constraints"`
	RiskLevel      RiskLevel           `json:"risk_level"`
	ApprovedByUser bool                `json:"approved_by_user"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// AllowsToolOp reports whether scope grants tool.op.
func (c *IntentContract) AllowsToolOp(tool, op string) bool {
	ops, ok := c.Scope[tool]
	if !ok {
		return false
	}
	for _, allowed := range ops {
		if allowed == op {
			return true
		}
	}
	return false
}

// DefaultDenyIntent is used whenever no intent_id resolves to a stored
// contract — an empty scope denies every action.
func DefaultDenyIntent() *IntentContract {
	now := time.Now().UTC()
	return &IntentContract{
		IntentID:    "default-deny",
		Objective:   "",
		Scope:       map[string][]string{},
		Constraints: map[string]any{},
		RiskLevel:   RiskLow,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// BoolConstraint reads a boolean constraint, defaulting to false.
func BoolConstraint(c map[string]any, key string) bool {
	v, ok := c[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IntConstraint reads an integer constraint; ok is false if absent or not numeric.
func IntConstraint(c map[string]any, key string) (int, bool) {
	v, ok := c[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// StringSliceConstraint reads a []string constraint.
func StringSliceConstraint(c map[string]any, key string) []string {
	v, ok := c[key]
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
