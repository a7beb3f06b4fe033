package store

import "time"

// Credential is an encrypted-at-rest secret scoped to a tenant (or globally,
// when TenantID is empty) and keyed by a stable CredentialID chosen by the
// caller (e.g. "gmail-primary").
type Credential struct {
	CredentialID   string
	TenantID       string
	ToolName       string
	CredentialType string
	Ciphertext     []byte
	Nonce          []byte
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Tenant is a billing/authorization boundary.
type Tenant struct {
	TenantID  string
	Name      string
	Plan      string
	Status    string // "active" | "suspended" | "canceled"
	CreatedAt time.Time
}

// User belongs to a tenant and authenticates via one or more ApiKeys.
type User struct {
	UserID    string
	TenantID  string
	Email     string
	CreatedAt time.Time
}

// ApiKey is stored hash-only; the raw key is shown to the caller exactly
// once, at creation time, and never again.
type ApiKey struct {
	KeyID     string
	UserID    string
	TenantID  string
	KeyHash   string
	Label     string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// ChannelToken authenticates a bound external channel (e.g. a Slack or
// Discord integration) independently of a human user's ApiKey.
type ChannelToken struct {
	TokenID   string
	TenantID  string
	Channel   string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// ChannelBinding links an external channel identity to a tenant/user pair,
// established via a one-time ConnectCode.
type ChannelBinding struct {
	BindingID string
	TenantID  string
	UserID    string
	Channel   string
	ExternalID string
	CreatedAt time.Time
}

// ConnectCode is a short-lived, single-use code exchanged for a ChannelBinding.
type ConnectCode struct {
	Code      string
	TenantID  string
	UserID    string
	Channel   string
	ExpiresAt time.Time
	ConsumedAt *time.Time
	CreatedAt time.Time
}

// AuditEvent is one governed-action record: the action as proposed plus the
// decision the evaluator returned for it.
type AuditEvent struct {
	EventID      string
	DecisionID   string
	ActionID     string
	IntentID     string
	AgentID      string
	TenantID     string
	Tool         string
	Op           string
	ParamsJSON   string
	Verdict      string
	ReasonCode   string
	Explanation  string
	PolicyVersion string
	CreatedAt    time.Time
}

// DecisionFilter narrows QueryDecisions.
type DecisionFilter struct {
	TenantID string
	AgentID  string
	IntentID string
	Verdict  string
	Since    *time.Time
	Until    *time.Time
	Limit    int
}

// AuditFilter narrows QueryAudit.
type AuditFilter struct {
	TenantID string
	AgentID  string
	Tool     string
	Since    *time.Time
	Until    *time.Time
	Limit    int
}

// TimeseriesPoint is one bucket of the verdict-over-time aggregate.
type TimeseriesPoint struct {
	BucketStart time.Time
	Verdict     string
	Count       int
}

// BlockReasonCount is one row of the block-reasons aggregate.
type BlockReasonCount struct {
	ReasonCode string
	Count      int
}

// MemoryItem is one agent-remembered key/value fact, scoped to a tenant and
// optionally to the agent that wrote it.
type MemoryItem struct {
	MemoryID  string
	TenantID  string
	AgentID   string
	Key       string
	Value     string
	CreatedAt time.Time
}

// BillingState is the minimal subscription read path the auth middleware
// needs — billing webhooks/checkout flows themselves are out of scope.
type BillingState struct {
	TenantID string
	Status   string // "active" | "past_due" | "canceled"
	Plan     string
	Period   string // "monthly" | "annual"
}
