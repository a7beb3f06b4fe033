// Package ctxutil threads request-scoped values the pipeline's stages set
// and downstream handlers read, the same WithX/GetX context-key pattern
// helm's pkg/auth uses for its Principal.
package ctxutil

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	agentIDKey   contextKey = "agent_id"
	intentIDKey  contextKey = "intent_id"
)

// WithRequestID attaches the request's X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID reads the request id, or "" if unset.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithAgentID attaches the caller-supplied agent id.
func WithAgentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, agentIDKey, id)
}

// AgentID reads the agent id, or "" if unset.
func AgentID(ctx context.Context) string {
	id, _ := ctx.Value(agentIDKey).(string)
	return id
}

// WithIntentID attaches the resolved intent id.
func WithIntentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, intentIDKey, id)
}

// IntentID reads the intent id, or "" if unset.
func IntentID(ctx context.Context) string {
	id, _ := ctx.Value(intentIDKey).(string)
	return id
}
