package pipeline

import (
	"errors"
	"net/http"
	"strings"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/apierror"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/auth"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/ctxutil"
)

// publicPaths never require authentication: health and metrics probes,
// account bootstrap, and the billing webhook, none of which carry a caller
// token. The Gmail/Calendar OAuth redirect legs and the one-shot connect
// submission are public for the same reason: a browser redirect or a
// pasted-key form post carries no bearer token, so each is gated by its
// own connect-code validity instead.
var publicPaths = map[string]bool{
	"/health":                      true,
	"/metrics":                     true,
	"/signup":                      true,
	"/session":                     true,
	"/billing/webhook":             true,
	"/integrations/channel/verify": true,
	"/integrations/connect/submit": true,
	"/integrations/connect/gmail/start":              true,
	"/integrations/connect/gmail/callback":           true,
	"/integrations/connect/google_calendar/start":    true,
	"/integrations/connect/google_calendar/callback": true,
}

func isPublicPath(path string) bool {
	return publicPaths[path]
}

// extractToken reads the primary X-EDON-TOKEN header, falling back to a
// bearer Authorization header.
func extractToken(r *http.Request) string {
	if tok := r.Header.Get("X-EDON-TOKEN"); tok != "" {
		return tok
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// Authentication resolves the caller's Principal through the resolver's
// token chain and rejects unauthenticated or inactive-subscription traffic
// before any further stage runs.
func Authentication(resolver *auth.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			principal, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				if errors.Is(err, auth.ErrInactiveSubscription) {
					apierror.PaymentRequired(w, "")
					return
				}
				apierror.Unauthorized(w, "")
				return
			}

			ctx := auth.WithPrincipal(r.Context(), principal)
			if agentID := r.Header.Get("X-Agent-ID"); agentID != "" {
				ctx = ctxutil.WithAgentID(ctx, agentID)
			}
			if intentID := r.Header.Get("X-Intent-ID"); intentID != "" {
				ctx = ctxutil.WithIntentID(ctx, intentID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
