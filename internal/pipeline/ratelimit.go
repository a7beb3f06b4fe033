package pipeline

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/apierror"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/ctxutil"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/ratelimit"
)

// responseCapture wraps http.ResponseWriter to record the status code the
// handler ultimately wrote, the same pattern as helm's
// pkg/api.responseCapture for idempotent replay.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	wrote      bool
	body       bytes.Buffer
}

func (rc *responseCapture) WriteHeader(code int) {
	rc.statusCode = code
	rc.wrote = true
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.wrote {
		rc.statusCode = http.StatusOK
		rc.wrote = true
	}
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

var pollingPaths = map[string]bool{
	"/decisions/query": true,
	"/audit/query":     true,
	"/timeseries":      true,
	"/block-reasons":   true,
}

func isPollingPath(path string) bool {
	return pollingPaths[path] || strings.HasPrefix(path, "/decisions/") || path == "/health" || path == "/metrics"
}

// rateLimitSubject resolves the subject a quota is tracked against: the
// caller-supplied agent id if present, else the remote address, else the
// fixed "anonymous" bucket.
func rateLimitSubject(r *http.Request) (subject string, anonymous bool) {
	if agentID := ctxutil.AgentID(r.Context()); agentID != "" {
		return agentID, false
	}
	if agentID := r.URL.Query().Get("agent_id"); agentID != "" {
		return agentID, false
	}
	return "anonymous:" + r.RemoteAddr, true
}

func rateLimitTier(r *http.Request, anonymous bool) ratelimit.Tier {
	switch {
	case anonymous:
		return ratelimit.TierAnonymous
	case isPollingPath(r.URL.Path):
		return ratelimit.TierPolling
	default:
		return ratelimit.TierDefault
	}
}

// RateLimit enforces per-tenant, per-window quotas ahead of Validation and
// the handler. Counters only record successes: a request rejected by this
// stage itself releases the reservation Allow just took, and a
// response-capture wrapper releases it again if the wrapped handler goes on
// to return a non-2xx response.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			subject, anonymous := rateLimitSubject(r)
			tier := rateLimitTier(r, anonymous)

			decision, err := limiter.Allow(r.Context(), tier, subject, time.Now())
			if err != nil {
				apierror.Internal(w, err)
				return
			}
			if !decision.Allowed {
				_ = limiter.Release(r.Context(), decision)
				apierror.TooManyRequests(w, int(decision.RetryAfter.Seconds()))
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			if capture.statusCode < 200 || capture.statusCode >= 300 {
				_ = limiter.Release(r.Context(), decision)
			}
		})
	}
}
