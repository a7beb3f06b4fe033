package api

import (
	"net/http"
	"time"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/telemetry"
)

// handleHealth is GET /health: a liveness check with no auth and no
// dependency on anything but the process being up (it is on the public
// path list, same as /metrics).
func (gw *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
		"mode":   gw.modeLabel(),
	})
}

func (gw *Gateway) modeLabel() string {
	if gw.Config.LiteMode() {
		return "lite"
	}
	return "production"
}

// handleTrustSpec is GET /trust-spec: the gateway's current enforcement
// posture as a JSON snapshot — not a time series, that's /timeseries.
func (gw *Gateway) handleTrustSpec(w http.ResponseWriter, r *http.Request) {
	handler := telemetry.TrustSpecHandler(func() telemetry.TrustSpec {
		return telemetry.TrustSpec{
			ServiceName:     "edon-gateway",
			Environment:     gw.Config.Environment,
			PolicyVersion:   gw.Evaluator.PolicyVersion(),
			RateLimitActive: gw.Config.RateLimitEnabled,
			MAGActive:       gw.Config.MAGEnabled,
			GeneratedAt:     time.Now().UTC().Format(time.RFC3339),
		}
	})
	handler.ServeHTTP(w, r)
}
