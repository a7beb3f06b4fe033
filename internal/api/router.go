package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/pipeline"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/ratelimit"
)

// Router builds the gateway's chi.Mux: the pipeline chain
// (RequestIDAndSecurityHeaders -> Authentication -> MagValidation ->
// RateLimit -> Validation), then one flat route per endpoint — no
// versioned path prefix.
func Router(gw *Gateway, limiter *ratelimit.Limiter, magVerifier pipeline.MagVerifier) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(pipeline.RequestIDAndSecurityHeaders)
	r.Use(pipeline.Authentication(gw.Resolver))
	r.Use(pipeline.MagValidation(magVerifier, gw.tenantMagEnabled))
	r.Use(pipeline.RateLimit(limiter))
	r.Use(pipeline.Validation(gw.tenantStrictMode))

	idem := newIdempotencyStore()

	r.Get("/health", gw.handleHealth)
	r.Get("/metrics", gw.Telemetry.MetricsHandler().ServeHTTP)
	r.Get("/trust-spec", gw.handleTrustSpec)

	r.Post("/signup", gw.handleSignup)
	r.Get("/session", gw.handleSession)

	r.With(IdempotencyMiddleware(idem)).Post("/execute", gw.handleExecute)
	r.With(IdempotencyMiddleware(idem)).Post("/clawdbot/invoke", gw.handleClawdbotInvoke)
	r.With(IdempotencyMiddleware(idem)).Post("/edon/invoke", gw.handleClawdbotInvoke)

	r.Post("/intent/set", gw.handleIntentSet)
	r.Get("/intent/get", gw.handleIntentGet)

	r.Get("/policy-packs", gw.handlePolicyPacksList)
	r.Post("/policy-packs/{pack}/apply", gw.handlePolicyPackApply)

	r.Get("/decisions/query", gw.handleDecisionsQuery)
	r.Get("/decisions/{id}", gw.handleDecisionGet)
	r.Get("/audit/query", gw.handleAuditQuery)
	r.Get("/timeseries", gw.handleTimeseries)
	r.Get("/block-reasons", gw.handleBlockReasons)

	r.Post("/credentials/set", gw.handleCredentialSet)
	r.Delete("/credentials/{id}", gw.handleCredentialDelete)

	r.Route("/integrations", func(r chi.Router) {
		r.Get("/connect/buttons", gw.handleConnectButtons)
		r.Post("/connect/link", gw.handleConnectLink)
		r.Get("/connect/status", gw.handleConnectStatus)
		r.Post("/connect/submit", gw.handleConnectSubmit)

		r.Get("/connect/gmail/start", gw.handleOAuthStart("gmail"))
		r.Get("/connect/gmail/callback", gw.handleOAuthCallback("gmail"))
		r.Get("/connect/google_calendar/start", gw.handleOAuthStart("google_calendar"))
		r.Get("/connect/google_calendar/callback", gw.handleOAuthCallback("google_calendar"))

		r.Post("/clawdbot/connect", gw.handleClawdbotConnect)
		r.Get("/status", gw.handleIntegrationStatus)

		r.Post("/channel/connect-code", gw.handleChannelConnectCode)
		r.Post("/channel/verify", gw.handleChannelVerify)
	})

	return r
}

func (gw *Gateway) tenantMagEnabled(tenantID string) bool {
	return gw.Config.MAGEnabled
}

func (gw *Gateway) tenantStrictMode(r *http.Request) bool {
	return gw.Config.StrictValidation
}
