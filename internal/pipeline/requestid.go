// Package pipeline implements the gateway's middleware chain, composed
// outer to inner as RequestIdAndSecurityHeaders -> Authentication ->
// MagValidation -> RateLimit -> Validation -> Handler, the same
// func(http.Handler) http.Handler wrapper style as helm's
// pkg/auth.RequestIDMiddleware/CORSMiddleware.
package pipeline

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/ctxutil"
)

// RequestIDAndSecurityHeaders generates or echoes X-Request-ID and sets the
// fixed security header set required on every response.
func RequestIDAndSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", requestID)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")

		ctx := ctxutil.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
