package pipeline_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/ctxutil"
	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/pipeline"
)

func TestRequestIDAndSecurityHeaders_GeneratesWhenAbsent(t *testing.T) {
	var sawRequestID string
	handler := pipeline.RequestIDAndSecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawRequestID = ctxutil.RequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, sawRequestID)
	assert.Equal(t, sawRequestID, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRequestIDAndSecurityHeaders_EchoesExisting(t *testing.T) {
	handler := pipeline.RequestIDAndSecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "caller-supplied-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "caller-supplied-id", rec.Header().Get("X-Request-ID"))
}
