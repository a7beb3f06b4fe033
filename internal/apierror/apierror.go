// Package apierror is the gateway's single error response shape: a flat
// {detail: string} envelope with the HTTP status conveying the kind, the
// same per-status helper-function layout as helm's pkg/api ProblemDetail
// writers, simplified to the flatter envelope this API's clients expect.
package apierror

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Body is the wire shape of every error response.
type Body struct {
	Detail string `json:"detail"`
}

// Write writes the {detail} envelope at the given status.
func Write(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Body{Detail: detail})
}

// BadRequest writes a 400.
func BadRequest(w http.ResponseWriter, detail string) {
	Write(w, http.StatusBadRequest, detail)
}

// Unauthorized writes a 401.
func Unauthorized(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = "authentication required"
	}
	Write(w, http.StatusUnauthorized, detail)
}

// PaymentRequired writes a 402 for an inactive subscription.
func PaymentRequired(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = "subscription is not active"
	}
	Write(w, http.StatusPaymentRequired, detail)
}

// Forbidden writes a 403.
func Forbidden(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = "insufficient permissions"
	}
	Write(w, http.StatusForbidden, detail)
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, detail string) {
	Write(w, http.StatusNotFound, detail)
}

// MethodNotAllowed writes a 405.
func MethodNotAllowed(w http.ResponseWriter) {
	Write(w, http.StatusMethodNotAllowed, "method not allowed")
}

// Conflict writes a 409.
func Conflict(w http.ResponseWriter, detail string) {
	Write(w, http.StatusConflict, detail)
}

// TooManyRequests writes a 429 with a Retry-After header.
func TooManyRequests(w http.ResponseWriter, retryAfterSecs int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
	Write(w, http.StatusTooManyRequests, "rate limit exceeded")
}

// ServiceUnavailable writes a 503 for an unreachable connector downstream.
func ServiceUnavailable(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = "downstream unavailable"
	}
	Write(w, http.StatusServiceUnavailable, detail)
}

// Internal writes a 500. err is logged but never exposed to the caller.
func Internal(w http.ResponseWriter, err error) {
	slog.Error("internal server error", "error", err)
	Write(w, http.StatusInternalServerError, "an unexpected error occurred")
}
