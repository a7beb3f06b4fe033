package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/apierror"
)

const (
	maxBodyBytes    = 10 * 1 << 20 // 10 MiB
	maxJSONDepth    = 10
	maxArrayLength  = 10000
	maxStringLength = 100000
)

var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[\s>]`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)\bon(click|load|error|mouseover|focus)\s*=`),
}

// StrictMode reports whether a request's tenant has strict payload
// validation enabled (dangerous string patterns rejected, not just size and
// shape limits).
type StrictMode func(r *http.Request) bool

// Validation enforces payload limits ahead of the handler. It never
// mutates the body: a request that passes is replayed byte-for-byte to
// the next stage.
func Validation(strict StrictMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) || r.Body == nil || r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > maxBodyBytes {
				apierror.BadRequest(w, "request body exceeds the 10 MiB limit")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
			if err != nil {
				apierror.BadRequest(w, "could not read request body")
				return
			}
			if len(body) > maxBodyBytes {
				apierror.BadRequest(w, "request body exceeds the 10 MiB limit")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if len(body) > 0 {
				var payload any
				if err := json.Unmarshal(body, &payload); err != nil {
					apierror.BadRequest(w, "request body is not valid JSON")
					return
				}
				if err := validateValue(payload, 0, strict(r)); err != nil {
					apierror.BadRequest(w, err.Error())
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func validateValue(v any, depth int, strict bool) error {
	if depth > maxJSONDepth {
		return fmt.Errorf("json exceeds maximum nesting depth of %d", maxJSONDepth)
	}

	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			if len(k) > maxStringLength {
				return fmt.Errorf("object key exceeds maximum length of %d", maxStringLength)
			}
			if err := validateValue(child, depth+1, strict); err != nil {
				return err
			}
		}
	case []any:
		if len(val) > maxArrayLength {
			return fmt.Errorf("array exceeds maximum length of %d", maxArrayLength)
		}
		for _, child := range val {
			if err := validateValue(child, depth+1, strict); err != nil {
				return err
			}
		}
	case string:
		if len(val) > maxStringLength {
			return fmt.Errorf("string exceeds maximum length of %d", maxStringLength)
		}
		if strict {
			for _, pattern := range dangerousPatterns {
				if pattern.MatchString(val) {
					return fmt.Errorf("string field contains a disallowed pattern")
				}
			}
		}
	}
	return nil
}
