package pipeline_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/pipeline"
)

func alwaysStrict(*http.Request) bool { return true }
func neverStrict(*http.Request) bool  { return false }

func TestValidation_AllowsWellFormedPayload(t *testing.T) {
	handler := pipeline.Validation(neverStrict)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))

	payload := []byte(`{"tool":"email","op":"send","params":{"to":"a@b.com"}}`)
	req := httptest.NewRequest(http.MethodPost, "/execute", bytes.NewReader(payload))
	req.ContentLength = int64(len(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidation_RejectsOversizedBody(t *testing.T) {
	handler := pipeline.Validation(neverStrict)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run for an oversized body")
	}))

	req := httptest.NewRequest(http.MethodPost, "/execute", bytes.NewReader([]byte("{}")))
	req.ContentLength = 11 * 1 << 20
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidation_RejectsMalformedJSON(t *testing.T) {
	handler := pipeline.Validation(neverStrict)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run for malformed json")
	}))

	payload := []byte(`{not json`)
	req := httptest.NewRequest(http.MethodPost, "/execute", bytes.NewReader(payload))
	req.ContentLength = int64(len(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidation_RejectsExcessiveNesting(t *testing.T) {
	handler := pipeline.Validation(neverStrict)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run for excessive nesting")
	}))

	nested := "1"
	for i := 0; i < 15; i++ {
		nested = fmt.Sprintf(`{"a":%s}`, nested)
	}
	req := httptest.NewRequest(http.MethodPost, "/execute", bytes.NewReader([]byte(nested)))
	req.ContentLength = int64(len(nested))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidation_StrictModeRejectsScriptTags(t *testing.T) {
	handler := pipeline.Validation(alwaysStrict)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run when a dangerous pattern is present")
	}))

	payload := []byte(`{"params":{"body":"<script>alert(1)</script>"}}`)
	req := httptest.NewRequest(http.MethodPost, "/execute", bytes.NewReader(payload))
	req.ContentLength = int64(len(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidation_NonStrictModeAllowsScriptLikeStrings(t *testing.T) {
	handler := pipeline.Validation(neverStrict)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	payload := []byte(`{"params":{"body":"<script>alert(1)</script>"}}`)
	req := httptest.NewRequest(http.MethodPost, "/execute", bytes.NewReader(payload))
	req.ContentLength = int64(len(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
