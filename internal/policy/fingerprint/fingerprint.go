// Package fingerprint computes the canonical, sorted-key serialization of
// action params used to compare repeated actions for loop detection.
package fingerprint

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gowebpki/jcs"
)

// Of returns the RFC 8785 JSON Canonicalization Scheme encoding of params,
// the deterministic params_fingerprint the evaluator compares across
// history entries. Two maps with the same keys/values in different
// iteration order produce identical fingerprints.
func Of(params map[string]any) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize params: %w", err)
	}
	return string(canonical), nil
}

// MustOf is Of but swallows the (practically unreachable for a
// JSON-decoded map) error, returning the raw marshaling as a fallback so a
// fingerprinting failure never blocks evaluation.
func MustOf(params map[string]any) string {
	fp, err := Of(params)
	if err != nil {
		raw, _ := json.Marshal(params)
		return string(raw)
	}
	return fp
}

// ContainsAny reports whether s contains any of the patterns, case-insensitive.
func ContainsAny(s string, patterns []string) bool {
	sl := strings.ToLower(s)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(sl, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
