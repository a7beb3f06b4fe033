// Package rules holds the evaluator's pattern-matching checks. The
// dangerous-shell-command and data-exfiltration sets are compiled into
// cached CEL programs; the objective/tool keyword map is checked with a
// plain substring match. The lists are the Go defaults below, or whatever
// a caller passes to NewSetFrom; nothing loads them from YAML.
package rules

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

// Defaults mirror the governor's built-in pattern lists.
var (
	DefaultDangerousShellCommands = []string{
		"rm -rf",
		"format",
		"del /f /s /q",
		"shutdown",
		"reboot",
	}

	DefaultExternalSharingPatterns = []string{
		"export",
		"upload",
		"share",
		"send_to",
		"external",
	}

	// DefaultToolKeywords is the coarse objective→keyword alignment map.
	// Intentionally weak: a safety net, not semantic classification.
	DefaultToolKeywords = map[string][]string{
		"email":           {"email", "inbox", "message", "mail"},
		"calendar":        {"calendar", "meeting", "schedule", "event"},
		"file":            {"file", "document", "folder"},
		"shell":           {"command", "system", "terminal"},
		"brave_search":    {"search", "web", "research", "look up", "find"},
		"gmail":           {"gmail", "inbox", "email", "mail"},
		"google_calendar": {"calendar", "event", "schedule", "meeting"},
		"elevenlabs":      {"voice", "speech", "tts", "read aloud", "storytelling"},
		"github":          {"github", "repo", "issue", "code", "pr"},
		"memory":          {"memory", "preference", "remember", "episode", "past task"},
		"clawdbot":        {}, // delegated tool: no keyword gate, sub-allowlist governs it
	}
)

// Matcher compiles a fixed set of substring patterns into a single cached
// CEL program of the form `patterns.exists(p, text.contains(p))`; Match
// lower-cases text in Go before evaluating it.
type Matcher struct {
	env      *cel.Env
	prg      cel.Program
	patterns []string
}

// NewMatcher compiles a matcher over the given patterns (already expected
// lower-case; callers lower-case the haystack before evaluating).
func NewMatcher(patterns []string) (*Matcher, error) {
	env, err := cel.NewEnv(
		cel.Variable("text", cel.StringType),
		cel.Variable("patterns", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(`patterns.exists(p, text.contains(p))`)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel compile: %w", issues.Err())
	}
	prg, err := env.Program(ast, cel.InterruptCheckFrequency(100), cel.CostLimit(10000))
	if err != nil {
		return nil, fmt.Errorf("cel program: %w", err)
	}

	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}

	return &Matcher{env: env, prg: prg, patterns: lowered}, nil
}

// Match reports whether text contains any configured pattern, case-insensitive.
func (m *Matcher) Match(text string) (bool, error) {
	out, _, err := m.prg.Eval(map[string]any{
		"text":     strings.ToLower(text),
		"patterns": m.patterns,
	})
	if err != nil {
		return false, fmt.Errorf("cel eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("cel result not bool")
	}
	return val, nil
}

// Set bundles the compiled matchers the evaluator needs. Built once at boot
// and shared across all evaluate() calls — recompiling per-request would
// defeat the cached-program point of using CEL here at all.
type Set struct {
	mu             sync.RWMutex
	dangerousShell *Matcher
	sharing        *Matcher
	toolKeywords   map[string][]string
}

// NewSet compiles the default rule set.
func NewSet() (*Set, error) {
	return NewSetFrom(DefaultDangerousShellCommands, DefaultExternalSharingPatterns, DefaultToolKeywords)
}

// NewSetFrom compiles a rule set from the given pattern lists and keyword
// map.
func NewSetFrom(dangerousShell, sharing []string, keywords map[string][]string) (*Set, error) {
	dsm, err := NewMatcher(dangerousShell)
	if err != nil {
		return nil, fmt.Errorf("compile dangerous-shell matcher: %w", err)
	}
	sm, err := NewMatcher(sharing)
	if err != nil {
		return nil, fmt.Errorf("compile sharing matcher: %w", err)
	}
	return &Set{dangerousShell: dsm, sharing: sm, toolKeywords: keywords}, nil
}

// IsDangerousCommand checks a shell command against the dangerous-command set.
func (s *Set) IsDangerousCommand(command string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ok, err := s.dangerousShell.Match(command)
	return err == nil && ok
}

// IsExternalSharing checks an op name and stringified params against the
// sharing-pattern set.
func (s *Set) IsExternalSharing(op string, paramsStr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ok, err := s.sharing.Match(op); err == nil && ok {
		return true
	}
	ok, err := s.sharing.Match(paramsStr)
	return err == nil && ok
}

// AlignsWithObjective reports whether the tool's configured keywords appear
// in the (lower-cased) objective. A tool with no configured keywords always
// aligns (e.g. the delegated-tool gate relies on its own sub-allowlist).
func (s *Set) AlignsWithObjective(tool, objective string) bool {
	s.mu.RLock()
	keywords := s.toolKeywords[tool]
	s.mu.RUnlock()
	if len(keywords) == 0 {
		return true
	}
	objective = strings.ToLower(objective)
	for _, kw := range keywords {
		if strings.Contains(objective, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
