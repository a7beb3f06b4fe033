// Package policypacks holds the fixed, named policy presets an operator can
// apply wholesale instead of hand-authoring an IntentContract: conservative,
// standard, elevated, and autonomous-dev, embedded as YAML the way helm
// embeds its static assets via embed.FS.
package policypacks

import (
	"embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GHOSTCODERRRRAHAHA/edon-gateway/internal/policy"
)

//go:embed packs/*.yaml
var packFS embed.FS

// pack is the on-disk YAML shape; Apply turns it into a live IntentContract.
type pack struct {
	Name        string              `yaml:"name"`
	Objective   string              `yaml:"objective"`
	RiskLevel   string              `yaml:"risk_level"`
	Scope       map[string][]string `yaml:"scope"`
	Constraints map[string]any      `yaml:"constraints"`
}

var names = []string{"conservative", "standard", "elevated", "autonomous-dev"}

// Names lists the fixed pack identifiers, in the order they should be shown
// to an operator choosing between them.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

func load(name string) (*pack, error) {
	data, err := packFS.ReadFile("packs/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("policypacks: unknown pack %q", name)
	}
	var p pack
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("policypacks: parse %q: %w", name, err)
	}
	return &p, nil
}

// Apply builds the IntentContract for a named pack, scoped to intentID, with
// the delegated-tool invoke op always granted: every preset can reach the
// clawdbot/edon super-tool proxy regardless of its own scope list.
func Apply(name, intentID string) (*policy.IntentContract, error) {
	p, err := load(name)
	if err != nil {
		return nil, err
	}

	scope := make(map[string][]string, len(p.Scope)+1)
	for tool, ops := range p.Scope {
		scope[tool] = append([]string(nil), ops...)
	}
	scope[string(policy.ToolClawdbot)] = appendUnique(scope[string(policy.ToolClawdbot)], "invoke")

	now := time.Now().UTC()
	return &policy.IntentContract{
		IntentID:    intentID,
		Objective:   p.Objective,
		Scope:       scope,
		Constraints: p.Constraints,
		RiskLevel:   policy.RiskLevel(p.RiskLevel),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func appendUnique(ops []string, op string) []string {
	for _, existing := range ops {
		if existing == op {
			return ops
		}
	}
	return append(ops, op)
}
