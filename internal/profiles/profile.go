// Package profiles owns the specialist profiles requests are routed to and
// the keyword/pattern rule sets the router scores them with.
//
// Profiles and rules are loaded once at startup from YAML files with a
// strict schema. A missing rules file is regenerated from the built-in
// defaults and written back; a missing profiles file falls back to the
// built-in profiles.
package profiles

import (
	"fmt"
	"strings"
)

// DefaultFallback is the profile that receives requests nothing matched.
const DefaultFallback = "meta-orchestrator"

// Profile describes one specialist the dispatcher can hand work to.
type Profile struct {
	ID           string   `yaml:"id" json:"id"`
	DisplayName  string   `yaml:"display_name" json:"display_name"`
	Capabilities []string `yaml:"capabilities" json:"capabilities"`
	// Focus says what the specialist should pay attention to.
	Focus string `yaml:"focus" json:"focus"`
	// Context says which part of the project the specialist works in.
	Context string `yaml:"context,omitempty" json:"context,omitempty"`
}

// Validate checks required fields.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("profile id is required")
	}
	if strings.ContainsAny(p.ID, " \t\r\n") {
		return fmt.Errorf("profile %q: id contains whitespace", p.ID)
	}
	return nil
}

// Name returns the display name, falling back to the id.
func (p Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ID
}

// Rule holds the routing triggers for one profile.
type Rule struct {
	Profile  string   `yaml:"profile" json:"profile"`
	Keywords []string `yaml:"keywords" json:"keywords"`
	Patterns []string `yaml:"patterns" json:"patterns"`
}

// RuleSet is the persisted routing table. Rules keep file order.
type RuleSet struct {
	Version int    `yaml:"version" json:"version"`
	Rules   []Rule `yaml:"rules" json:"rules"`
}

// For returns the rule for a profile id.
func (rs RuleSet) For(profileID string) (Rule, bool) {
	for _, r := range rs.Rules {
		if r.Profile == profileID {
			return r, true
		}
	}
	return Rule{}, false
}

// Validate checks the rule set against the known profile ids: every rule
// must reference a known profile, at most once.
func (rs RuleSet) Validate(known map[string]bool) error {
	seen := make(map[string]bool, len(rs.Rules))
	for i, r := range rs.Rules {
		if r.Profile == "" {
			return fmt.Errorf("rule %d: profile is required", i+1)
		}
		if !known[r.Profile] {
			return fmt.Errorf("rule %d: unknown profile %q", i+1, r.Profile)
		}
		if seen[r.Profile] {
			return fmt.Errorf("rule %d: duplicate rule for profile %q", i+1, r.Profile)
		}
		seen[r.Profile] = true
	}
	return nil
}
