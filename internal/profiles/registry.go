package profiles

import (
	"fmt"
	"strings"
	"sync"
)

// Entry is a profile with its compiled routing triggers.
type Entry struct {
	Profile  Profile
	Keywords []string
	Patterns []Matcher
}

// Registry holds the loaded profiles in registration order. It is safe for
// concurrent use; Reload swaps the whole table atomically.
type Registry struct {
	mu       sync.RWMutex
	entries  []Entry
	index    map[string]int
	fallback string
}

// NewRegistry builds a registry from profiles and a rule set. Profiles
// without a rule get no triggers. Rules naming unknown profiles, duplicate
// profile ids and uncompilable patterns are rejected. An empty fallback
// selects DefaultFallback, which must then be a known profile.
func NewRegistry(profiles []Profile, rules RuleSet, fallback string, compile CompileFunc) (*Registry, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("profiles: at least one profile is required")
	}
	if compile == nil {
		compile = CompileRegexp
	}
	if fallback == "" {
		fallback = DefaultFallback
	}

	r := &Registry{index: make(map[string]int, len(profiles)), fallback: fallback}
	known := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profiles: %w", err)
		}
		if known[p.ID] {
			return nil, fmt.Errorf("profiles: duplicate profile id %q", p.ID)
		}
		known[p.ID] = true
	}
	if !known[fallback] {
		return nil, fmt.Errorf("profiles: fallback profile %q is not registered", fallback)
	}
	if err := rules.Validate(known); err != nil {
		return nil, fmt.Errorf("profiles: rules: %w", err)
	}

	for _, p := range profiles {
		e := Entry{Profile: p}
		if rule, ok := rules.For(p.ID); ok {
			for _, kw := range rule.Keywords {
				if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
					e.Keywords = append(e.Keywords, kw)
				}
			}
			for _, src := range rule.Patterns {
				m, err := compile(src)
				if err != nil {
					return nil, fmt.Errorf("profiles: rules for %q: %w", p.ID, err)
				}
				e.Patterns = append(e.Patterns, m)
			}
		}
		r.index[p.ID] = len(r.entries)
		r.entries = append(r.entries, e)
	}
	return r, nil
}

// Default returns a registry over the built-in profiles and rules.
func Default() *Registry {
	r, err := NewRegistry(DefaultProfiles(), DefaultRules(), DefaultFallback, CompileRegexp)
	if err != nil {
		panic(fmt.Sprintf("profiles: built-in defaults are invalid: %v", err))
	}
	return r
}

// Reload rebuilds the registry from disk and swaps it in. On error the
// current table is kept.
func (r *Registry) Reload(p Paths) error {
	next, err := Load(p)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = next.entries
	r.index = next.index
	r.fallback = next.fallback
	return nil
}

// Entries returns a snapshot of all entries in registration order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Profiles returns all profiles in registration order.
func (r *Registry) Profiles() []Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Profile, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Profile
	}
	return out
}

// Get returns the profile with the given id.
func (r *Registry) Get(id string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return Profile{}, false
	}
	return r.entries[i].Profile, true
}

// Resolve returns the profile with the given id, or the fallback profile
// when the id is unknown. The bool reports whether the fallback was used.
func (r *Registry) Resolve(id string) (Profile, bool) {
	if p, ok := r.Get(id); ok {
		return p, false
	}
	p, _ := r.Get(r.Fallback())
	return p, true
}

// Fallback returns the fallback profile id.
func (r *Registry) Fallback() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// IDs returns profile ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Profile.ID
	}
	return out
}

// Rules returns the registry's triggers as a persistable rule set.
func (r *Registry) Rules() RuleSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs := RuleSet{Version: 1}
	for _, e := range r.entries {
		if len(e.Keywords) == 0 && len(e.Patterns) == 0 {
			continue
		}
		rule := Rule{Profile: e.Profile.ID, Keywords: append([]string(nil), e.Keywords...)}
		for _, m := range e.Patterns {
			rule.Patterns = append(rule.Patterns, m.String())
		}
		rs.Rules = append(rs.Rules, rule)
	}
	return rs
}
