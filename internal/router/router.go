// Package router scores a free-text request against the profile registry
// and picks the specialist that should handle it.
//
// Scoring is purely lexical: each trigger keyword contained in the
// case-folded request adds 1, each matching trigger pattern adds 2. The
// same request against the same registry always yields the same result.
package router

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/HendryAvila/switchboard/internal/profiles"
)

const (
	keywordWeight = 1
	patternWeight = 2
	maxSecondary  = 2
)

// Match records which triggers fired for one profile.
type Match struct {
	Keywords []string `json:"keywords,omitempty"`
	Patterns []string `json:"patterns,omitempty"`
}

// Result is the outcome of routing one request.
type Result struct {
	Primary   string   `json:"primary"`
	Secondary []string `json:"secondary"`
	// Scores holds every registered profile, zero scores included.
	Scores    map[string]int   `json:"scores"`
	Matches   map[string]Match `json:"matches,omitempty"`
	Rationale string           `json:"rationale"`
	Fallback  bool             `json:"fallback"`
}

// Router routes requests over a profile registry.
type Router struct {
	reg *profiles.Registry
	log *zap.Logger
}

// New creates a Router. A nil logger is replaced with a no-op logger.
func New(reg *profiles.Registry, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{reg: reg, log: log}
}

// Registry returns the registry the router scores against.
func (r *Router) Registry() *profiles.Registry {
	return r.reg
}

// Route scores text against every profile. It never fails: a request that
// matches nothing goes to the fallback profile with score 0.
func (r *Router) Route(text string) Result {
	lower := strings.ToLower(text)
	entries := r.reg.Entries()

	res := Result{
		Secondary: []string{},
		Scores:    make(map[string]int, len(entries)),
		Matches:   make(map[string]Match),
	}

	type ranked struct {
		id    string
		score int
	}
	var hits []ranked

	for _, e := range entries {
		var m Match
		for _, kw := range e.Keywords {
			if strings.Contains(lower, kw) {
				m.Keywords = append(m.Keywords, kw)
			}
		}
		for _, p := range e.Patterns {
			if p.Match(text) {
				m.Patterns = append(m.Patterns, p.String())
			}
		}
		score := keywordWeight*len(m.Keywords) + patternWeight*len(m.Patterns)
		res.Scores[e.Profile.ID] = score
		if score > 0 {
			res.Matches[e.Profile.ID] = m
			hits = append(hits, ranked{id: e.Profile.ID, score: score})
		}
	}

	// Stable: equal scores keep registration order.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if len(hits) == 0 {
		res.Primary = r.reg.Fallback()
		res.Fallback = true
		res.Rationale = "No specific expertise detected, routing to " + res.Primary + " for analysis"
		r.log.Debug("route fallback", zap.String("primary", res.Primary))
		return res
	}

	res.Primary = hits[0].id
	for _, h := range hits[1:] {
		if len(res.Secondary) == maxSecondary {
			break
		}
		res.Secondary = append(res.Secondary, h.id)
	}

	top := []string{hits[0].id}
	if len(hits) > 1 {
		top = append(top, hits[1].id)
	}
	res.Rationale = fmt.Sprintf("Detected %s expertise needed based on content analysis", strings.Join(top, ", "))

	r.log.Debug("routed",
		zap.String("primary", res.Primary),
		zap.Strings("secondary", res.Secondary),
		zap.Int("score", hits[0].score))
	return res
}

// Ranked returns the primary profile followed by the secondary ones.
func (res Result) Ranked() []string {
	return append([]string{res.Primary}, res.Secondary...)
}
