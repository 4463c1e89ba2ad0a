// Package bundle assembles the context a specialist receives with a
// request: its profile, the project memory most relevant to the request,
// and the constraints currently in force.
package bundle

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/HendryAvila/switchboard/internal/memory"
	"github.com/HendryAvila/switchboard/internal/plans"
	"github.com/HendryAvila/switchboard/internal/profiles"
	"github.com/HendryAvila/switchboard/internal/templates"
	"github.com/HendryAvila/switchboard/internal/textutil"
)

const (
	// MaxMemoryLimit caps the memory items placed in a bundle. It is also
	// the default.
	MaxMemoryLimit = 10
	// candidateLimit is how many records are pulled from the store before
	// keyword reordering and capping.
	candidateLimit = 50

	noConstraints = "No active constraints."
)

// Memory is one relevant memory item in a bundle.
type Memory struct {
	Kind      memory.Kind `json:"type"`
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Summary   string      `json:"summary"`
	Relevance float64     `json:"relevance"`
	// Matched is true when the item shares a keyword with the request.
	Matched bool `json:"matched"`
}

// Bundle is the assembled context for one request.
type Bundle struct {
	ProfileID           string   `json:"profile_id"`
	ProfileName         string   `json:"profile_name"`
	ProfileDescription  string   `json:"profile_description"`
	ProfileContext      string   `json:"profile_context,omitempty"`
	ProfileCapabilities []string `json:"profile_capabilities"`
	// Fallback is true when the requested profile was unknown.
	Fallback bool `json:"fallback"`

	PlanID      string `json:"plan_id,omitempty"`
	PlanTitle   string `json:"plan_title,omitempty"`
	ActivePhase string `json:"active_phase,omitempty"`

	Memories           []Memory `json:"relevant_memory"`
	ConstraintsSummary string   `json:"active_constraints"`
	Request            string   `json:"request"`

	renderer *templates.Renderer
}

// Store is the slice of the memory store the assembler reads.
type Store interface {
	ActivePlan(ctx context.Context) (*plans.Plan, error)
	Query(ctx context.Context, c memory.Criteria) ([]memory.Record, error)
	Constraints(ctx context.Context, planID string, activeOnly bool) ([]*memory.Constraint, error)
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithMemoryLimit sets the maximum number of memory items per bundle,
// clamped to MaxMemoryLimit.
func WithMemoryLimit(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.limit = min(n, MaxMemoryLimit)
		}
	}
}

// WithLogger sets the assembler's logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.log = l
		}
	}
}

// Assembler builds bundles from the profile registry and the memory store.
type Assembler struct {
	reg      *profiles.Registry
	store    Store
	limit    int
	log      *zap.Logger
	renderer *templates.Renderer
}

// New creates an Assembler.
func New(reg *profiles.Registry, store Store, opts ...Option) (*Assembler, error) {
	r, err := templates.NewRenderer()
	if err != nil {
		return nil, err
	}
	a := &Assembler{
		reg:      reg,
		store:    store,
		limit:    MaxMemoryLimit,
		log:      zap.NewNop(),
		renderer: r,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Assemble builds the bundle for profileID and request. An unknown profile
// is replaced by the registry's fallback profile. Memory is drawn from the
// active plan when there is one, and from all plans otherwise.
func (a *Assembler) Assemble(ctx context.Context, profileID, request string) (*Bundle, error) {
	p, fallback := a.reg.Resolve(profileID)
	b := &Bundle{
		ProfileID:           p.ID,
		ProfileName:         p.Name(),
		ProfileDescription:  p.Focus,
		ProfileContext:      p.Context,
		ProfileCapabilities: p.Capabilities,
		Fallback:            fallback,
		Request:             request,
		ConstraintsSummary:  noConstraints,
		renderer:            a.renderer,
	}
	if fallback {
		a.log.Debug("unknown profile, using fallback",
			zap.String("requested", profileID),
			zap.String("fallback", p.ID))
	}

	plan, err := a.store.ActivePlan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bundle: load active plan: %w", err)
	}

	criteria := memory.Criteria{Limit: candidateLimit}
	if plan != nil {
		b.PlanID = plan.ID
		b.PlanTitle = plan.Title
		if ph := plans.ActivePhase(plan); ph != nil {
			b.ActivePhase = ph.Name
		}
		criteria.PlanID = plan.ID

		cs, err := a.store.Constraints(ctx, plan.ID, true)
		if err != nil {
			return nil, fmt.Errorf("bundle: load constraints: %w", err)
		}
		b.ConstraintsSummary = SummarizeConstraints(cs)
	}

	recs, err := a.store.Query(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("bundle: query memory: %w", err)
	}
	b.Memories = selectMemories(recs, textutil.Keywords(request), a.limit)

	a.log.Debug("bundle assembled",
		zap.String("profile", b.ProfileID),
		zap.String("plan", b.PlanID),
		zap.Int("candidates", len(recs)),
		zap.Int("memories", len(b.Memories)))
	return b, nil
}

// Render renders the bundle as the markdown prompt handed to a specialist.
func (b *Bundle) Render() (string, error) {
	r := b.renderer
	if r == nil {
		var err error
		if r, err = templates.NewRenderer(); err != nil {
			return "", err
		}
	}
	return r.Render(templates.Bundle, b.templateData())
}

func (b *Bundle) templateData() templates.BundleData {
	d := templates.BundleData{
		ProfileID:    b.ProfileID,
		ProfileName:  b.ProfileName,
		Focus:        b.ProfileDescription,
		Context:      b.ProfileContext,
		Capabilities: b.ProfileCapabilities,
		Fallback:     b.Fallback,
		PlanTitle:    b.PlanTitle,
		ActivePhase:  b.ActivePhase,
		Constraints:  b.ConstraintsSummary,
		Request:      b.Request,
	}
	for _, m := range b.Memories {
		d.Memories = append(d.Memories, templates.MemoryLine{
			Kind:    string(m.Kind),
			Title:   m.Title,
			Summary: textutil.Truncate(m.Summary, 200),
		})
	}
	return d
}

// selectMemories moves records sharing a keyword with the request to the
// front, keeping relevance order within each group, and caps the result.
func selectMemories(recs []memory.Record, keywords []string, limit int) []Memory {
	out := make([]Memory, 0, len(recs))
	for _, r := range recs {
		m := Memory{
			Kind:      r.Kind,
			ID:        r.ID,
			Title:     r.Title(),
			Summary:   r.Summary(),
			Relevance: r.Relevance,
		}
		m.Matched = len(keywords) > 0 && textutil.Overlap(keywords, m.Title+" "+m.Summary) > 0
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Matched && !out[j].Matched
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SummarizeConstraints lists active constraints, strict ones first.
func SummarizeConstraints(cs []*memory.Constraint) string {
	var active []*memory.Constraint
	for _, c := range cs {
		if c != nil && c.Status != memory.ConstraintInactive {
			active = append(active, c)
		}
	}
	if len(active) == 0 {
		return noConstraints
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Enforcement == memory.EnforcementStrict && active[j].Enforcement != memory.EnforcementStrict
	})

	var b strings.Builder
	for i, c := range active {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- [%s %s] %s: %s", c.Enforcement, c.Kind, c.Title, c.Rule)
	}
	return b.String()
}
