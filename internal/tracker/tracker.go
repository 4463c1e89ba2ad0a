package tracker

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/HendryAvila/switchboard/internal/memory"
	"github.com/HendryAvila/switchboard/internal/plans"
)

// NoActivePlanReason is the reason given when nothing constrains a request.
const NoActivePlanReason = "no active plan — unconstrained"

// Validate checks a request against the active plan and its constraints.
// It never fails; a panic inside any check degrades the verdict to warn.
func Validate(text string, ac ActiveContext) (v Verdict) {
	defer func() {
		if r := recover(); r != nil {
			v = Verdict{Level: Warn, Reasons: []string{fmt.Sprintf("validation error: %v", r)}}
		}
	}()

	issues := Screen(text)
	if ac.Plan == nil {
		// Without a plan the verdict stays allow; issues are still reported.
		return Verdict{Level: Allow, Reasons: []string{NoActivePlanReason}, Security: issues}
	}

	v = Verdict{Level: Allow, PlanID: ac.Plan.ID, Security: issues}
	for _, i := range issues {
		v.add(Warn, "security: "+i.String())
	}
	for _, c := range ac.Constraints {
		if c == nil || c.Status == memory.ConstraintInactive {
			continue
		}
		f, hit := evaluateConstraint(c, text)
		if !hit {
			continue
		}
		v.Findings = append(v.Findings, f)
		v.add(f.Level, fmt.Sprintf("constraint %q (%s, score %.1f): %s", c.Title, c.Enforcement, f.Score, strings.Join(f.Evidence, "; ")))
	}

	seq := EnforceSequence(Action{Text: text}, ac.Plan)
	v.Sequence = &seq
	if seq.Verdict != Allow {
		v.add(seq.Verdict, seq.Reason)
	}

	if len(v.Reasons) == 0 {
		v.Reasons = []string{seq.Reason}
	}
	return v
}

// Store is the slice of the memory store the tracker reads.
type Store interface {
	ActivePlan(ctx context.Context) (*plans.Plan, error)
	Constraints(ctx context.Context, planID string, activeOnly bool) ([]*memory.Constraint, error)
	Query(ctx context.Context, c memory.Criteria) ([]memory.Record, error)
}

// Observer receives every verdict the tracker issues.
type Observer interface {
	Verdict(source string, level Level)
}

// Tracker validates requests against the plan state held in a Store.
type Tracker struct {
	store Store
	log   *zap.Logger
	obs   Observer
}

// New creates a Tracker. A nil logger is replaced with a no-op logger; obs
// may be nil.
func New(store Store, log *zap.Logger, obs Observer) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{store: store, log: log, obs: obs}
}

// ActiveContext loads the active plan and its active constraints.
func (t *Tracker) ActiveContext(ctx context.Context) (ActiveContext, error) {
	p, err := t.store.ActivePlan(ctx)
	if err != nil || p == nil {
		return ActiveContext{}, err
	}
	cs, err := t.store.Constraints(ctx, p.ID, true)
	if err != nil {
		return ActiveContext{Plan: p}, err
	}
	return ActiveContext{Plan: p, Constraints: cs}, nil
}

// ValidateActive validates text against whatever plan is active now. A
// failure to load the plan degrades to warn carrying the error message.
// source names the caller for logs and metrics.
func (t *Tracker) ValidateActive(ctx context.Context, source, text string) Verdict {
	ac, err := t.ActiveContext(ctx)
	var v Verdict
	if err != nil {
		t.log.Warn("load active plan failed", zap.String("source", source), zap.Error(err))
		v = Verdict{Level: Warn, Reasons: []string{"could not load active plan: " + err.Error()}}
	} else {
		v = Validate(text, ac)
	}

	if t.obs != nil {
		t.obs.Verdict(source, v.Level)
	}
	t.log.Debug("validated",
		zap.String("source", source),
		zap.String("verdict", string(v.Level)),
		zap.Strings("reasons", v.Reasons))
	return v
}

// Suggest returns next-step guidance for the active plan. Blockers from
// the plan's latest reflection are surfaced first.
func (t *Tracker) Suggest(ctx context.Context) (Suggestions, error) {
	p, err := t.store.ActivePlan(ctx)
	if err != nil {
		return Suggestions{}, err
	}
	s := SuggestNext(p)
	if p == nil {
		return s, nil
	}

	recs, err := t.store.Query(ctx, memory.Criteria{Kind: memory.KindReflection, PlanID: p.ID, Limit: 1})
	if err != nil {
		return s, err
	}
	if len(recs) == 1 && recs[0].Reflection != nil && len(recs[0].Reflection.Blockers) > 0 {
		warn := "Address unresolved blockers before proceeding: " + strings.Join(recs[0].Reflection.Blockers, "; ")
		s.Items = append([]string{warn}, s.Items...)
	}
	return s, nil
}
