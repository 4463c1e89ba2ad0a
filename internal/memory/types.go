package memory

import (
	"strings"
	"time"

	"github.com/HendryAvila/switchboard/internal/plans"
	"github.com/HendryAvila/switchboard/internal/quality"
)

// ─── Record kinds ────────────────────────────────────────────────────────────

// Kind tags the variants of a memory record.
type Kind string

const (
	KindPlan       Kind = "plan"
	KindDecision   Kind = "decision"
	KindReflection Kind = "reflection"
	KindConstraint Kind = "constraint"
)

var validKinds = map[Kind]bool{
	KindPlan:       true,
	KindDecision:   true,
	KindReflection: true,
	KindConstraint: true,
}

// ParseKind normalizes a kind string. Empty input returns "" (no filter).
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k == "" {
		return "", nil
	}
	if !validKinds[k] {
		return "", invalid("type", "%q must be one of: plan, decision, reflection, constraint", s)
	}
	return k, nil
}

// typeWeight is the relevance multiplier per kind.
func typeWeight(k Kind) float64 {
	switch k {
	case KindPlan:
		return 1.5
	case KindDecision:
		return 1.2
	default:
		return 1.0
	}
}

// ─── Variants ────────────────────────────────────────────────────────────────

// Decision records a significant project decision.
type Decision struct {
	ID             string    `json:"id"`
	PlanID         string    `json:"plan_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Context        string    `json:"context,omitempty"`
	Options        []string  `json:"options,omitempty"`
	Decision       string    `json:"decision,omitempty"`
	Rationale      string    `json:"rationale,omitempty"`
	DecisionMaker  string    `json:"decision_maker,omitempty"`
	ImpactScope    string    `json:"impact_scope,omitempty"`
	AgentsAffected []string  `json:"agents_affected,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Reflection records what happened during one iteration of a plan.
type Reflection struct {
	ID                 string    `json:"id"`
	PlanID             string    `json:"plan_id"`
	IterationNumber    int       `json:"iteration_number"`
	PlannedObjectives  []string  `json:"planned_objectives,omitempty"`
	AchievedObjectives []string  `json:"achieved_objectives,omitempty"`
	CompletedTasks     []string  `json:"completed_tasks,omitempty"`
	Blockers           []string  `json:"blockers,omitempty"`
	WhatWorked         []string  `json:"what_worked,omitempty"`
	WhatFailed         []string  `json:"what_failed,omitempty"`
	Insights           []string  `json:"insights,omitempty"`
	Recommendations    []string  `json:"recommendations,omitempty"`
	NextFocus          string    `json:"next_focus,omitempty"`
	QualityScore       int       `json:"quality_score,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// ConstraintKind says how a constraint's rule text is read.
type ConstraintKind string

const (
	ConstraintRequirement ConstraintKind = "requirement"
	ConstraintRestriction ConstraintKind = "restriction"
	ConstraintPreference  ConstraintKind = "preference"
)

// Enforcement is how hard the tracker leans on a constraint.
type Enforcement string

const (
	EnforcementStrict   Enforcement = "strict"
	EnforcementAdvisory Enforcement = "advisory"
)

// ConstraintStatus toggles whether a constraint is evaluated.
type ConstraintStatus string

const (
	ConstraintActive   ConstraintStatus = "active"
	ConstraintInactive ConstraintStatus = "inactive"
)

// Constraint is a user-declared rule attached to a plan.
type Constraint struct {
	ID          string           `json:"id"`
	PlanID      string           `json:"plan_id"`
	Title       string           `json:"title"`
	Rule        string           `json:"rule"`
	Kind        ConstraintKind   `json:"kind"`
	Enforcement Enforcement      `json:"enforcement"`
	Priority    string           `json:"priority,omitempty"`
	Scope       string           `json:"scope,omitempty"`
	Status      ConstraintStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// restrictionPrefixes mark rule text that forbids something.
var restrictionPrefixes = []string{
	"must not", "mustn't", "never", "do not", "don't", "no ", "avoid", "forbid", "cannot", "can't", "should not",
}

// preferencePrefixes mark rule text that only expresses a preference.
var preferencePrefixes = []string{"prefer", "should", "ideally", "where possible"}

// InferConstraintKind guesses a constraint kind from the opening words of
// its rule text. Requirement is the default.
func InferConstraintKind(rule string) ConstraintKind {
	r := strings.ToLower(strings.TrimSpace(rule))
	for _, p := range restrictionPrefixes {
		if strings.HasPrefix(r, p) {
			return ConstraintRestriction
		}
	}
	for _, p := range preferencePrefixes {
		if strings.HasPrefix(r, p) {
			return ConstraintPreference
		}
	}
	return ConstraintRequirement
}

// ─── Tagged union ────────────────────────────────────────────────────────────

// Record is one memory item returned by Query. Exactly one of the variant
// pointers is set, matching Kind.
type Record struct {
	Kind      Kind      `json:"type"`
	ID        string    `json:"id"`
	PlanID    string    `json:"plan_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Relevance float64   `json:"relevance"`

	Plan       *plans.Plan `json:"plan,omitempty"`
	Decision   *Decision   `json:"decision,omitempty"`
	Reflection *Reflection `json:"reflection,omitempty"`
	Constraint *Constraint `json:"constraint,omitempty"`
}

// Title returns a one-line label for the record.
func (r Record) Title() string {
	switch {
	case r.Plan != nil:
		return r.Plan.Title
	case r.Decision != nil:
		return r.Decision.Title
	case r.Reflection != nil:
		return "Iteration " + itoa(r.Reflection.IterationNumber) + " reflection"
	case r.Constraint != nil:
		return r.Constraint.Title
	}
	return r.ID
}

// Summary returns a short description of the record's substance.
func (r Record) Summary() string {
	switch {
	case r.Plan != nil:
		if ph := plans.ActivePhase(r.Plan); ph != nil {
			return "status " + string(r.Plan.Status) + ", active phase " + ph.Name
		}
		return "status " + string(r.Plan.Status)
	case r.Decision != nil:
		switch {
		case r.Decision.Decision == "":
			return r.Decision.Description
		case r.Decision.Rationale == "":
			return r.Decision.Decision
		}
		return r.Decision.Decision + " (" + r.Decision.Rationale + ")"
	case r.Reflection != nil:
		parts := append(append([]string{}, r.Reflection.Insights...), r.Reflection.Blockers...)
		if len(parts) == 0 {
			return r.Reflection.NextFocus
		}
		return strings.Join(parts, "; ")
	case r.Constraint != nil:
		return "[" + string(r.Constraint.Enforcement) + "] " + r.Constraint.Rule
	}
	return ""
}

// ─── Activity ────────────────────────────────────────────────────────────────

// ActivitySource says what produced an activity entry.
type ActivitySource string

const (
	SourceRoute    ActivitySource = "route"
	SourceFile     ActivitySource = "file"
	SourceProgress ActivitySource = "progress"
	SourceManual   ActivitySource = "manual"
)

// ActivityEntry is one append-only line of the activity log.
type ActivityEntry struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Profile   string          `json:"profile"`
	Action    string          `json:"action"`
	PlanID    string          `json:"plan_id,omitempty"`
	Source    ActivitySource  `json:"source,omitempty"`
	Quality   *quality.Result `json:"quality,omitempty"`
}

// ─── Aggregates ──────────────────────────────────────────────────────────────

// PlanInput holds the caller-supplied fields of a new plan.
type PlanInput struct {
	Title           string            `json:"title" yaml:"title"`
	Description     string            `json:"description,omitempty" yaml:"description,omitempty"`
	ProjectType     string            `json:"project_type,omitempty" yaml:"project_type,omitempty"`
	Priority        string            `json:"priority,omitempty" yaml:"priority,omitempty"`
	SuccessCriteria []string          `json:"success_criteria,omitempty" yaml:"success_criteria,omitempty"`
	Phases          []plans.PhaseSpec `json:"phases" yaml:"phases"`
}

// ProgressResult is the outcome of UpdateProgress.
type ProgressResult struct {
	Plan     *plans.Plan    `json:"plan"`
	Progress plans.Progress `json:"progress"`
	Percent  float64        `json:"percent"`
}

// PlanMemory is everything recorded against one plan.
type PlanMemory struct {
	Plan        *plans.Plan   `json:"plan"`
	Decisions   []*Decision   `json:"decisions"`
	Reflections []*Reflection `json:"reflections"`
	Constraints []*Constraint `json:"constraints"`
}

// Stats holds aggregate memory statistics.
type Stats struct {
	Plans       int `json:"plans"`
	ActivePlans int `json:"active_plans"`
	Decisions   int `json:"decisions"`
	Reflections int `json:"reflections"`
	Constraints int `json:"constraints"`
	Activity    int `json:"activity"`
}
