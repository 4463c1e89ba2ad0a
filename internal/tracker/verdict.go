// Package tracker validates requests against the live project plan and its
// constraints before work proceeds.
//
// Validation never fails: every outcome is a Verdict of allow, warn or
// block with human-readable reasons. Internal errors and panics degrade to
// warn so a broken check can never silently allow or hard-block work.
package tracker

import (
	"github.com/HendryAvila/switchboard/internal/memory"
	"github.com/HendryAvila/switchboard/internal/plans"
)

// Level is the severity of a verdict.
type Level string

const (
	Allow Level = "allow"
	Warn  Level = "warn"
	Block Level = "block"
)

var severity = map[Level]int{Allow: 0, Warn: 1, Block: 2}

// worse returns the more severe of two levels.
func worse(a, b Level) Level {
	if severity[b] > severity[a] {
		return b
	}
	return a
}

// Verdict is the outcome of validating one request.
type Verdict struct {
	Level    Level           `json:"verdict"`
	Reasons  []string        `json:"reasons"`
	PlanID   string          `json:"plan_id,omitempty"`
	Findings []Finding       `json:"findings,omitempty"`
	Sequence *SequenceCheck  `json:"sequence,omitempty"`
	Security []SecurityIssue `json:"security,omitempty"`
}

// add raises the verdict level and records a reason.
func (v *Verdict) add(level Level, reason string) {
	v.Level = worse(v.Level, level)
	if reason != "" {
		v.Reasons = append(v.Reasons, reason)
	}
}

// Finding is the evaluation of one constraint against a request.
type Finding struct {
	ConstraintID string   `json:"constraint_id"`
	Title        string   `json:"title"`
	Score        float64  `json:"score"`
	Level        Level    `json:"level"`
	Evidence     []string `json:"evidence,omitempty"`
}

// ActiveContext is the plan state a request is validated against. A nil
// Plan means no plan is active.
type ActiveContext struct {
	Plan        *plans.Plan
	Constraints []*memory.Constraint
}

// Action is a unit of requested work, optionally tagged with the phase it
// belongs to.
type Action struct {
	Text  string `json:"text"`
	Phase string `json:"phase,omitempty"`
}

// SequenceCheck says whether an action fits the plan's phase order.
type SequenceCheck struct {
	Fits        bool   `json:"fits"`
	Verdict     Level  `json:"verdict"`
	Reason      string `json:"reason"`
	TargetPhase string `json:"target_phase,omitempty"`
}
