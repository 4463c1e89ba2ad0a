package tracker

import (
	"fmt"

	"github.com/HendryAvila/switchboard/internal/plans"
)

const maxSuggestedTasks = 3

// Suggestions is the next-step guidance for a plan.
type Suggestions struct {
	PlanID string   `json:"plan_id,omitempty"`
	Phase  string   `json:"phase,omitempty"`
	Items  []string `json:"suggestions"`
	// ReadyToAdvance is true when one task stands between the active
	// phase and the next.
	ReadyToAdvance bool    `json:"ready_to_advance"`
	Percent        float64 `json:"percent"`
}

// SuggestNext lists what to work on next in the plan.
func SuggestNext(p *plans.Plan) Suggestions {
	if p == nil {
		return Suggestions{Items: []string{"Create a project plan to guide systematic development"}}
	}
	s := Suggestions{PlanID: p.ID, Percent: plans.Percent(p)}

	switch p.Status {
	case plans.StatusCompleted:
		s.Items = []string{fmt.Sprintf("All %d phases complete - consider a project review and reflection", len(p.Phases))}
		return s
	case plans.StatusCancelled:
		s.Items = []string{"Plan is cancelled - resume it or create a new plan"}
		return s
	}

	k := plans.ActivePhaseIndex(p)
	if k < 0 {
		s.Items = []string{"Plan has no active phase"}
		return s
	}
	phase := p.Phases[k]
	s.Phase = phase.Name

	pending := phase.PendingTasks()
	if len(phase.CompletedTasks) == 0 {
		s.Items = append(s.Items, fmt.Sprintf("Start working on next tasks for %s", phase.Name))
	} else {
		s.Items = append(s.Items, fmt.Sprintf("Continue %s (%d of %d tasks done)", phase.Name, len(phase.CompletedTasks), len(phase.Tasks)))
	}
	shown := pending
	if len(shown) > maxSuggestedTasks {
		shown = shown[:maxSuggestedTasks]
	}
	s.Items = append(s.Items, shown...)

	if len(pending) == 1 {
		s.ReadyToAdvance = true
		next := "project completion"
		if k+1 < len(p.Phases) {
			next = p.Phases[k+1].Name
		}
		s.Items = append(s.Items, fmt.Sprintf("Completing %q advances to %s", pending[0], next))
	}
	return s
}
