package plans

import (
	"fmt"
	"strings"
	"time"
)

// --- State machine for phased plans ---
//
// Phase order is read from Plan.Phases, fixed at creation. The only way
// forward is completing tasks: a covered active phase becomes done and
// the next pending phase becomes active. There is no way back.

// ActivePhaseIndex returns the ordinal position of the active phase, or -1
// when the plan has none (completed, cancelled, or malformed).
func ActivePhaseIndex(p *Plan) int {
	for i, ph := range p.Phases {
		if ph.Status == PhaseActive {
			return i
		}
	}
	return -1
}

// ActivePhase returns the active phase, or nil.
func ActivePhase(p *Plan) *Phase {
	idx := ActivePhaseIndex(p)
	if idx < 0 {
		return nil
	}
	return &p.Phases[idx]
}

// PhaseIndex returns the position of the phase with the given name
// (case-insensitive), or -1.
func PhaseIndex(p *Plan, name string) int {
	name = strings.TrimSpace(name)
	for i, ph := range p.Phases {
		if strings.EqualFold(ph.Name, name) {
			return i
		}
	}
	return -1
}

// Progress describes what a single ApplyCompleted call changed.
type Progress struct {
	// Merged lists tasks newly recorded as completed, in phase order.
	Merged []string `json:"merged"`
	// Ignored lists submitted tasks that belong to no reachable phase and
	// were not stored.
	Ignored []string `json:"ignored,omitempty"`
	// Advanced lists phases that became done during this call.
	Advanced []string `json:"advanced,omitempty"`
	// PlanCompleted is true when the last phase became done.
	PlanCompleted bool `json:"plan_completed"`
}

// Changed reports whether the plan was mutated.
func (pr Progress) Changed() bool {
	return len(pr.Merged) > 0 || len(pr.Advanced) > 0 || pr.PlanCompleted
}

// ApplyCompleted merges completed tasks into the active phase. When that
// covers the phase it is marked done, the next pending phase becomes
// active, and the same task set is applied to it. When no phase remains
// the plan becomes completed.
//
// Re-applying a task set that was already applied changes nothing, even
// once the plan has completed. Other tasks on an inactive plan are an
// error.
func ApplyCompleted(p *Plan, tasks []string) (Progress, error) {
	var pr Progress
	submitted := cleanList(tasks)
	if p.Status != StatusActive {
		for _, t := range submitted {
			if !recorded(p, t) {
				return pr, fmt.Errorf("plan %q is not active (status: %s)", p.ID, p.Status)
			}
		}
		return pr, nil
	}

	want := make(map[string]bool, len(submitted))
	for _, t := range submitted {
		want[t] = true
	}

	now := timeNow().UTC()
	stamp := now.Format(time.RFC3339)

	for {
		idx := ActivePhaseIndex(p)
		if idx < 0 {
			break
		}
		phase := &p.Phases[idx]

		for _, t := range phase.Tasks {
			if want[t] && !phase.IsCompleted(t) {
				pr.Merged = append(pr.Merged, t)
			}
		}
		phase.CompletedTasks = orderedCompleted(phase, want)

		if !phase.Covered() {
			break
		}

		phase.Status = PhaseDone
		phase.CompletedAt = stamp
		pr.Advanced = append(pr.Advanced, phase.Name)

		next := idx + 1
		if next >= len(p.Phases) {
			p.Status = StatusCompleted
			pr.PlanCompleted = true
			break
		}
		p.Phases[next].Status = PhaseActive
		p.Phases[next].StartedAt = stamp
	}

	for _, t := range submitted {
		if !recorded(p, t) {
			pr.Ignored = append(pr.Ignored, t)
		}
	}

	if pr.Changed() {
		p.UpdatedAt = now
	}
	return pr, nil
}

// orderedCompleted returns the phase's completed set extended with the
// wanted tasks, ordered like phase.Tasks.
func orderedCompleted(phase *Phase, want map[string]bool) []string {
	out := make([]string, 0, len(phase.Tasks))
	for _, t := range phase.Tasks {
		if want[t] || phase.IsCompleted(t) {
			out = append(out, t)
		}
	}
	return out
}

// recorded reports whether task is completed in any phase of the plan.
func recorded(p *Plan, task string) bool {
	for i := range p.Phases {
		if p.Phases[i].IsCompleted(task) {
			return true
		}
	}
	return false
}

// SetStatus archives a plan as completed or cancelled, or reactivates a
// cancelled plan. A completed plan cannot be reopened.
func SetStatus(p *Plan, status Status) error {
	if err := ValidateStatus(status); err != nil {
		return err
	}
	if p.Status == status {
		return nil
	}
	if p.Status == StatusCompleted {
		return fmt.Errorf("plan %q is completed and cannot change status", p.ID)
	}
	if status == StatusActive && ActivePhaseIndex(p) < 0 {
		return fmt.Errorf("plan %q has no active phase to resume", p.ID)
	}
	p.Status = status
	p.UpdatedAt = timeNow().UTC()
	return nil
}

// Percent returns completed tasks over all tasks, as a percentage.
func Percent(p *Plan) float64 {
	total, done := 0, 0
	for _, ph := range p.Phases {
		total += len(ph.Tasks)
		done += len(ph.CompletedTasks)
	}
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total) * 100
}
