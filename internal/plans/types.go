// Package plans models phased project plans and the state machine that
// moves them forward.
//
// A plan owns an ordered list of phases fixed at creation time. While the
// plan is active exactly one phase is active; a phase is done only once
// every one of its tasks has been completed, and phases complete strictly
// in registration order.
//
// The package holds no persistence. The memory store owns durability and
// locking; the tracker reads plans to validate requests.
package plans

import (
	"fmt"
	"strings"
	"time"
)

// --- Plan status enum ---

// Status tracks the overall lifecycle of a plan. Plans are never deleted;
// completed and cancelled are archival states.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// validStatuses is the set of allowed plan statuses.
var validStatuses = map[Status]bool{
	StatusActive:    true,
	StatusCompleted: true,
	StatusCancelled: true,
}

// ValidateStatus returns an error if the status is not recognized.
func ValidateStatus(s Status) error {
	if !validStatuses[s] {
		return fmt.Errorf("invalid plan status %q: must be one of: active, completed, cancelled", s)
	}
	return nil
}

// --- Phase status enum ---

// PhaseStatus is the position of a phase in the pending → active → done
// progression.
type PhaseStatus string

const (
	PhasePending PhaseStatus = "pending"
	PhaseActive  PhaseStatus = "active"
	PhaseDone    PhaseStatus = "done"
)

// --- Core data structures ---

// Phase is an ordered, gated stage of a plan with its own task list.
// CompletedTasks is kept in the same order as Tasks.
type Phase struct {
	Name           string      `json:"name"`
	Tasks          []string    `json:"tasks"`
	CompletedTasks []string    `json:"completed_tasks"`
	Keywords       []string    `json:"keywords,omitempty"`
	Status         PhaseStatus `json:"status"`
	StartedAt      string      `json:"started_at,omitempty"`
	CompletedAt    string      `json:"completed_at,omitempty"`
}

// Plan is the root memory entity describing a project's phased roadmap.
type Plan struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	ProjectType     string    `json:"project_type,omitempty"`
	Priority        string    `json:"priority,omitempty"`
	SuccessCriteria []string  `json:"success_criteria,omitempty"`
	Status          Status    `json:"status"`
	Phases          []Phase   `json:"phases"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PhaseSpec is the caller-supplied shape of a phase at plan creation.
type PhaseSpec struct {
	Name     string   `json:"name" yaml:"name"`
	Tasks    []string `json:"tasks" yaml:"tasks"`
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// ValidatePhases checks a phase list before a plan is built from it.
// Phases must be non-empty, named, uniquely named (case-insensitive) and
// each must declare at least one task.
func ValidatePhases(specs []PhaseSpec) error {
	if len(specs) == 0 {
		return fmt.Errorf("at least one phase is required")
	}
	seen := make(map[string]bool, len(specs))
	for i, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return fmt.Errorf("phase %d: name is required", i+1)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return fmt.Errorf("phase %d: duplicate phase name %q", i+1, name)
		}
		seen[key] = true
		if len(cleanList(spec.Tasks)) == 0 {
			return fmt.Errorf("phase %q: at least one task is required", name)
		}
	}
	return nil
}

// New builds an active plan from validated phase specs. The first phase
// starts active and the rest pending. Callers must run ValidatePhases first.
func New(id, title string, specs []PhaseSpec) *Plan {
	now := timeNow().UTC()
	stamp := now.Format(time.RFC3339)

	phases := make([]Phase, len(specs))
	for i, spec := range specs {
		phases[i] = Phase{
			Name:           strings.TrimSpace(spec.Name),
			Tasks:          cleanList(spec.Tasks),
			CompletedTasks: []string{},
			Keywords:       cleanList(spec.Keywords),
			Status:         PhasePending,
		}
	}
	phases[0].Status = PhaseActive
	phases[0].StartedAt = stamp

	return &Plan{
		ID:        id,
		Title:     strings.TrimSpace(title),
		Status:    StatusActive,
		Phases:    phases,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// cleanList trims entries, drops empties and collapses duplicates while
// keeping first-seen order.
func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

// HasTask reports whether task is part of the phase's task list.
func (ph *Phase) HasTask(task string) bool {
	for _, t := range ph.Tasks {
		if t == task {
			return true
		}
	}
	return false
}

// IsCompleted reports whether task has been recorded as completed.
func (ph *Phase) IsCompleted(task string) bool {
	for _, t := range ph.CompletedTasks {
		if t == task {
			return true
		}
	}
	return false
}

// Covered reports whether every task of the phase is completed.
func (ph *Phase) Covered() bool {
	for _, t := range ph.Tasks {
		if !ph.IsCompleted(t) {
			return false
		}
	}
	return true
}

// PendingTasks returns the phase's tasks not yet completed, in order.
func (ph *Phase) PendingTasks() []string {
	var out []string
	for _, t := range ph.Tasks {
		if !ph.IsCompleted(t) {
			out = append(out, t)
		}
	}
	return out
}
