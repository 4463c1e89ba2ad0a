package plans

import (
	"strings"
	"testing"
	"time"
)

func init() {
	// Freeze time for deterministic tests.
	timeNow = func() time.Time {
		return time.Date(2026, 2, 23, 12, 0, 0, 0, time.UTC)
	}
}

// --- Helper ---

func demandForecast() *Plan {
	return New("plan_test", "Demand Forecast", []PhaseSpec{
		{Name: "Data Analysis", Tasks: []string{"Load data", "EDA"}},
		{Name: "Modeling", Tasks: []string{"Train model"}},
	})
}

func statuses(p *Plan) []PhaseStatus {
	out := make([]PhaseStatus, len(p.Phases))
	for i, ph := range p.Phases {
		out[i] = ph.Status
	}
	return out
}

// --- ValidatePhases ---

func TestValidatePhases(t *testing.T) {
	tests := []struct {
		name    string
		specs   []PhaseSpec
		wantErr string
	}{
		{"empty", nil, "at least one phase"},
		{"unnamed", []PhaseSpec{{Tasks: []string{"a"}}}, "name is required"},
		{"duplicate", []PhaseSpec{
			{Name: "Build", Tasks: []string{"a"}},
			{Name: "build", Tasks: []string{"b"}},
		}, "duplicate phase name"},
		{"no tasks", []PhaseSpec{{Name: "Build", Tasks: []string{"  "}}}, "at least one task"},
		{"valid", []PhaseSpec{{Name: "Build", Tasks: []string{"a"}}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePhases(tt.specs)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

// --- New ---

func TestNew_FirstPhaseActive(t *testing.T) {
	p := demandForecast()

	if p.Status != StatusActive {
		t.Errorf("Status = %s, want active", p.Status)
	}
	got := statuses(p)
	if got[0] != PhaseActive || got[1] != PhasePending {
		t.Errorf("phase statuses = %v, want [active pending]", got)
	}
	if p.Phases[0].StartedAt == "" {
		t.Error("first phase should have StartedAt set")
	}
}

func TestNew_CollapsesDuplicateTasks(t *testing.T) {
	p := New("x", "x", []PhaseSpec{{Name: "A", Tasks: []string{"t1", " t1 ", "t2"}}})
	if len(p.Phases[0].Tasks) != 2 {
		t.Errorf("tasks = %v, want 2 unique", p.Phases[0].Tasks)
	}
}

// --- ApplyCompleted ---

func TestApplyCompleted_DemandForecastScenario(t *testing.T) {
	p := demandForecast()

	pr, err := ApplyCompleted(p, []string{"Load data"})
	if err != nil {
		t.Fatalf("ApplyCompleted: %v", err)
	}
	if got := statuses(p); got[0] != PhaseActive || got[1] != PhasePending {
		t.Fatalf("after partial update statuses = %v, want [active pending]", got)
	}
	if len(pr.Merged) != 1 || len(pr.Advanced) != 0 {
		t.Errorf("progress = %+v, want 1 merged, 0 advanced", pr)
	}

	pr, err = ApplyCompleted(p, []string{"Load data", "EDA"})
	if err != nil {
		t.Fatalf("ApplyCompleted: %v", err)
	}
	if got := statuses(p); got[0] != PhaseDone || got[1] != PhaseActive {
		t.Fatalf("after full update statuses = %v, want [done active]", got)
	}
	if len(pr.Advanced) != 1 || pr.Advanced[0] != "Data Analysis" {
		t.Errorf("Advanced = %v, want [Data Analysis]", pr.Advanced)
	}
	if p.Status != StatusActive {
		t.Errorf("plan status = %s, want active", p.Status)
	}
}

func TestApplyCompleted_Idempotent(t *testing.T) {
	p := demandForecast()
	set := []string{"Load data", "EDA"}

	if _, err := ApplyCompleted(p, set); err != nil {
		t.Fatal(err)
	}
	before := *p
	beforePhases := append([]Phase(nil), p.Phases...)

	pr, err := ApplyCompleted(p, set)
	if err != nil {
		t.Fatal(err)
	}
	if pr.Changed() {
		t.Errorf("second identical update reported a change: %+v", pr)
	}
	if !p.UpdatedAt.Equal(before.UpdatedAt) {
		t.Error("UpdatedAt changed on a no-op update")
	}
	for i := range p.Phases {
		if p.Phases[i].Status != beforePhases[i].Status ||
			len(p.Phases[i].CompletedTasks) != len(beforePhases[i].CompletedTasks) {
			t.Errorf("phase %d changed on a no-op update", i)
		}
	}
}

func TestApplyCompleted_CascadesAndCompletesPlan(t *testing.T) {
	p := demandForecast()

	pr, err := ApplyCompleted(p, []string{"Train model", "EDA", "Load data"})
	if err != nil {
		t.Fatal(err)
	}
	if !pr.PlanCompleted || p.Status != StatusCompleted {
		t.Fatalf("plan should be completed, got status %s", p.Status)
	}
	if ActivePhaseIndex(p) != -1 {
		t.Error("completed plan should have no active phase")
	}
	if Percent(p) != 100 {
		t.Errorf("Percent = %v, want 100", Percent(p))
	}
}

func TestApplyCompleted_FutureTaskIgnored(t *testing.T) {
	p := demandForecast()

	pr, err := ApplyCompleted(p, []string{"Train model", "Not a task"})
	if err != nil {
		t.Fatal(err)
	}
	if len(pr.Merged) != 0 {
		t.Errorf("Merged = %v, want none", pr.Merged)
	}
	if len(pr.Ignored) != 2 {
		t.Errorf("Ignored = %v, want both tasks", pr.Ignored)
	}
	if p.Phases[1].IsCompleted("Train model") {
		t.Error("task of a pending phase must not be recorded")
	}
}

func TestApplyCompleted_MonotonicPhaseIndex(t *testing.T) {
	p := New("m", "m", []PhaseSpec{
		{Name: "A", Tasks: []string{"a1", "a2"}},
		{Name: "B", Tasks: []string{"b1"}},
		{Name: "C", Tasks: []string{"c1", "c2"}},
	})
	updates := [][]string{
		{"b1"}, {"a1"}, {"c1"}, {"a2"}, {"a1"}, {"b1", "c2"}, {"c1"},
	}

	last := ActivePhaseIndex(p)
	for i, u := range updates {
		if _, err := ApplyCompleted(p, u); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		idx := ActivePhaseIndex(p)
		if idx >= 0 && idx < last {
			t.Fatalf("update %d: active index went from %d to %d", i, last, idx)
		}
		for _, ph := range p.Phases {
			if ph.Status == PhaseDone && !ph.Covered() {
				t.Fatalf("update %d: phase %q done without all tasks", i, ph.Name)
			}
		}
		if idx >= 0 {
			last = idx
		}
	}
	if p.Status != StatusCompleted {
		t.Errorf("plan status = %s, want completed", p.Status)
	}
}

func TestApplyCompleted_InactivePlan(t *testing.T) {
	p := demandForecast()
	p.Status = StatusCancelled

	_, err := ApplyCompleted(p, []string{"Load data"})
	if err == nil || !strings.Contains(err.Error(), "not active") {
		t.Fatalf("error = %v, want 'not active'", err)
	}
}

func TestApplyCompleted_RepeatAfterPlanCompleted(t *testing.T) {
	p := New("plan_one", "One", []PhaseSpec{{Name: "Only", Tasks: []string{"x"}}})

	pr, err := ApplyCompleted(p, []string{"x"})
	if err != nil || !pr.PlanCompleted {
		t.Fatalf("first apply = %+v, %v; want plan completed", pr, err)
	}
	updated := p.UpdatedAt

	pr, err = ApplyCompleted(p, []string{"x"})
	if err != nil {
		t.Fatalf("repeat apply: %v", err)
	}
	if pr.Changed() || pr.PlanCompleted {
		t.Errorf("repeat apply reported changes: %+v", pr)
	}
	if !p.UpdatedAt.Equal(updated) {
		t.Errorf("UpdatedAt moved on a no-op")
	}

	if _, err := ApplyCompleted(p, []string{"x", "y"}); err == nil {
		t.Error("unknown task on a completed plan should fail")
	}
}

// --- SetStatus ---

func TestSetStatus(t *testing.T) {
	p := demandForecast()

	if err := SetStatus(p, StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := SetStatus(p, StatusActive); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := SetStatus(p, Status("bogus")); err == nil {
		t.Error("invalid status should fail")
	}

	if _, err := ApplyCompleted(p, []string{"Load data", "EDA", "Train model"}); err != nil {
		t.Fatal(err)
	}
	if err := SetStatus(p, StatusActive); err == nil {
		t.Error("completed plan should not be reopened")
	}
}

// --- Lookups ---

func TestPhaseIndex_CaseInsensitive(t *testing.T) {
	p := demandForecast()
	if got := PhaseIndex(p, "modeling"); got != 1 {
		t.Errorf("PhaseIndex = %d, want 1", got)
	}
	if got := PhaseIndex(p, "deploy"); got != -1 {
		t.Errorf("PhaseIndex(unknown) = %d, want -1", got)
	}
}
