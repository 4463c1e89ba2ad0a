package bundle

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/HendryAvila/switchboard/internal/memory"
	"github.com/HendryAvila/switchboard/internal/plans"
	"github.com/HendryAvila/switchboard/internal/profiles"
)

// --- Helpers ---

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	s, err := memory.New(memory.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newAssembler(t *testing.T, store Store, opts ...Option) *Assembler {
	t.Helper()
	a, err := New(profiles.Default(), store, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

// seedForecast creates the Demand Forecast plan with two decisions and one
// constraint.
func seedForecast(t *testing.T, s *memory.Store) *plans.Plan {
	t.Helper()
	ctx := context.Background()
	p, err := s.CreatePlan(ctx, memory.PlanInput{
		Title: "Demand Forecast",
		Phases: []plans.PhaseSpec{
			{Name: "Data Analysis", Tasks: []string{"Load data", "EDA"}},
			{Name: "Modeling", Tasks: []string{"Train model"}},
		},
	})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	for _, d := range []memory.Decision{
		{Title: "Weekly aggregation", Decision: "Aggregate sales per week", Rationale: "daily is too noisy"},
		{Title: "Holiday calendar", Decision: "Use the national calendar"},
	} {
		if _, err := s.RecordDecision(ctx, p.ID, d); err != nil {
			t.Fatalf("RecordDecision: %v", err)
		}
	}
	if _, _, err := s.UpsertConstraint(ctx, p.ID, memory.Constraint{
		Title: "Interpretability",
		Rule:  "Models must be interpretable",
	}); err != nil {
		t.Fatalf("UpsertConstraint: %v", err)
	}
	return p
}

// --- Assemble ---

func TestAssemble_KeywordMatchesFirst(t *testing.T) {
	s := newStore(t)
	p := seedForecast(t, s)
	a := newAssembler(t, s)

	b, err := a.Assemble(context.Background(), "data-analyzer", "review the weekly aggregation")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if b.ProfileID != "data-analyzer" || b.Fallback {
		t.Errorf("profile = %q fallback=%v, want data-analyzer without fallback", b.ProfileID, b.Fallback)
	}
	if b.PlanID != p.ID || b.ActivePhase != "Data Analysis" {
		t.Errorf("plan = %q phase %q", b.PlanID, b.ActivePhase)
	}
	if len(b.Memories) != 4 {
		t.Fatalf("memories = %d, want 4 (plan, 2 decisions, constraint)", len(b.Memories))
	}
	first := b.Memories[0]
	if first.Title != "Weekly aggregation" || !first.Matched {
		t.Errorf("first memory = %+v, want matched Weekly aggregation", first)
	}
	if b.Memories[1].Kind != memory.KindPlan {
		t.Errorf("second memory kind = %s, want plan (highest relevance among unmatched)", b.Memories[1].Kind)
	}
	if !strings.Contains(b.ConstraintsSummary, "Interpretability: Models must be interpretable") {
		t.Errorf("constraints summary = %q", b.ConstraintsSummary)
	}
}

func TestAssemble_MemoryLimit(t *testing.T) {
	s := newStore(t)
	seedForecast(t, s)
	a := newAssembler(t, s, WithMemoryLimit(2))

	b, err := a.Assemble(context.Background(), "data-analyzer", "anything")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(b.Memories) != 2 {
		t.Errorf("memories = %d, want 2", len(b.Memories))
	}
}

func TestWithMemoryLimit_Clamped(t *testing.T) {
	tests := []struct {
		n, want int
	}{
		{0, MaxMemoryLimit},
		{3, 3},
		{50, MaxMemoryLimit},
	}
	for _, tt := range tests {
		a := newAssembler(t, newStore(t), WithMemoryLimit(tt.n))
		if a.limit != tt.want {
			t.Errorf("WithMemoryLimit(%d): limit = %d, want %d", tt.n, a.limit, tt.want)
		}
	}
}

func TestAssemble_UnknownProfileFallsBack(t *testing.T) {
	a := newAssembler(t, newStore(t))

	b, err := a.Assemble(context.Background(), "no-such-profile", "help me")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if b.ProfileID != profiles.DefaultFallback || !b.Fallback {
		t.Errorf("profile = %q fallback=%v, want %s with fallback", b.ProfileID, b.Fallback, profiles.DefaultFallback)
	}
}

func TestAssemble_NoPlan(t *testing.T) {
	a := newAssembler(t, newStore(t))

	b, err := a.Assemble(context.Background(), "data-analyzer", "load the csv")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if b.PlanID != "" || len(b.Memories) != 0 {
		t.Errorf("expected empty bundle context, got plan %q and %d memories", b.PlanID, len(b.Memories))
	}
	if b.ConstraintsSummary != noConstraints {
		t.Errorf("constraints summary = %q, want %q", b.ConstraintsSummary, noConstraints)
	}
}

type brokenStore struct{ err error }

func (s brokenStore) ActivePlan(context.Context) (*plans.Plan, error) { return nil, s.err }
func (s brokenStore) Query(context.Context, memory.Criteria) ([]memory.Record, error) {
	return nil, s.err
}
func (s brokenStore) Constraints(context.Context, string, bool) ([]*memory.Constraint, error) {
	return nil, s.err
}

func TestAssemble_StoreError(t *testing.T) {
	cause := errors.New("disk gone")
	a := newAssembler(t, brokenStore{err: cause})

	_, err := a.Assemble(context.Background(), "data-analyzer", "x")
	if !errors.Is(err, cause) {
		t.Fatalf("err = %v, want wrapped %v", err, cause)
	}
}

// --- Render ---

func TestBundle_Render(t *testing.T) {
	s := newStore(t)
	seedForecast(t, s)
	a := newAssembler(t, s)

	b, err := a.Assemble(context.Background(), "data-analyzer", "review the weekly aggregation")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	out, err := b.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{
		"## Specialist: Data Analyzer",
		"**Plan**: Demand Forecast (phase: Data Analysis)",
		"- [decision] Weekly aggregation: Aggregate sales per week (daily is too noisy)",
		"[strict requirement] Interpretability",
		"review the weekly aggregation",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered bundle missing %q\n%s", want, out)
		}
	}
}

func TestBundle_RenderWithoutAssembler(t *testing.T) {
	b := &Bundle{ProfileID: "x", ProfileName: "X", Request: "do it", ConstraintsSummary: noConstraints}
	out, err := b.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(out), "do it") {
		t.Errorf("request should close the prompt:\n%s", out)
	}
}

// --- SummarizeConstraints ---

func TestSummarizeConstraints_StrictFirst(t *testing.T) {
	cs := []*memory.Constraint{
		{Title: "Pandas", Rule: "Prefer pandas", Kind: memory.ConstraintPreference, Enforcement: memory.EnforcementAdvisory, Status: memory.ConstraintActive},
		{Title: "Old", Rule: "Never use R", Kind: memory.ConstraintRestriction, Enforcement: memory.EnforcementStrict, Status: memory.ConstraintInactive},
		{Title: "Interpretability", Rule: "Models must be interpretable", Kind: memory.ConstraintRequirement, Enforcement: memory.EnforcementStrict, Status: memory.ConstraintActive},
	}

	got := strings.Split(SummarizeConstraints(cs), "\n")
	want := []string{
		"- [strict requirement] Interpretability: Models must be interpretable",
		"- [advisory preference] Pandas: Prefer pandas",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SummarizeConstraints mismatch (-want +got):\n%s", diff)
	}

	if SummarizeConstraints(nil) != noConstraints {
		t.Error("empty constraint list should summarize as none")
	}
}

// --- selectMemories ---

func TestSelectMemories_KeepsRelevanceOrderWithinGroups(t *testing.T) {
	recs := []memory.Record{
		{Kind: memory.KindDecision, ID: "a", Relevance: 120, Decision: &memory.Decision{Title: "Cache layer"}},
		{Kind: memory.KindDecision, ID: "b", Relevance: 110, Decision: &memory.Decision{Title: "Solver choice"}},
		{Kind: memory.KindDecision, ID: "c", Relevance: 100, Decision: &memory.Decision{Title: "Logging"}},
		{Kind: memory.KindDecision, ID: "d", Relevance: 90, Decision: &memory.Decision{Title: "Solver timeout"}},
	}

	got := selectMemories(recs, []string{"solver"}, 3)
	var ids []string
	for _, m := range got {
		ids = append(ids, m.ID)
	}
	if diff := cmp.Diff([]string{"b", "d", "a"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}
