package memory_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HendryAvila/switchboard/internal/memory"
	"github.com/HendryAvila/switchboard/internal/plans"
	"github.com/HendryAvila/switchboard/internal/quality"
)

var baseTime = time.Date(2026, 2, 23, 12, 0, 0, 0, time.UTC)

// newTestStore creates a Store backed by a temp directory for isolation.
func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	return openTestStore(t, t.TempDir(), 0)
}

func openTestStore(t *testing.T, dir string, cacheSize int) *memory.Store {
	t.Helper()
	s, err := memory.New(memory.Config{
		DataDir:           dir,
		StorageTimeout:    5 * time.Second,
		QueryLimit:        10,
		ActivityCacheSize: cacheSize,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// freezeClock pins the store clock to at for the rest of the test.
func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	restore := memory.SetClock(func() time.Time { return at })
	t.Cleanup(restore)
}

func demandForecastInput() memory.PlanInput {
	return memory.PlanInput{
		Title:       "Demand Forecast",
		Description: "Weekly SKU demand forecast for the shelf optimizer",
		Phases: []plans.PhaseSpec{
			{Name: "Data Analysis", Tasks: []string{"Load data", "EDA"}},
			{Name: "Modeling", Tasks: []string{"Train model"}},
		},
	}
}

func mustCreatePlan(t *testing.T, s *memory.Store, in memory.PlanInput) *plans.Plan {
	t.Helper()
	p, err := s.CreatePlan(context.Background(), in)
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	return p
}

// ─── New / Initialization ───────────────────────────────────────────────────

func TestNew_CreatesDBFile(t *testing.T) {
	dir := t.TempDir()
	openTestStore(t, dir, 0)

	if _, err := os.Stat(filepath.Join(dir, "switchboard.db")); err != nil {
		t.Fatalf("database file missing: %v", err)
	}
}

func TestNew_IdempotentReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := memory.New(memory.Config{DataDir: dir})
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	p, err := s1.CreatePlan(ctx, demandForecastInput())
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if _, err := s1.UpdateProgress(ctx, p.ID, []string{"Load data"}); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	s1.Close()

	// Reopen — data should persist
	s2 := openTestStore(t, dir, 0)
	got, err := s2.GetPlan(ctx, p.ID)
	if err != nil {
		t.Fatalf("plan not found after reopen: %v", err)
	}
	if !got.Phases[0].IsCompleted("Load data") {
		t.Errorf("progress lost across reopen: %+v", got.Phases[0])
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	s, err := memory.New(memory.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	cfg := s.Config()
	if cfg.StorageTimeout != 5*time.Second {
		t.Errorf("StorageTimeout = %v, want 5s", cfg.StorageTimeout)
	}
	if cfg.QueryLimit != 10 {
		t.Errorf("QueryLimit = %d, want 10", cfg.QueryLimit)
	}
}

// ─── Plans ──────────────────────────────────────────────────────────────────

func TestCreatePlan_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    memory.PlanInput
		field string
	}{
		{"missing title", memory.PlanInput{Phases: demandForecastInput().Phases}, "title"},
		{"missing phases", memory.PlanInput{Title: "x"}, "phases"},
		{"task-less phase", memory.PlanInput{Title: "x", Phases: []plans.PhaseSpec{{Name: "A"}}}, "phases"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreatePlan(ctx, tt.in)
			var ve *memory.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestCreatePlan_Basic(t *testing.T) {
	freezeClock(t, baseTime)
	s := newTestStore(t)

	p := mustCreatePlan(t, s, demandForecastInput())

	if !strings.HasPrefix(p.ID, "plan_") {
		t.Errorf("ID = %q, want plan_ prefix", p.ID)
	}
	if p.Status != plans.StatusActive {
		t.Errorf("Status = %s, want active", p.Status)
	}
	if p.Phases[0].Status != plans.PhaseActive || p.Phases[1].Status != plans.PhasePending {
		t.Errorf("phase statuses = %s/%s, want active/pending", p.Phases[0].Status, p.Phases[1].Status)
	}
	if !p.CreatedAt.Equal(baseTime) {
		t.Errorf("CreatedAt = %v, want %v", p.CreatedAt, baseTime)
	}
}

func TestGetPlan_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetPlan(context.Background(), "plan_missing")
	if !memory.IsNotFound(err) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
}

func TestListPlans_FilterAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	freezeClock(t, baseTime)
	p1 := mustCreatePlan(t, s, demandForecastInput())
	freezeClock(t, baseTime.Add(time.Hour))
	p2 := mustCreatePlan(t, s, demandForecastInput())
	if _, err := s.SetPlanStatus(ctx, p1.ID, plans.StatusCancelled); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListPlans(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}

	active, err := s.ListPlans(ctx, plans.StatusActive)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != p2.ID {
		t.Errorf("active plans = %v, want only %s", active, p2.ID)
	}

	if _, err := s.ListPlans(ctx, plans.Status("bogus")); !memory.IsValidation(err) {
		t.Errorf("bogus status error = %v, want ValidationError", err)
	}
}

// ─── Progress ───────────────────────────────────────────────────────────────

func TestUpdateProgress_DemandForecast(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := mustCreatePlan(t, s, demandForecastInput())

	res, err := s.UpdateProgress(ctx, p.ID, []string{"Load data"})
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if res.Plan.Phases[0].Status != plans.PhaseActive {
		t.Fatalf("phase 0 = %s, want still active", res.Plan.Phases[0].Status)
	}

	res, err = s.UpdateProgress(ctx, p.ID, []string{"Load data", "EDA"})
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if res.Plan.Phases[0].Status != plans.PhaseDone || res.Plan.Phases[1].Status != plans.PhaseActive {
		t.Fatalf("statuses = %s/%s, want done/active", res.Plan.Phases[0].Status, res.Plan.Phases[1].Status)
	}
	if res.Percent < 66 || res.Percent > 67 {
		t.Errorf("Percent = %v, want ~66.7", res.Percent)
	}

	stored, err := s.GetPlan(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Phases[1].Status != plans.PhaseActive {
		t.Errorf("stored phase 1 = %s, want active", stored.Phases[1].Status)
	}
}

func TestUpdateProgress_IdempotentKeepsUpdatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	freezeClock(t, baseTime)
	p := mustCreatePlan(t, s, demandForecastInput())
	freezeClock(t, baseTime.Add(time.Minute))
	first, err := s.UpdateProgress(ctx, p.ID, []string{"Load data", "EDA"})
	if err != nil {
		t.Fatal(err)
	}

	freezeClock(t, baseTime.Add(time.Hour))
	second, err := s.UpdateProgress(ctx, p.ID, []string{"Load data", "EDA"})
	if err != nil {
		t.Fatal(err)
	}
	if second.Progress.Changed() {
		t.Errorf("repeat update reported changes: %+v", second.Progress)
	}
	if !second.Plan.UpdatedAt.Equal(first.Plan.UpdatedAt) {
		t.Errorf("UpdatedAt moved from %v to %v on a no-op", first.Plan.UpdatedAt, second.Plan.UpdatedAt)
	}
}

func TestUpdateProgress_RepeatFinalUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := mustCreatePlan(t, s, memory.PlanInput{
		Title:  "One Step",
		Phases: []plans.PhaseSpec{{Name: "Only", Tasks: []string{"x"}}},
	})

	first, err := s.UpdateProgress(ctx, p.ID, []string{"x"})
	if err != nil {
		t.Fatal(err)
	}
	if !first.Progress.PlanCompleted {
		t.Fatalf("first update = %+v, want plan completed", first.Progress)
	}

	second, err := s.UpdateProgress(ctx, p.ID, []string{"x"})
	if err != nil {
		t.Fatalf("repeat final update: %v", err)
	}
	if second.Progress.Changed() {
		t.Errorf("repeat update reported changes: %+v", second.Progress)
	}
	if second.Plan.Status != plans.StatusCompleted || second.Percent != 100 {
		t.Errorf("plan = %s %.0f%%, want completed 100%%", second.Plan.Status, second.Percent)
	}

	if _, err := s.UpdateProgress(ctx, p.ID, []string{"y"}); !memory.IsValidation(err) {
		t.Errorf("new task on completed plan error = %v, want ValidationError", err)
	}
}

func TestUpdateProgress_Errors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := mustCreatePlan(t, s, demandForecastInput())

	if _, err := s.UpdateProgress(ctx, "plan_missing", []string{"x"}); !memory.IsNotFound(err) {
		t.Errorf("unknown plan error = %v, want NotFoundError", err)
	}
	if _, err := s.UpdateProgress(ctx, p.ID, nil); !memory.IsValidation(err) {
		t.Errorf("empty tasks error = %v, want ValidationError", err)
	}
	if _, err := s.SetPlanStatus(ctx, p.ID, plans.StatusCancelled); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateProgress(ctx, p.ID, []string{"Load data"}); !memory.IsValidation(err) {
		t.Errorf("cancelled plan error = %v, want ValidationError", err)
	}
}

func TestUpdateProgress_ConcurrentSamePlan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var tasks []string
	for i := 0; i < 16; i++ {
		tasks = append(tasks, fmt.Sprintf("task-%02d", i))
	}
	p := mustCreatePlan(t, s, memory.PlanInput{
		Title: "Parallel",
		Phases: []plans.PhaseSpec{
			{Name: "Bulk", Tasks: tasks},
			{Name: "Next", Tasks: []string{"follow-up"}},
		},
	})
	other := mustCreatePlan(t, s, demandForecastInput())

	var wg sync.WaitGroup
	errs := make(chan error, len(tasks)+1)
	for _, task := range tasks {
		wg.Add(1)
		go func(task string) {
			defer wg.Done()
			if _, err := s.UpdateProgress(ctx, p.ID, []string{task}); err != nil {
				errs <- err
			}
		}(task)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := s.UpdateProgress(ctx, other.ID, []string{"Load data"}); err != nil {
			errs <- err
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent update: %v", err)
	}

	got, err := s.GetPlan(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Phases[0].Status != plans.PhaseDone {
		t.Errorf("bulk phase = %s with %d/%d tasks, want done (lost update?)",
			got.Phases[0].Status, len(got.Phases[0].CompletedTasks), len(tasks))
	}
	if s.LiveLocks() != 0 {
		t.Errorf("LiveLocks = %d after all operations, want 0", s.LiveLocks())
	}
}

// ─── Status / active plan ───────────────────────────────────────────────────

func TestActivePlan_Selection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.ActivePlan(ctx)
	if err != nil || got != nil {
		t.Fatalf("empty store ActivePlan = %v, %v; want nil, nil", got, err)
	}

	freezeClock(t, baseTime)
	p1 := mustCreatePlan(t, s, demandForecastInput())
	freezeClock(t, baseTime.Add(time.Hour))
	p2 := mustCreatePlan(t, s, demandForecastInput())

	assertActive := func(want string) {
		t.Helper()
		got, err := s.ActivePlan(ctx)
		if err != nil {
			t.Fatalf("ActivePlan: %v", err)
		}
		if got == nil || got.ID != want {
			t.Fatalf("ActivePlan = %v, want %s", got, want)
		}
	}

	assertActive(p2.ID)

	freezeClock(t, baseTime.Add(2*time.Hour))
	if _, err := s.UpdateProgress(ctx, p1.ID, []string{"Load data"}); err != nil {
		t.Fatal(err)
	}
	assertActive(p1.ID)

	if err := s.SetCurrentPlan(ctx, p2.ID); err != nil {
		t.Fatal(err)
	}
	assertActive(p2.ID)

	if _, err := s.SetPlanStatus(ctx, p2.ID, plans.StatusCancelled); err != nil {
		t.Fatal(err)
	}
	assertActive(p1.ID)

	if err := s.SetCurrentPlan(ctx, p2.ID); !memory.IsValidation(err) {
		t.Errorf("pointing at cancelled plan: %v, want ValidationError", err)
	}
	if err := s.SetCurrentPlan(ctx, "plan_missing"); !memory.IsNotFound(err) {
		t.Errorf("pointing at missing plan: %v, want NotFoundError", err)
	}
}

func TestSetPlanStatus_CompletedIsFinal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := mustCreatePlan(t, s, demandForecastInput())

	res, err := s.UpdateProgress(ctx, p.ID, []string{"Load data", "EDA", "Train model"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Progress.PlanCompleted {
		t.Fatal("plan should be completed")
	}
	if _, err := s.SetPlanStatus(ctx, p.ID, plans.StatusActive); !memory.IsValidation(err) {
		t.Errorf("reopen completed plan: %v, want ValidationError", err)
	}
}

// ─── Records ────────────────────────────────────────────────────────────────

func TestRecordDecision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := mustCreatePlan(t, s, demandForecastInput())

	d, err := s.RecordDecision(ctx, p.ID, memory.Decision{
		Title:     "Use gradient boosting",
		Decision:  "LightGBM baseline",
		Rationale: "interpretable feature importances",
		Options:   []string{"ARIMA", " ", "LightGBM"},
	})
	if err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}
	if !strings.HasPrefix(d.ID, "decision_") || d.PlanID != p.ID {
		t.Errorf("decision = %+v, want decision_ id bound to plan", d)
	}
	if len(d.Options) != 2 {
		t.Errorf("Options = %v, want blanks dropped", d.Options)
	}

	if _, err := s.RecordDecision(ctx, "plan_missing", memory.Decision{Title: "x"}); !memory.IsNotFound(err) {
		t.Errorf("unknown plan: %v, want NotFoundError", err)
	}
	if _, err := s.RecordDecision(ctx, p.ID, memory.Decision{}); !memory.IsValidation(err) {
		t.Errorf("missing title: %v, want ValidationError", err)
	}
}

func TestCreateReflection_AssignsIterationNumbers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := mustCreatePlan(t, s, demandForecastInput())

	r1, err := s.CreateReflection(ctx, p.ID, memory.Reflection{Insights: []string{"EDA found gaps"}})
	if err != nil {
		t.Fatal(err)
	}
	r2, err := s.CreateReflection(ctx, p.ID, memory.Reflection{Blockers: []string{"missing Q3 data"}})
	if err != nil {
		t.Fatal(err)
	}
	if r1.IterationNumber != 1 || r2.IterationNumber != 2 {
		t.Errorf("iterations = %d, %d; want 1, 2", r1.IterationNumber, r2.IterationNumber)
	}

	if _, err := s.CreateReflection(ctx, p.ID, memory.Reflection{QualityScore: 11}); !memory.IsValidation(err) {
		t.Errorf("quality score 11: %v, want ValidationError", err)
	}
	if _, err := s.CreateReflection(ctx, "plan_missing", memory.Reflection{}); !memory.IsNotFound(err) {
		t.Errorf("unknown plan: %v, want NotFoundError", err)
	}
}

func TestUpsertConstraint_MatchesByTitleAndID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := mustCreatePlan(t, s, demandForecastInput())

	c, created, err := s.UpsertConstraint(ctx, p.ID, memory.Constraint{
		Title: "Interpretability",
		Rule:  "Models must be interpretable",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("first upsert should create")
	}
	if c.Enforcement != memory.EnforcementStrict || c.Kind != memory.ConstraintRequirement || c.Status != memory.ConstraintActive {
		t.Errorf("defaults = %s/%s/%s, want strict/requirement/active", c.Enforcement, c.Kind, c.Status)
	}

	updated, created, err := s.UpsertConstraint(ctx, p.ID, memory.Constraint{
		Title:       "interpretability",
		Rule:        "Models must be interpretable by planners",
		Enforcement: memory.EnforcementAdvisory,
	})
	if err != nil {
		t.Fatal(err)
	}
	if created || updated.ID != c.ID {
		t.Errorf("title match should update %s, got created=%v id=%s", c.ID, created, updated.ID)
	}
	if !updated.CreatedAt.Equal(c.CreatedAt) {
		t.Error("update must keep CreatedAt")
	}

	if _, _, err := s.UpsertConstraint(ctx, p.ID, memory.Constraint{ID: "constraint_missing", Title: "x", Rule: "y"}); !memory.IsNotFound(err) {
		t.Errorf("unknown id: %v, want NotFoundError", err)
	}
	if _, _, err := s.UpsertConstraint(ctx, p.ID, memory.Constraint{Title: "x", Rule: "y", Kind: "bogus"}); !memory.IsValidation(err) {
		t.Errorf("bad kind: %v, want ValidationError", err)
	}

	all, err := s.Constraints(ctx, p.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Enforcement != memory.EnforcementAdvisory {
		t.Errorf("constraints = %+v, want one advisory", all)
	}
}

func TestConstraints_ActiveOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := mustCreatePlan(t, s, demandForecastInput())

	if _, _, err := s.UpsertConstraint(ctx, p.ID, memory.Constraint{Title: "A", Rule: "Never use black box models"}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.UpsertConstraint(ctx, p.ID, memory.Constraint{Title: "B", Rule: "Prefer weekly granularity", Status: memory.ConstraintInactive}); err != nil {
		t.Fatal(err)
	}

	active, err := s.Constraints(ctx, p.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].Title != "A" {
		t.Fatalf("active constraints = %+v, want only A", active)
	}
	if active[0].Kind != memory.ConstraintRestriction {
		t.Errorf("Kind = %s, want restriction inferred from rule", active[0].Kind)
	}
}

func TestInferConstraintKind(t *testing.T) {
	tests := map[string]memory.ConstraintKind{
		"Must not exceed 2GB of memory": memory.ConstraintRestriction,
		"No deep learning":              memory.ConstraintRestriction,
		"Avoid ensembles":               memory.ConstraintRestriction,
		"Prefer pandas over polars":     memory.ConstraintPreference,
		"Models must be interpretable":  memory.ConstraintRequirement,
	}
	for rule, want := range tests {
		if got := memory.InferConstraintKind(rule); got != want {
			t.Errorf("InferConstraintKind(%q) = %s, want %s", rule, got, want)
		}
	}
}

func TestPlanMemory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := mustCreatePlan(t, s, demandForecastInput())

	if _, err := s.RecordDecision(ctx, p.ID, memory.Decision{Title: "D"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateReflection(ctx, p.ID, memory.Reflection{}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.UpsertConstraint(ctx, p.ID, memory.Constraint{Title: "C", Rule: "r"}); err != nil {
		t.Fatal(err)
	}

	pm, err := s.PlanMemory(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if pm.Plan.ID != p.ID || len(pm.Decisions) != 1 || len(pm.Reflections) != 1 || len(pm.Constraints) != 1 {
		t.Errorf("PlanMemory = %d/%d/%d records, want 1/1/1", len(pm.Decisions), len(pm.Reflections), len(pm.Constraints))
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Plans != 1 || st.ActivePlans != 1 || st.Decisions != 1 || st.Reflections != 1 || st.Constraints != 1 {
		t.Errorf("Stats = %+v", st)
	}
}

// ─── Query ──────────────────────────────────────────────────────────────────

func TestQuery_RelevanceOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	freezeClock(t, baseTime.AddDate(0, 0, -10))
	p := mustCreatePlan(t, s, demandForecastInput())

	freezeClock(t, baseTime.AddDate(0, 0, -2))
	if _, err := s.CreateReflection(ctx, p.ID, memory.Reflection{Insights: []string{"older"}}); err != nil {
		t.Fatal(err)
	}

	freezeClock(t, baseTime)
	d, err := s.RecordDecision(ctx, p.ID, memory.Decision{Title: "fresh decision"})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Query(ctx, memory.Criteria{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}

	// decision: 100*1.2 = 120, reflection: 90*1.0 = 90, plan: 50*1.5 = 75
	wantKinds := []memory.Kind{memory.KindDecision, memory.KindReflection, memory.KindPlan}
	for i, k := range wantKinds {
		if got[i].Kind != k {
			t.Errorf("got[%d].Kind = %s, want %s", i, got[i].Kind, k)
		}
	}
	if got[0].ID != d.ID || got[0].Relevance != 120 {
		t.Errorf("top = %s (%.1f), want %s (120)", got[0].ID, got[0].Relevance, d.ID)
	}
	if got[2].Relevance != 75 || got[2].PlanID != "" {
		t.Errorf("plan record = relevance %.1f plan_id %q, want 75 and empty", got[2].Relevance, got[2].PlanID)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Relevance > got[i-1].Relevance {
			t.Fatalf("not descending at %d", i)
		}
	}
}

func TestQuery_TieBreaksByID(t *testing.T) {
	freezeClock(t, baseTime)
	s := newTestStore(t)
	ctx := context.Background()
	p := mustCreatePlan(t, s, demandForecastInput())

	for i := 0; i < 4; i++ {
		if _, err := s.CreateReflection(ctx, p.ID, memory.Reflection{}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.Query(ctx, memory.Criteria{Kind: memory.KindReflection})
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	if !sort.StringsAreSorted(ids) {
		t.Errorf("equal-relevance records not ordered by id: %v", ids)
	}
}

func TestQuery_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	freezeClock(t, baseTime.AddDate(0, 0, -5))
	p1 := mustCreatePlan(t, s, demandForecastInput())
	freezeClock(t, baseTime)
	p2 := mustCreatePlan(t, s, memory.PlanInput{
		Title:  "Shelf dashboard",
		Phases: []plans.PhaseSpec{{Name: "UI", Tasks: []string{"Build charts"}}},
	})
	if _, err := s.RecordDecision(ctx, p1.ID, memory.Decision{Title: "Rollout at 50% of stores"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordDecision(ctx, p2.ID, memory.Decision{Title: "Use Streamlit"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		c    memory.Criteria
		want int
	}{
		{"text case-insensitive", memory.Criteria{Text: "FORECAST"}, 1},
		{"text substring", memory.Criteria{Text: "stream"}, 1},
		{"like wildcard escaped", memory.Criteria{Text: "%"}, 1},
		{"kind", memory.Criteria{Kind: memory.KindDecision}, 2},
		{"plan scope includes plan", memory.Criteria{PlanID: p1.ID}, 2},
		{"date from", memory.Criteria{DateFrom: baseTime.Add(-time.Hour)}, 3},
		{"date to", memory.Criteria{DateTo: baseTime.AddDate(0, 0, -1)}, 1},
		{"limit", memory.Criteria{Limit: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(ctx, tt.c)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestQuery_DefaultLimitAndValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := mustCreatePlan(t, s, demandForecastInput())

	for i := 0; i < 12; i++ {
		if _, err := s.RecordDecision(ctx, p.ID, memory.Decision{Title: fmt.Sprintf("d%d", i)}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.Query(ctx, memory.Criteria{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 10 {
		t.Errorf("len = %d, want default limit 10", len(got))
	}

	if _, err := s.Query(ctx, memory.Criteria{Limit: -1}); !memory.IsValidation(err) {
		t.Errorf("negative limit: %v, want ValidationError", err)
	}
	if _, err := s.Query(ctx, memory.Criteria{DateFrom: baseTime, DateTo: baseTime.Add(-time.Hour)}); !memory.IsValidation(err) {
		t.Errorf("inverted range: %v, want ValidationError", err)
	}
}

func TestRelevance(t *testing.T) {
	tests := []struct {
		kind memory.Kind
		age  time.Duration
		want float64
	}{
		{memory.KindPlan, 0, 150},
		{memory.KindDecision, 0, 120},
		{memory.KindConstraint, 12 * time.Hour, 97.5},
		{memory.KindReflection, 30 * 24 * time.Hour, 0},
		{memory.KindDecision, -time.Hour, 120},
	}
	for _, tt := range tests {
		got := memory.Relevance(tt.kind, baseTime.Add(-tt.age), baseTime)
		if got != tt.want {
			t.Errorf("Relevance(%s, %v) = %v, want %v", tt.kind, tt.age, got, tt.want)
		}
	}
}

// ─── Activity ───────────────────────────────────────────────────────────────

func TestAppendActivity_CacheRebuiltOnOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := memory.New(memory.Config{DataDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	for i, action := range []string{"load csv", "profile columns", "train baseline"} {
		freezeClock(t, baseTime.Add(time.Duration(i)*time.Minute))
		_, err := s1.AppendActivity(ctx, memory.ActivityEntry{
			Profile: "data-analyzer",
			Action:  action,
			Source:  memory.SourceRoute,
			Quality: &quality.Result{Passed: i != 1, Issues: []quality.Issue{{Tool: "ruff", Message: "E501"}}},
		})
		if err != nil {
			t.Fatalf("AppendActivity: %v", err)
		}
	}
	s1.Close()

	s2 := openTestStore(t, dir, 2)
	got := s2.RecentActivity(memory.ActivityFilter{})
	if len(got) != 2 {
		t.Fatalf("len = %d, want cache size 2", len(got))
	}
	if got[0].Action != "train baseline" || got[1].Action != "profile columns" {
		t.Errorf("order = %q, %q; want newest first", got[0].Action, got[1].Action)
	}
	if got[1].Quality == nil || got[1].Quality.Passed {
		t.Errorf("quality result not restored: %+v", got[1].Quality)
	}
}

func TestRecentActivity_Filter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entries := []memory.ActivityEntry{
		{Profile: "data-analyzer", Action: "a", PlanID: "plan_1"},
		{Profile: "dashboard-developer", Action: "b", PlanID: "plan_1", Source: memory.SourceFile},
		{Profile: "data-analyzer", Action: "c", PlanID: "plan_2"},
	}
	for _, e := range entries {
		if _, err := s.AppendActivity(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	if got := s.RecentActivity(memory.ActivityFilter{Profile: "data-analyzer"}); len(got) != 2 {
		t.Errorf("profile filter = %d, want 2", len(got))
	}
	if got := s.RecentActivity(memory.ActivityFilter{PlanID: "plan_1", Limit: 1}); len(got) != 1 || got[0].Action != "b" {
		t.Errorf("plan filter with limit = %+v, want [b]", got)
	}
	if got := s.RecentActivity(memory.ActivityFilter{Source: memory.SourceFile}); len(got) != 1 {
		t.Errorf("source filter = %d, want 1", len(got))
	}

	if _, err := s.AppendActivity(ctx, memory.ActivityEntry{Action: "x"}); !memory.IsValidation(err) {
		t.Errorf("missing profile: %v, want ValidationError", err)
	}
}

// ─── Storage failures ───────────────────────────────────────────────────────

func TestStorageError_Wrapped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := mustCreatePlan(t, s, demandForecastInput())

	diskFull := errors.New("disk full")
	s.FailWrites(diskFull)

	_, err := s.UpdateProgress(ctx, p.ID, []string{"Load data"})
	var se *memory.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want StorageError", err)
	}
	if !errors.Is(err, diskFull) {
		t.Error("StorageError should unwrap to the cause")
	}

	stored, err := s.GetPlan(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Phases[0].IsCompleted("Load data") {
		t.Error("failed write must not be visible")
	}
	if s.LiveLocks() != 0 {
		t.Errorf("lock leaked after failed write: %d", s.LiveLocks())
	}
}
