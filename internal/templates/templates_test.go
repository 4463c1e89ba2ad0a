package templates

import (
	"strings"
	"testing"

	"github.com/HendryAvila/switchboard/internal/plans"
)

// --- NewRenderer ---

func TestNewRenderer_Succeeds(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() failed: %v", err)
	}
	if r == nil {
		t.Fatal("NewRenderer() returned nil")
	}
}

// --- Render: Bundle ---

func TestRender_Bundle(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	data := BundleData{
		ProfileID:    "data-analyzer",
		ProfileName:  "Data Analyzer",
		Focus:        "Statistical analysis and data quality",
		Context:      "Datasets under data/",
		Capabilities: []string{"eda", "statistics"},
		PlanTitle:    "Demand Forecast",
		ActivePhase:  "Data Analysis",
		Memories: []MemoryLine{
			{Kind: "decision", Title: "Use weekly grain", Summary: "weekly (noise)"},
			{Kind: "plan", Title: "Demand Forecast"},
		},
		Constraints: "- [strict requirement] Interpretability: Models must be interpretable",
		Request:     "Load data and run EDA",
	}

	result, err := r.Render(Bundle, data)
	if err != nil {
		t.Fatalf("Render(Bundle) failed: %v", err)
	}

	checks := []string{
		"## Specialist: Data Analyzer",
		"**Profile**: data-analyzer",
		"**Focus**: Statistical analysis and data quality",
		"**Context**: Datasets under data/",
		"**Capabilities**: eda, statistics",
		"**Plan**: Demand Forecast (phase: Data Analysis)",
		"- [decision] Use weekly grain: weekly (noise)",
		"- [plan] Demand Forecast\n",
		"## Active Constraints",
		"Interpretability: Models must be interpretable",
		"Load data and run EDA",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("Bundle output missing: %q\n%s", check, result)
		}
	}
	if strings.Contains(result, "(fallback)") {
		t.Error("bundle without fallback should not be marked")
	}
}

func TestRender_BundleEmpty(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	result, err := r.Render(Bundle, BundleData{ProfileID: "meta-orchestrator", Fallback: true})
	if err != nil {
		t.Fatalf("Render(Bundle, empty) failed: %v", err)
	}
	for _, check := range []string{"(fallback)", "No relevant project memory.", "## Active Constraints"} {
		if !strings.Contains(result, check) {
			t.Errorf("empty bundle missing: %q", check)
		}
	}
	if strings.Contains(result, "## Active Plan") {
		t.Error("bundle without plan should omit the plan section")
	}
}

// --- Render: PlanReport ---

func TestRender_PlanReport(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	p := plans.New("plan_1", "Demand Forecast", []plans.PhaseSpec{
		{Name: "Data Analysis", Tasks: []string{"Load data", "EDA"}},
		{Name: "Modeling", Tasks: []string{"Train model"}},
	})
	p.SuccessCriteria = []string{"MAPE under 15%"}
	if _, err := plans.ApplyCompleted(p, []string{"Load data"}); err != nil {
		t.Fatalf("ApplyCompleted: %v", err)
	}

	result, err := r.Render(PlanReport, NewPlanData(p))
	if err != nil {
		t.Fatalf("Render(PlanReport) failed: %v", err)
	}

	checks := []string{
		"# Demand Forecast",
		"**Status:** active (33% complete)",
		"## 1. Data Analysis [active]",
		"- [x] Load data",
		"- [ ] EDA",
		"## 2. Modeling [pending]",
		"## Success Criteria",
		"- MAPE under 15%",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("PlanReport output missing: %q\n%s", check, result)
		}
	}
}

// --- Render: Unknown template ---

func TestRender_UnknownTemplate(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	_, err = r.Render("nonexistent.md.tmpl", nil)
	if err == nil {
		t.Fatal("Render(nonexistent) should fail")
	}
}
