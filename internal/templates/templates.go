// Package templates renders the markdown documents switchboard produces:
// the context bundle handed to a specialist and the human-readable plan
// report. Templates are embedded at build time.
package templates

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/HendryAvila/switchboard/internal/plans"
)

// Template names.
const (
	Bundle     = "bundle.md.tmpl"
	PlanReport = "plan.md.tmpl"
)

//go:embed *.md.tmpl
var files embed.FS

var funcs = template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
	"pct":  func(f float64) string { return fmt.Sprintf("%.0f%%", f) },
}

// Renderer executes the embedded templates.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses every embedded template.
func NewRenderer() (*Renderer, error) {
	t, err := template.New("").Funcs(funcs).ParseFS(files, "*.md.tmpl")
	if err != nil {
		return nil, fmt.Errorf("templates: parse: %w", err)
	}
	return &Renderer{tmpl: t}, nil
}

// Render executes the named template with data.
func (r *Renderer) Render(name string, data any) (string, error) {
	var b strings.Builder
	if err := r.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("templates: render %s: %w", name, err)
	}
	return b.String(), nil
}

// ─── Template data ───────────────────────────────────────────────────────────

// BundleData feeds the Bundle template.
type BundleData struct {
	ProfileID    string
	ProfileName  string
	Focus        string
	Context      string
	Capabilities []string
	Fallback     bool

	PlanTitle   string
	ActivePhase string

	Memories    []MemoryLine
	Constraints string
	Request     string
}

// MemoryLine is one relevant memory item in a bundle.
type MemoryLine struct {
	Kind    string
	Title   string
	Summary string
}

// PlanData feeds the PlanReport template.
type PlanData struct {
	ID              string
	Title           string
	Description     string
	Status          string
	Percent         float64
	Phases          []PhaseLine
	SuccessCriteria []string
}

// PhaseLine is one phase of a plan report.
type PhaseLine struct {
	Name   string
	Status string
	Tasks  []TaskLine
}

// TaskLine is one checklist item of a phase.
type TaskLine struct {
	Name string
	Done bool
}

// NewPlanData flattens a plan into report data.
func NewPlanData(p *plans.Plan) PlanData {
	d := PlanData{
		ID:              p.ID,
		Title:           p.Title,
		Description:     p.Description,
		Status:          string(p.Status),
		Percent:         plans.Percent(p),
		SuccessCriteria: p.SuccessCriteria,
	}
	for i := range p.Phases {
		ph := &p.Phases[i]
		line := PhaseLine{Name: ph.Name, Status: string(ph.Status)}
		for _, t := range ph.Tasks {
			line.Tasks = append(line.Tasks, TaskLine{Name: t, Done: ph.IsCompleted(t)})
		}
		d.Phases = append(d.Phases, line)
	}
	return d
}
