package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/switchboard/internal/memory"
	"github.com/HendryAvila/switchboard/internal/plans"
	"github.com/HendryAvila/switchboard/internal/templates"
)

// PlanShowTool handles the plan_show MCP tool: a plan report plus, at full
// detail, everything recorded against the plan.
type PlanShowTool struct {
	store    *memory.Store
	renderer *templates.Renderer
}

// NewPlanShowTool creates a PlanShowTool.
func NewPlanShowTool(store *memory.Store, renderer *templates.Renderer) *PlanShowTool {
	return &PlanShowTool{store: store, renderer: renderer}
}

// Definition returns the MCP tool definition for plan_show.
func (t *PlanShowTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_show",
		mcp.WithDescription(
			"Show a plan with its phases and task checklist. At detail_level full the report also "+
				"lists every decision, reflection and constraint recorded against the plan.",
		),
		mcp.WithString("plan_id",
			mcp.Description("Plan ID (default: the active plan)"),
		),
		mcp.WithString("detail_level",
			mcp.Description(
				"Level of detail: 'summary' (one line per phase), "+
					"'standard' (default — full task checklist), "+
					"'full' (checklist plus decisions, reflections and constraints).",
			),
			mcp.Enum(detailLevelValues()...),
		),
	)
}

// Handle processes the plan_show tool call.
func (t *PlanShowTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errResult := resolvePlan(ctx, t.store, req)
	if errResult != nil {
		return errResult, nil
	}
	detail := parseDetailLevel(req.GetString("detail_level", ""))

	if detail == DetailSummary {
		var b strings.Builder
		fmt.Fprintf(&b, "**%s** (%s) [%s, %.0f%%]\n", p.Title, p.ID, p.Status, plans.Percent(p))
		for i, ph := range p.Phases {
			fmt.Fprintf(&b, "%d. %s [%s] %d/%d\n", i+1, ph.Name, ph.Status, len(ph.CompletedTasks), len(ph.Tasks))
		}
		b.WriteString(summaryFooter)
		return mcp.NewToolResultText(b.String()), nil
	}

	report, err := t.renderer.Render(templates.PlanReport, templates.NewPlanData(p))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("render plan: %v", err)), nil
	}
	if detail != DetailFull {
		return mcp.NewToolResultText(report + tokenFooter(report)), nil
	}

	pm, err := t.store.PlanMemory(ctx, p.ID)
	if err != nil {
		return storeError("load plan memory", err), nil
	}
	var b strings.Builder
	b.WriteString(report)
	writePlanMemory(&b, pm)
	return mcp.NewToolResultText(b.String() + tokenFooter(b.String())), nil
}

func writePlanMemory(b *strings.Builder, pm *memory.PlanMemory) {
	b.WriteString("\n## Decisions\n")
	if len(pm.Decisions) == 0 {
		b.WriteString("None recorded.\n")
	}
	for _, d := range pm.Decisions {
		fmt.Fprintf(b, "- **%s** (%s)", d.Title, d.CreatedAt.Format("2006-01-02"))
		if d.Decision != "" {
			fmt.Fprintf(b, ": %s", d.Decision)
		}
		if d.Rationale != "" {
			fmt.Fprintf(b, ". Why: %s", d.Rationale)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Reflections\n")
	if len(pm.Reflections) == 0 {
		b.WriteString("None recorded.\n")
	}
	for _, r := range pm.Reflections {
		fmt.Fprintf(b, "### Iteration %d (%s)\n", r.IterationNumber, r.CreatedAt.Format("2006-01-02"))
		writeList(b, "Achieved", r.AchievedObjectives)
		writeList(b, "Blockers", r.Blockers)
		writeList(b, "Worked", r.WhatWorked)
		writeList(b, "Failed", r.WhatFailed)
		writeList(b, "Insights", r.Insights)
		if r.NextFocus != "" {
			fmt.Fprintf(b, "- Next focus: %s\n", r.NextFocus)
		}
	}

	b.WriteString("\n## Constraints\n")
	if len(pm.Constraints) == 0 {
		b.WriteString("None recorded.\n")
	}
	for _, c := range pm.Constraints {
		fmt.Fprintf(b, "- [%s %s, %s] **%s**: %s\n", c.Enforcement, c.Kind, c.Status, c.Title, c.Rule)
	}
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) > 0 {
		fmt.Fprintf(b, "- %s: %s\n", label, strings.Join(items, "; "))
	}
}
