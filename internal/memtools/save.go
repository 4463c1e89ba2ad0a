package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/switchboard/internal/memory"
)

// ─── decision_record ─────────────────────────────────────────────────────────

// DecisionTool handles the decision_record MCP tool.
type DecisionTool struct {
	store *memory.Store
}

// NewDecisionTool creates a DecisionTool.
func NewDecisionTool(store *memory.Store) *DecisionTool {
	return &DecisionTool{store: store}
}

// Definition returns the MCP tool definition for decision_record.
func (t *DecisionTool) Definition() mcp.Tool {
	return mcp.NewTool("decision_record",
		mcp.WithDescription(
			"Record a significant project decision against a plan: what was chosen, from which "+
				"options, and why. Decisions rank above reflections when context is assembled.",
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Short title, e.g. 'Use gradient boosting for the baseline'"),
		),
		mcp.WithString("decision",
			mcp.Description("What was decided"),
		),
		mcp.WithString("rationale",
			mcp.Description("Why it was decided"),
		),
		mcp.WithString("description",
			mcp.Description("Longer description"),
		),
		mcp.WithString("context",
			mcp.Description("The situation that forced the decision"),
		),
		mcp.WithString("options",
			mcp.Description("Options considered, one per line"),
		),
		mcp.WithString("decision_maker",
			mcp.Description("Who made the decision"),
		),
		mcp.WithString("impact_scope",
			mcp.Description("What the decision affects"),
		),
		mcp.WithString("agents_affected",
			mcp.Description("Specialist profiles affected, one per line"),
		),
		mcp.WithString("plan_id",
			mcp.Description("Plan ID (default: the active plan)"),
		),
	)
}

// Handle processes the decision_record tool call.
func (t *DecisionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	if strings.TrimSpace(title) == "" {
		return mcp.NewToolResultError("'title' is required"), nil
	}
	p, errResult := resolvePlan(ctx, t.store, req)
	if errResult != nil {
		return errResult, nil
	}

	d, err := t.store.RecordDecision(ctx, p.ID, memory.Decision{
		Title:          title,
		Description:    req.GetString("description", ""),
		Context:        req.GetString("context", ""),
		Options:        listArg(req, "options"),
		Decision:       req.GetString("decision", ""),
		Rationale:      req.GetString("rationale", ""),
		DecisionMaker:  req.GetString("decision_maker", ""),
		ImpactScope:    req.GetString("impact_scope", ""),
		AgentsAffected: listArg(req, "agents_affected"),
	})
	if err != nil {
		return storeError("record decision", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Decision %q recorded (id: %s) on plan %q.", d.Title, d.ID, p.Title)), nil
}

// ─── reflection_create ───────────────────────────────────────────────────────

// ReflectionTool handles the reflection_create MCP tool.
type ReflectionTool struct {
	store *memory.Store
}

// NewReflectionTool creates a ReflectionTool.
func NewReflectionTool(store *memory.Store) *ReflectionTool {
	return &ReflectionTool{store: store}
}

// Definition returns the MCP tool definition for reflection_create.
func (t *ReflectionTool) Definition() mcp.Tool {
	return mcp.NewTool("reflection_create",
		mcp.WithDescription(
			"Record a reflection on one iteration of a plan. Blockers from the latest reflection "+
				"are surfaced first by suggest_next until a newer reflection replaces them. "+
				"All list fields take one item per line.",
		),
		mcp.WithNumber("iteration_number",
			mcp.Description("Iteration number (default: next number for the plan)"),
		),
		mcp.WithString("planned_objectives", mcp.Description("Objectives planned for the iteration")),
		mcp.WithString("achieved_objectives", mcp.Description("Objectives actually achieved")),
		mcp.WithString("completed_tasks", mcp.Description("Tasks completed during the iteration")),
		mcp.WithString("blockers", mcp.Description("Unresolved blockers")),
		mcp.WithString("what_worked", mcp.Description("What worked well")),
		mcp.WithString("what_failed", mcp.Description("What did not work")),
		mcp.WithString("insights", mcp.Description("Lessons learned")),
		mcp.WithString("recommendations", mcp.Description("Recommendations for the next iteration")),
		mcp.WithString("next_focus", mcp.Description("Focus of the next iteration")),
		mcp.WithNumber("quality_score",
			mcp.Description("Self-assessed quality, 0-10"),
		),
		mcp.WithString("plan_id",
			mcp.Description("Plan ID (default: the active plan)"),
		),
	)
}

// Handle processes the reflection_create tool call.
func (t *ReflectionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errResult := resolvePlan(ctx, t.store, req)
	if errResult != nil {
		return errResult, nil
	}

	r, err := t.store.CreateReflection(ctx, p.ID, memory.Reflection{
		IterationNumber:    intArg(req, "iteration_number", 0),
		PlannedObjectives:  listArg(req, "planned_objectives"),
		AchievedObjectives: listArg(req, "achieved_objectives"),
		CompletedTasks:     listArg(req, "completed_tasks"),
		Blockers:           listArg(req, "blockers"),
		WhatWorked:         listArg(req, "what_worked"),
		WhatFailed:         listArg(req, "what_failed"),
		Insights:           listArg(req, "insights"),
		Recommendations:    listArg(req, "recommendations"),
		NextFocus:          req.GetString("next_focus", ""),
		QualityScore:       intArg(req, "quality_score", 0),
	})
	if err != nil {
		return storeError("create reflection", err), nil
	}

	msg := fmt.Sprintf("Reflection for iteration %d recorded (id: %s) on plan %q.", r.IterationNumber, r.ID, p.Title)
	if len(r.Blockers) > 0 {
		msg += fmt.Sprintf("\n⚠️ %d blocker(s) will be surfaced by suggest_next.", len(r.Blockers))
	}
	return mcp.NewToolResultText(msg), nil
}
