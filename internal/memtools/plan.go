package memtools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/switchboard/internal/memory"
	"github.com/HendryAvila/switchboard/internal/plans"
)

// ─── plan_create ─────────────────────────────────────────────────────────────

// PlanCreateTool handles the plan_create MCP tool.
type PlanCreateTool struct {
	store *memory.Store
}

// NewPlanCreateTool creates a PlanCreateTool.
func NewPlanCreateTool(store *memory.Store) *PlanCreateTool {
	return &PlanCreateTool{store: store}
}

// Definition returns the MCP tool definition for plan_create.
func (t *PlanCreateTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_create",
		mcp.WithDescription(
			"Create a phased project plan. Phases run strictly in order: a phase is done only "+
				"when every one of its tasks is completed, then the next phase becomes active. "+
				"The new plan is active immediately and its first phase is active.",
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Plan title, e.g. 'Demand Forecast'"),
		),
		mcp.WithString("phases",
			mcp.Required(),
			mcp.Description(
				"JSON array of phases in execution order. Each phase: "+
					"{\"name\": \"Data Analysis\", \"tasks\": [\"Load data\", \"EDA\"], \"keywords\": [\"pandas\"]}. "+
					"keywords are optional extra vocabulary used to judge whether a request fits the phase.",
			),
		),
		mcp.WithString("description",
			mcp.Description("What the project is about"),
		),
		mcp.WithString("project_type",
			mcp.Description("Free-form project type, e.g. 'data_science'"),
		),
		mcp.WithString("priority",
			mcp.Description("Free-form priority, e.g. 'high'"),
		),
		mcp.WithString("success_criteria",
			mcp.Description("Success criteria, one per line"),
		),
	)
}

// Handle processes the plan_create tool call.
func (t *PlanCreateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	if strings.TrimSpace(title) == "" {
		return mcp.NewToolResultError("'title' is required"), nil
	}
	raw := req.GetString("phases", "")
	if strings.TrimSpace(raw) == "" {
		return mcp.NewToolResultError("'phases' is required"), nil
	}
	var phases []plans.PhaseSpec
	if err := json.Unmarshal([]byte(raw), &phases); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("'phases' must be a JSON array of {name, tasks, keywords}: %v", err)), nil
	}

	p, err := t.store.CreatePlan(ctx, memory.PlanInput{
		Title:           title,
		Description:     req.GetString("description", ""),
		ProjectType:     req.GetString("project_type", ""),
		Priority:        req.GetString("priority", ""),
		SuccessCriteria: listArg(req, "success_criteria"),
		Phases:          phases,
	})
	if err != nil {
		return storeError("create plan", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Created plan %q (id: %s) with %d phases.\n\n", p.Title, p.ID, len(p.Phases))
	for i, ph := range p.Phases {
		fmt.Fprintf(&b, "%d. %s [%s] (%d tasks)\n", i+1, ph.Name, ph.Status, len(ph.Tasks))
	}
	fmt.Fprintf(&b, "\nActive phase: %s. Report finished tasks with plan_progress.", p.Phases[0].Name)
	return mcp.NewToolResultText(b.String()), nil
}

// ─── plan_list ───────────────────────────────────────────────────────────────

// PlanListTool handles the plan_list MCP tool.
type PlanListTool struct {
	store *memory.Store
}

// NewPlanListTool creates a PlanListTool.
func NewPlanListTool(store *memory.Store) *PlanListTool {
	return &PlanListTool{store: store}
}

// Definition returns the MCP tool definition for plan_list.
func (t *PlanListTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_list",
		mcp.WithDescription("List project plans, most recently updated first."),
		mcp.WithString("status",
			mcp.Description("Filter by status (default: all)"),
			mcp.Enum(string(plans.StatusActive), string(plans.StatusCompleted), string(plans.StatusCancelled)),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max plans to show (default: 20)"),
		),
	)
}

// Handle processes the plan_list tool call.
func (t *PlanListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := plans.Status(req.GetString("status", ""))
	limit := intArg(req, "limit", 20)
	if limit <= 0 {
		limit = 20
	}

	list, err := t.store.ListPlans(ctx, status)
	if err != nil {
		return storeError("list plans", err), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("No plans found. Create one with plan_create."), nil
	}

	active, err := t.store.ActivePlan(ctx)
	if err != nil {
		return storeError("load active plan", err), nil
	}

	total := len(list)
	if len(list) > limit {
		list = list[:limit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Plans (%d)\n\n", total)
	for _, p := range list {
		marker := ""
		if active != nil && active.ID == p.ID {
			marker = " ← active"
		}
		phase := "-"
		if ph := plans.ActivePhase(p); ph != nil {
			phase = ph.Name
		}
		fmt.Fprintf(&b, "- **%s** (%s) [%s, %.0f%%] phase: %s%s\n",
			p.Title, p.ID, p.Status, plans.Percent(p), phase, marker)
	}
	b.WriteString(navigationHint(len(list), total, "Raise 'limit' to see more."))
	return mcp.NewToolResultText(b.String()), nil
}

// ─── plan_set_current ────────────────────────────────────────────────────────

// PlanSetCurrentTool handles the plan_set_current MCP tool.
type PlanSetCurrentTool struct {
	store *memory.Store
}

// NewPlanSetCurrentTool creates a PlanSetCurrentTool.
func NewPlanSetCurrentTool(store *memory.Store) *PlanSetCurrentTool {
	return &PlanSetCurrentTool{store: store}
}

// Definition returns the MCP tool definition for plan_set_current.
func (t *PlanSetCurrentTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_set_current",
		mcp.WithDescription(
			"Choose which active plan requests are validated against. Without this the most "+
				"recently updated active plan is used. Pass an empty plan_id to clear the choice.",
		),
		mcp.WithString("plan_id",
			mcp.Description("ID of an active plan, or empty to clear"),
		),
	)
}

// Handle processes the plan_set_current tool call.
func (t *PlanSetCurrentTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("plan_id", ""))
	if err := t.store.SetCurrentPlan(ctx, id); err != nil {
		return storeError("set current plan", err), nil
	}
	if id == "" {
		return mcp.NewToolResultText("Current plan cleared. The most recently updated active plan is used."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Current plan set to %s.", id)), nil
}

// ─── plan_status ─────────────────────────────────────────────────────────────

// PlanStatusTool handles the plan_status MCP tool.
type PlanStatusTool struct {
	store *memory.Store
}

// NewPlanStatusTool creates a PlanStatusTool.
func NewPlanStatusTool(store *memory.Store) *PlanStatusTool {
	return &PlanStatusTool{store: store}
}

// Definition returns the MCP tool definition for plan_status.
func (t *PlanStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_status",
		mcp.WithDescription(
			"Archive a plan as completed or cancelled, or resume a cancelled plan. "+
				"Completed is final. Plans are never deleted.",
		),
		mcp.WithString("plan_id",
			mcp.Required(),
			mcp.Description("Plan ID"),
		),
		mcp.WithString("status",
			mcp.Required(),
			mcp.Description("New status"),
			mcp.Enum(string(plans.StatusActive), string(plans.StatusCompleted), string(plans.StatusCancelled)),
		),
	)
}

// Handle processes the plan_status tool call.
func (t *PlanStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("plan_id", ""))
	if id == "" {
		return mcp.NewToolResultError("'plan_id' is required"), nil
	}
	status := plans.Status(req.GetString("status", ""))
	if status == "" {
		return mcp.NewToolResultError("'status' is required"), nil
	}

	p, err := t.store.SetPlanStatus(ctx, id, status)
	if err != nil {
		return storeError("set plan status", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Plan %q (%s) is now %s.", p.Title, p.ID, p.Status)), nil
}
