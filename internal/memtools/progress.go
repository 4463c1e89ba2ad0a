package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/switchboard/internal/memory"
	"github.com/HendryAvila/switchboard/internal/plans"
)

// ProgressProfile is the profile id recorded on progress activity entries.
const ProgressProfile = "plan-tracker"

// ProgressTool handles the plan_progress MCP tool.
//
// Completed tasks are merged into the active phase. A covered phase is
// closed and the same task set is applied to the next one, so a single
// call can advance several phases. Repeating a call changes nothing.
type ProgressTool struct {
	store *memory.Store
}

// NewProgressTool creates a ProgressTool with the given memory store.
func NewProgressTool(store *memory.Store) *ProgressTool {
	return &ProgressTool{store: store}
}

// Definition returns the MCP tool definition for plan_progress.
func (t *ProgressTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_progress",
		mcp.WithDescription(
			"Record completed tasks on a plan. Tasks are matched against the active phase; "+
				"when every task of the active phase is done the next phase becomes active. "+
				"Tasks belonging to later phases are ignored until their phase is reached. "+
				"Safe to repeat: re-sending the same tasks changes nothing.",
		),
		mcp.WithString("tasks",
			mcp.Required(),
			mcp.Description("Completed task names, one per line, exactly as written in the plan"),
		),
		mcp.WithString("plan_id",
			mcp.Description("Plan ID (default: the active plan)"),
		),
	)
}

// Handle processes the plan_progress tool call.
func (t *ProgressTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks := listArg(req, "tasks")
	if len(tasks) == 0 {
		return mcp.NewToolResultError("'tasks' is required"), nil
	}
	p, errResult := resolvePlan(ctx, t.store, req)
	if errResult != nil {
		return errResult, nil
	}

	res, err := t.store.UpdateProgress(ctx, p.ID, tasks)
	if err != nil {
		return storeError("update progress", err), nil
	}
	pr := res.Progress

	if pr.Changed() {
		// The plan update already landed; a failed log entry is reported
		// but does not fail the call.
		if _, err := t.store.AppendActivity(ctx, memory.ActivityEntry{
			Profile: ProgressProfile,
			Action:  ProgressAction(pr),
			PlanID:  p.ID,
			Source:  memory.SourceProgress,
		}); err != nil {
			return mcp.NewToolResultText(formatProgress(res) + fmt.Sprintf("\n\n⚠️ activity log not updated: %v", err)), nil
		}
	}
	return mcp.NewToolResultText(formatProgress(res)), nil
}

// ProgressAction describes a progress change for the activity log.
func ProgressAction(pr plans.Progress) string {
	if len(pr.Merged) == 0 {
		return "advanced " + strings.Join(pr.Advanced, ", ")
	}
	return "completed " + strings.Join(pr.Merged, ", ")
}

func formatProgress(res *memory.ProgressResult) string {
	pr := res.Progress
	var b strings.Builder
	fmt.Fprintf(&b, "## Progress: %s\n\n", res.Plan.Title)

	if !pr.Changed() {
		b.WriteString("No change: every submitted task was already recorded or belongs to a later phase.\n")
	}
	if len(pr.Merged) > 0 {
		fmt.Fprintf(&b, "- **Recorded**: %s\n", strings.Join(pr.Merged, ", "))
	}
	if len(pr.Ignored) > 0 {
		fmt.Fprintf(&b, "- **Not yet reachable**: %s\n", strings.Join(pr.Ignored, ", "))
	}
	if len(pr.Advanced) > 0 {
		fmt.Fprintf(&b, "- **Phases completed**: %s\n", strings.Join(pr.Advanced, ", "))
	}

	fmt.Fprintf(&b, "- **Overall**: %.0f%%\n", res.Percent)
	if pr.PlanCompleted {
		b.WriteString("\n🎉 All phases complete. The plan is now completed.")
		return b.String()
	}
	for _, ph := range res.Plan.Phases {
		if ph.Status == plans.PhaseActive {
			fmt.Fprintf(&b, "- **Active phase**: %s (%d/%d tasks)\n", ph.Name, len(ph.CompletedTasks), len(ph.Tasks))
			if pending := ph.PendingTasks(); len(pending) > 0 {
				fmt.Fprintf(&b, "- **Remaining**: %s\n", strings.Join(pending, ", "))
			}
		}
	}
	return b.String()
}
