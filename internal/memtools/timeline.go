package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/switchboard/internal/memory"
)

// ActivityTool handles the activity_log MCP tool.
// It has dual behavior:
//   - With action: appends an entry to the activity log
//   - Without action: lists recent entries, newest first
type ActivityTool struct {
	store *memory.Store
}

// NewActivityTool creates an ActivityTool.
func NewActivityTool(store *memory.Store) *ActivityTool {
	return &ActivityTool{store: store}
}

// Definition returns the MCP tool definition for activity_log.
func (t *ActivityTool) Definition() mcp.Tool {
	return mcp.NewTool("activity_log",
		mcp.WithDescription(
			"Append to or read the project activity log. Call WITH action to record what a "+
				"specialist did; call WITHOUT action to list recent entries, newest first. "+
				"Routed requests, progress updates and file changes are logged automatically.",
		),
		mcp.WithString("action",
			mcp.Description("What was done. If omitted, recent entries are listed."),
		),
		mcp.WithString("profile",
			mcp.Description("Specialist profile that did the work (required with action; filters the listing otherwise)"),
		),
		mcp.WithString("plan_id",
			mcp.Description("Plan the work belongs to (appends default to the active plan; filters the listing otherwise)"),
		),
		mcp.WithString("source",
			mcp.Description("Filter the listing by source"),
			mcp.Enum(string(memory.SourceRoute), string(memory.SourceFile), string(memory.SourceProgress), string(memory.SourceManual)),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max entries to list (default: 20)"),
		),
	)
}

// Handle processes the activity_log tool call.
func (t *ActivityTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action := strings.TrimSpace(req.GetString("action", ""))
	if action == "" {
		return t.list(req)
	}

	profile := strings.TrimSpace(req.GetString("profile", ""))
	if profile == "" {
		return mcp.NewToolResultError("'profile' is required when appending an action"), nil
	}
	planID := strings.TrimSpace(req.GetString("plan_id", ""))
	if planID == "" {
		p, err := t.store.ActivePlan(ctx)
		if err != nil {
			return storeError("load active plan", err), nil
		}
		if p != nil {
			planID = p.ID
		}
	}

	e, err := t.store.AppendActivity(ctx, memory.ActivityEntry{
		Profile: profile,
		Action:  action,
		PlanID:  planID,
		Source:  memory.SourceManual,
	})
	if err != nil {
		return storeError("append activity", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Logged %s: %s (id: %s)", e.Profile, e.Action, e.ID)), nil
}

func (t *ActivityTool) list(req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := intArg(req, "limit", 20)
	if limit <= 0 {
		limit = 20
	}
	entries := t.store.RecentActivity(memory.ActivityFilter{
		Profile: strings.TrimSpace(req.GetString("profile", "")),
		PlanID:  strings.TrimSpace(req.GetString("plan_id", "")),
		Source:  memory.ActivitySource(req.GetString("source", "")),
		Limit:   limit,
	})
	if len(entries) == 0 {
		return mcp.NewToolResultText("No activity recorded yet."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Recent activity (%d)\n\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s [%s] %s: %s", e.Timestamp.Format("2006-01-02 15:04:05"), e.Source, e.Profile, e.Action)
		if e.Quality != nil && !e.Quality.Passed {
			fmt.Fprintf(&b, " ⚠️ %s", e.Quality.Summary())
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}
