package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/switchboard/internal/tracker"
)

// SuggestTool handles the suggest_next MCP tool.
type SuggestTool struct {
	tracker *tracker.Tracker
}

// NewSuggestTool creates a SuggestTool.
func NewSuggestTool(t *tracker.Tracker) *SuggestTool {
	return &SuggestTool{tracker: t}
}

// Definition returns the MCP tool definition for suggest_next.
func (t *SuggestTool) Definition() mcp.Tool {
	return mcp.NewTool("suggest_next",
		mcp.WithDescription(
			"Suggest what to work on next in the active plan: pending tasks of the active phase, "+
				"whether one task stands between it and the next phase, and unresolved blockers from "+
				"the latest reflection.",
		),
	)
}

// Handle processes the suggest_next tool call.
func (t *SuggestTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, err := t.tracker.Suggest(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("suggest failed: %v", err)), nil
	}

	var b strings.Builder
	b.WriteString("## Next steps\n\n")
	if s.PlanID != "" {
		fmt.Fprintf(&b, "Plan %s, %.0f%% complete", s.PlanID, s.Percent)
		if s.Phase != "" {
			fmt.Fprintf(&b, ", active phase %s", s.Phase)
		}
		b.WriteString(".\n\n")
	}
	for _, item := range s.Items {
		fmt.Fprintf(&b, "- %s\n", item)
	}
	if s.ReadyToAdvance {
		b.WriteString("\n➡️ One task left in this phase.\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}
