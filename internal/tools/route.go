package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/switchboard/internal/dispatch"
	"github.com/HendryAvila/switchboard/internal/memory"
	"github.com/HendryAvila/switchboard/internal/router"
)

// RouteTool handles the route MCP tool.
type RouteTool struct {
	router   *router.Router
	activity dispatch.ActivityLog
}

// NewRouteTool creates a RouteTool. Every routed request is recorded in
// activity unless it is nil.
func NewRouteTool(r *router.Router, activity dispatch.ActivityLog) *RouteTool {
	return &RouteTool{router: r, activity: activity}
}

// Definition returns the MCP tool definition for route.
func (t *RouteTool) Definition() mcp.Tool {
	return mcp.NewTool("route",
		mcp.WithDescription(
			"Decide which specialist profile should handle a request. Scores every profile by "+
				"keyword (1 point) and pattern (2 points) matches; the best score is primary and up to "+
				"two runners-up are secondary. Requests that match nothing go to the fallback profile. "+
				"Deterministic: the same request always routes the same way. The routing decision "+
				"is recorded in the activity log.",
		),
		mcp.WithString("request",
			mcp.Required(),
			mcp.Description("The request text to route"),
		),
		mcp.WithString("format",
			mcp.Description("Output format (default: markdown)"),
			mcp.Enum("markdown", "json"),
		),
	)
}

// Handle processes the route tool call.
func (t *RouteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("request", "")
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("'request' is required"), nil
	}

	res := t.router.Route(text)
	var logErr error
	if t.activity != nil {
		_, logErr = t.activity.AppendActivity(ctx, RouteActivity(text, res))
	}
	if req.GetString("format", "") == "json" {
		return jsonResult(res)
	}
	out := formatRoute(res)
	if logErr != nil {
		out += fmt.Sprintf("\n⚠️ activity log not updated: %v\n", logErr)
	}
	return mcp.NewToolResultText(out), nil
}

// RouteActivity is the activity entry recorded for a routed request.
func RouteActivity(text string, res router.Result) memory.ActivityEntry {
	return memory.ActivityEntry{
		Profile: res.Primary,
		Action:  fmt.Sprintf("route %q", memory.Truncate(text, 120)),
		Source:  memory.SourceRoute,
	}
}

func formatRoute(res router.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Route: %s", res.Primary)
	if res.Fallback {
		b.WriteString(" (fallback)")
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s\n\n", res.Rationale)
	if len(res.Secondary) > 0 {
		fmt.Fprintf(&b, "**Secondary**: %s\n\n", strings.Join(res.Secondary, ", "))
	}

	ids := make([]string, 0, len(res.Matches))
	for id := range res.Matches {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if res.Scores[ids[i]] != res.Scores[ids[j]] {
			return res.Scores[ids[i]] > res.Scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	for _, id := range ids {
		m := res.Matches[id]
		fmt.Fprintf(&b, "- **%s** score %d", id, res.Scores[id])
		if len(m.Keywords) > 0 {
			fmt.Fprintf(&b, " | keywords: %s", strings.Join(m.Keywords, ", "))
		}
		if len(m.Patterns) > 0 {
			fmt.Fprintf(&b, " | patterns: %s", strings.Join(m.Patterns, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
