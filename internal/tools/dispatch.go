package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/switchboard/internal/dispatch"
	"github.com/HendryAvila/switchboard/internal/tracker"
)

// DispatchTool handles the dispatch MCP tool.
//
// The MCP host is the reasoner: the tool runs route, assemble and validate,
// logs the decision, and hands back the prompt for the host to act on.
type DispatchTool struct {
	dispatcher *dispatch.Dispatcher
}

// NewDispatchTool creates a DispatchTool.
func NewDispatchTool(d *dispatch.Dispatcher) *DispatchTool {
	return &DispatchTool{dispatcher: d}
}

// Definition returns the MCP tool definition for dispatch.
func (t *DispatchTool) Definition() mcp.Tool {
	return mcp.NewTool("dispatch",
		mcp.WithDescription(
			"Run the full pipeline for a request: route it to a specialist, assemble that "+
				"specialist's context, validate the request against the active plan and record the "+
				"decision in the activity log. Returns the verdict and the specialist prompt. "+
				"Act on the prompt only when the verdict is not BLOCK. Call this FIRST for any non-trivial request.",
		),
		mcp.WithString("request",
			mcp.Required(),
			mcp.Description("The request text"),
		),
		mcp.WithString("profile",
			mcp.Description("Profile ID overriding the routing decision"),
		),
		mcp.WithString("format",
			mcp.Description("Output format (default: markdown)"),
			mcp.Enum("markdown", "json"),
		),
	)
}

// Handle processes the dispatch tool call.
func (t *DispatchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("request", "")
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("'request' is required"), nil
	}

	out, err := t.dispatcher.Dispatch(ctx, dispatch.Request{
		Text:    text,
		Profile: strings.TrimSpace(req.GetString("profile", "")),
		Source:  "mcp",
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("dispatch failed: %v", err)), nil
	}
	if req.GetString("format", "") == "json" {
		return jsonResult(out)
	}

	var b strings.Builder
	writeVerdict(&b, out.Verdict)
	b.WriteString("\n")
	b.WriteString(formatRoute(out.Route))
	if out.Profile != out.Route.Primary {
		fmt.Fprintf(&b, "\nProfile overridden: %s\n", out.Profile)
	}
	if out.Verdict.Level == tracker.Block {
		b.WriteString("\n⛔ The request was blocked. Resolve the reasons above or change the plan before proceeding.\n")
		return mcp.NewToolResultText(b.String()), nil
	}
	b.WriteString("\n---\n\n")
	b.WriteString(out.Prompt)
	return mcp.NewToolResultText(b.String()), nil
}
