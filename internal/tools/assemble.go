package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/switchboard/internal/bundle"
	"github.com/HendryAvila/switchboard/internal/router"
)

// AssembleTool handles the assemble MCP tool.
type AssembleTool struct {
	router    *router.Router
	assembler *bundle.Assembler
}

// NewAssembleTool creates an AssembleTool.
func NewAssembleTool(r *router.Router, a *bundle.Assembler) *AssembleTool {
	return &AssembleTool{router: r, assembler: a}
}

// Definition returns the MCP tool definition for assemble.
func (t *AssembleTool) Definition() mcp.Tool {
	return mcp.NewTool("assemble",
		mcp.WithDescription(
			"Build the context bundle a specialist needs for a request: the profile's focus and "+
				"capabilities, the active plan and phase, the most relevant project memories and the "+
				"active constraints. Returns the rendered prompt. Without a profile the request is routed first.",
		),
		mcp.WithString("request",
			mcp.Required(),
			mcp.Description("The request text"),
		),
		mcp.WithString("profile",
			mcp.Description("Profile ID to assemble for (default: the routed primary profile)"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: markdown (rendered prompt, default) or json (bundle fields)"),
			mcp.Enum("markdown", "json"),
		),
	)
}

// Handle processes the assemble tool call.
func (t *AssembleTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("request", "")
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("'request' is required"), nil
	}
	profile := strings.TrimSpace(req.GetString("profile", ""))
	if profile == "" {
		profile = t.router.Route(text).Primary
	}

	b, err := t.assembler.Assemble(ctx, profile, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("assemble failed: %v", err)), nil
	}
	if req.GetString("format", "") == "json" {
		return jsonResult(b)
	}
	prompt, err := b.Render()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("render failed: %v", err)), nil
	}
	return mcp.NewToolResultText(prompt), nil
}
