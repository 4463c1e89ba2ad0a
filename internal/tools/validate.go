package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/switchboard/internal/tracker"
)

// ─── validate ────────────────────────────────────────────────────────────────

// ValidateTool handles the validate MCP tool.
type ValidateTool struct {
	tracker *tracker.Tracker
}

// NewValidateTool creates a ValidateTool.
func NewValidateTool(t *tracker.Tracker) *ValidateTool {
	return &ValidateTool{tracker: t}
}

// Definition returns the MCP tool definition for validate.
func (t *ValidateTool) Definition() mcp.Tool {
	return mcp.NewTool("validate",
		mcp.WithDescription(
			"Check a request against the active plan before doing the work. Returns allow, warn "+
				"or block with reasons: strict constraints the request goes against, and whether the "+
				"request fits the active phase. Do NOT proceed with blocked work; surface warnings to the user.",
		),
		mcp.WithString("request",
			mcp.Required(),
			mcp.Description("The request or planned action to validate"),
		),
		mcp.WithString("format",
			mcp.Description("Output format (default: markdown)"),
			mcp.Enum("markdown", "json"),
		),
	)
}

// Handle processes the validate tool call.
func (t *ValidateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("request", "")
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("'request' is required"), nil
	}

	v := t.tracker.ValidateActive(ctx, "mcp", text)
	if req.GetString("format", "") == "json" {
		return jsonResult(v)
	}

	var b strings.Builder
	writeVerdict(&b, v)
	for _, f := range v.Findings {
		fmt.Fprintf(&b, "\n### %s (%s, score %.1f)\n", f.Title, f.Level, f.Score)
		for _, e := range f.Evidence {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── sequence_check ──────────────────────────────────────────────────────────

// SequenceTool handles the sequence_check MCP tool.
type SequenceTool struct {
	tracker *tracker.Tracker
}

// NewSequenceTool creates a SequenceTool.
func NewSequenceTool(t *tracker.Tracker) *SequenceTool {
	return &SequenceTool{tracker: t}
}

// Definition returns the MCP tool definition for sequence_check.
func (t *SequenceTool) Definition() mcp.Tool {
	return mcp.NewTool("sequence_check",
		mcp.WithDescription(
			"Check whether an action fits the active plan's phase order. Work in the active phase "+
				"fits; revisiting a done phase or starting the next phase early warns; skipping two or "+
				"more phases ahead blocks. Pass phase to name the target phase explicitly, otherwise "+
				"it is inferred from phase and task names in the action text.",
		),
		mcp.WithString("action",
			mcp.Description("The planned action"),
		),
		mcp.WithString("phase",
			mcp.Description("Phase the action belongs to"),
		),
	)
}

// Handle processes the sequence_check tool call.
func (t *SequenceTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := tracker.Action{
		Text:  req.GetString("action", ""),
		Phase: strings.TrimSpace(req.GetString("phase", "")),
	}
	if strings.TrimSpace(a.Text) == "" && a.Phase == "" {
		return mcp.NewToolResultError("'action' or 'phase' is required"), nil
	}

	ac, err := t.tracker.ActiveContext(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load active plan: %v", err)), nil
	}
	sc := tracker.EnforceSequence(a, ac.Plan)

	fits := "does not fit"
	if sc.Fits {
		fits = "fits"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Sequence: %s %s\n\n", verdictIcons[sc.Verdict], strings.ToUpper(string(sc.Verdict)))
	fmt.Fprintf(&b, "The action %s the plan order: %s.\n", fits, sc.Reason)
	if sc.TargetPhase != "" {
		fmt.Fprintf(&b, "Target phase: %s\n", sc.TargetPhase)
	}
	return mcp.NewToolResultText(b.String()), nil
}
