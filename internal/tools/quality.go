package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/switchboard/internal/dispatch"
	"github.com/HendryAvila/switchboard/internal/memory"
	"github.com/HendryAvila/switchboard/internal/quality"
)

// QualityCheckTool handles the quality_check MCP tool.
type QualityCheckTool struct {
	runner   *quality.Runner
	activity dispatch.ActivityLog
	root     string
}

// NewQualityCheckTool creates a QualityCheckTool. Relative file paths are
// resolved against root, which must be the runner's working directory.
// activity may be nil, in which case nothing is logged.
func NewQualityCheckTool(runner *quality.Runner, activity dispatch.ActivityLog, root string) *QualityCheckTool {
	return &QualityCheckTool{runner: runner, activity: activity, root: root}
}

// Definition returns the MCP tool definition for quality_check.
func (t *QualityCheckTool) Definition() mcp.Tool {
	return mcp.NewTool("quality_check",
		mcp.WithDescription(
			"Run the configured code-quality tools (formatters, linters, compilers) on changed files "+
				"and report a pass/fail verdict with one issue per failing tool. With profile set, the "+
				"verdict is recorded in the activity log against the files.",
		),
		mcp.WithString("files",
			mcp.Required(),
			mcp.Description("Files to check, one per line, relative to the project root"),
		),
		mcp.WithString("profile",
			mcp.Description("Profile that changed the files; when set the result is logged as activity"),
		),
		mcp.WithString("plan_id",
			mcp.Description("Plan the change belongs to, for the activity entry"),
		),
	)
}

// Handle processes the quality_check tool call.
func (t *QualityCheckTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files := listArg(req, "files")
	if len(files) == 0 {
		return mcp.NewToolResultError("'files' is required"), nil
	}
	for i, f := range files {
		files[i] = t.relative(f)
	}

	res, err := t.runner.Check(ctx, files)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("quality check failed: %v", err)), nil
	}

	var b strings.Builder
	if res.Passed {
		fmt.Fprintf(&b, "✅ %d file(s) passed.\n", len(files))
	} else {
		fmt.Fprintf(&b, "❌ %d issue(s):\n\n", len(res.Issues))
		for _, is := range res.Issues {
			fmt.Fprintf(&b, "- %s [%s]: %s\n", is.File, is.Tool, is.Message)
		}
	}

	profile := strings.TrimSpace(req.GetString("profile", ""))
	if profile != "" && t.activity != nil {
		_, err := t.activity.AppendActivity(ctx, memory.ActivityEntry{
			Profile: profile,
			Action:  "changed " + strings.Join(files, ", "),
			PlanID:  strings.TrimSpace(req.GetString("plan_id", "")),
			Source:  memory.SourceFile,
			Quality: res,
		})
		if err != nil {
			fmt.Fprintf(&b, "\n⚠️ activity log not updated: %v\n", err)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// relative rewrites absolute paths under the project root as root-relative
// slash paths so tool globs match them.
func (t *QualityCheckTool) relative(file string) string {
	if t.root == "" || !filepath.IsAbs(file) {
		return filepath.ToSlash(file)
	}
	rel, err := filepath.Rel(t.root, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(file)
	}
	return filepath.ToSlash(rel)
}
