// Package tools implements MCP tool handlers for the dispatch pipeline:
// routing, context assembly, validation, next-step guidance and quality
// checks.
//
// Design principles:
// - SRP: each file = one tool
// - Tools hold the core components they call and nothing else
// - Handlers report failures as tool errors, never as Go errors
package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/switchboard/internal/tracker"
)

// rootMarkers identify a project root.
var rootMarkers = []string{"switchboard.yaml", ".git"}

// FindProjectRoot walks up from dir looking for a project marker and
// returns the absolute path of the first directory holding one. If none is
// found, it returns dir made absolute. An empty dir means the working
// directory.
func FindProjectRoot(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}

	current := dir
	for {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(current, marker)); err == nil {
				return current, nil
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			return dir, nil
		}
		current = parent
	}
}

// listArg extracts a newline-separated list argument. A native array is
// accepted too.
func listArg(req mcp.CallToolRequest, key string) []string {
	var raw []string
	switch v := req.GetArguments()[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case string:
		raw = strings.Split(v, "\n")
	}
	var out []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// jsonResult renders v as an indented JSON text result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

var verdictIcons = map[tracker.Level]string{
	tracker.Allow: "✅",
	tracker.Warn:  "⚠️",
	tracker.Block: "⛔",
}

// writeVerdict renders a verdict as a markdown section.
func writeVerdict(b *strings.Builder, v tracker.Verdict) {
	fmt.Fprintf(b, "## Verdict: %s %s\n\n", verdictIcons[v.Level], strings.ToUpper(string(v.Level)))
	for _, r := range v.Reasons {
		fmt.Fprintf(b, "- %s\n", r)
	}
	if v.Sequence != nil && v.Sequence.TargetPhase != "" {
		fmt.Fprintf(b, "\nPhase: %s\n", v.Sequence.TargetPhase)
	}
}
