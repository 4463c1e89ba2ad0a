package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/switchboard/internal/memory"
)

// StatsTool handles the memory_stats MCP tool.
type StatsTool struct {
	store *memory.Store
}

// NewStatsTool creates a StatsTool with the given memory store.
func NewStatsTool(store *memory.Store) *StatsTool {
	return &StatsTool{store: store}
}

// Definition returns the MCP tool definition for memory_stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_stats",
		mcp.WithDescription(
			"Show memory statistics — plans, decisions, reflections, constraints and activity entries recorded.",
		),
	)
}

// Handle processes the memory_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.store.Stats(ctx)
	if err != nil {
		return storeError("get stats", err), nil
	}

	var sb strings.Builder
	sb.WriteString("## Memory Statistics\n\n")
	sb.WriteString(fmt.Sprintf("- **Plans**: %d (%d active)\n", stats.Plans, stats.ActivePlans))
	sb.WriteString(fmt.Sprintf("- **Decisions**: %d\n", stats.Decisions))
	sb.WriteString(fmt.Sprintf("- **Reflections**: %d\n", stats.Reflections))
	sb.WriteString(fmt.Sprintf("- **Constraints**: %d\n", stats.Constraints))
	sb.WriteString(fmt.Sprintf("- **Activity entries**: %d\n", stats.Activity))

	active, err := t.store.ActivePlan(ctx)
	if err != nil {
		return storeError("load active plan", err), nil
	}
	if active != nil {
		sb.WriteString(fmt.Sprintf("- **Active plan**: %s (%s)\n", active.Title, active.ID))
	} else {
		sb.WriteString("- **Active plan**: none\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}
