package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/switchboard/internal/memory"
)

// QueryTool handles the memory_query MCP tool.
type QueryTool struct {
	store *memory.Store
}

// NewQueryTool creates a QueryTool.
func NewQueryTool(store *memory.Store) *QueryTool {
	return &QueryTool{store: store}
}

// Definition returns the MCP tool definition for memory_query.
func (t *QueryTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_query",
		mcp.WithDescription(
			"Search project memory: plans, decisions, reflections and constraints. "+
				"Results are ranked by relevance, which decays with age and favors plans, then decisions.",
		),
		mcp.WithString("text",
			mcp.Description("Case-insensitive substring to match against record text"),
		),
		mcp.WithString("type",
			mcp.Description("Filter by record type"),
			mcp.Enum(string(memory.KindPlan), string(memory.KindDecision), string(memory.KindReflection), string(memory.KindConstraint)),
		),
		mcp.WithString("plan_id",
			mcp.Description("Filter by plan ID"),
		),
		mcp.WithString("date_from",
			mcp.Description("Only records created on or after this date (YYYY-MM-DD or RFC 3339)"),
		),
		mcp.WithString("date_to",
			mcp.Description("Only records created on or before this date (YYYY-MM-DD or RFC 3339)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 10)"),
		),
		mcp.WithString("detail_level",
			mcp.Description(
				"Level of detail: 'summary' (type, id and title only — minimal tokens), "+
					"'standard' (default — one-line summaries), "+
					"'full' (complete record bodies as JSON).",
			),
			mcp.Enum(detailLevelValues()...),
		),
	)
}

// Handle processes the memory_query tool call.
func (t *QueryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := memory.ParseKind(req.GetString("type", ""))
	if err != nil {
		return storeError("query", err), nil
	}
	from, err := dateArg(req, "date_from", false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := dateArg(req, "date_to", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := intArg(req, "limit", 10)
	if limit <= 0 {
		limit = 10
	}
	detail := parseDetailLevel(req.GetString("detail_level", ""))

	// One extra row tells whether the result was capped.
	recs, err := t.store.Query(ctx, memory.Criteria{
		Text:     req.GetString("text", ""),
		Kind:     kind,
		PlanID:   strings.TrimSpace(req.GetString("plan_id", "")),
		DateFrom: from,
		DateTo:   to,
		Limit:    limit + 1,
	})
	if err != nil {
		return storeError("query", err), nil
	}
	if len(recs) == 0 {
		return mcp.NewToolResultText("No memories found matching your query."), nil
	}
	more := len(recs) > limit
	if more {
		recs = recs[:limit]
	}

	if detail == DetailFull {
		return jsonResult(recs)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d memories:\n\n", len(recs))
	for i, r := range recs {
		if detail == DetailSummary {
			fmt.Fprintf(&b, "[%d] %s %s: %s\n", i+1, r.Kind, r.ID, r.Title())
			continue
		}
		fmt.Fprintf(&b, "[%d] %s (%s) - %s\n    %s\n    plan: %s | %s | relevance %.1f\n\n",
			i+1, r.ID, r.Kind, r.Title(),
			memory.Truncate(r.Summary(), 300),
			r.PlanID, r.CreatedAt.Format("2006-01-02"), r.Relevance,
		)
	}
	if more {
		b.WriteString(fmt.Sprintf("\n📊 Showing the top %d. Raise 'limit' or narrow the filters for more.", limit))
	}
	if detail == DetailSummary {
		b.WriteString(summaryFooter)
	}
	return mcp.NewToolResultText(b.String()), nil
}
