package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/switchboard/internal/memory"
)

// ─── constraint_upsert ───────────────────────────────────────────────────────

// ConstraintTool handles the constraint_upsert MCP tool.
type ConstraintTool struct {
	store *memory.Store
}

// NewConstraintTool creates a ConstraintTool.
func NewConstraintTool(store *memory.Store) *ConstraintTool {
	return &ConstraintTool{store: store}
}

// Definition returns the MCP tool definition for constraint_upsert.
func (t *ConstraintTool) Definition() mcp.Tool {
	return mcp.NewTool("constraint_upsert",
		mcp.WithDescription(
			"Create or replace a rule that requests on a plan are validated against. "+
				"An existing constraint is matched by constraint_id, else by title. "+
				"Strict constraints can block a request; advisory ones and preferences only warn. "+
				"Set status to inactive to stop evaluating a constraint without losing it.",
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Short title, e.g. 'Interpretability'"),
		),
		mcp.WithString("rule",
			mcp.Required(),
			mcp.Description("Rule text, e.g. 'Models must be interpretable' or 'Never upload customer data'"),
		),
		mcp.WithString("kind",
			mcp.Description("How the rule reads (default: inferred from its opening words)"),
			mcp.Enum(string(memory.ConstraintRequirement), string(memory.ConstraintRestriction), string(memory.ConstraintPreference)),
		),
		mcp.WithString("enforcement",
			mcp.Description("strict (default) may block; advisory only warns"),
			mcp.Enum(string(memory.EnforcementStrict), string(memory.EnforcementAdvisory)),
		),
		mcp.WithString("status",
			mcp.Description("active (default) or inactive"),
			mcp.Enum(string(memory.ConstraintActive), string(memory.ConstraintInactive)),
		),
		mcp.WithString("priority", mcp.Description("Free-form priority")),
		mcp.WithString("scope", mcp.Description("Free-form scope, e.g. 'modeling'")),
		mcp.WithString("constraint_id",
			mcp.Description("ID of the constraint to replace"),
		),
		mcp.WithString("plan_id",
			mcp.Description("Plan ID (default: the active plan)"),
		),
	)
}

// Handle processes the constraint_upsert tool call.
func (t *ConstraintTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	rule := req.GetString("rule", "")
	if strings.TrimSpace(title) == "" {
		return mcp.NewToolResultError("'title' is required"), nil
	}
	if strings.TrimSpace(rule) == "" {
		return mcp.NewToolResultError("'rule' is required"), nil
	}
	p, errResult := resolvePlan(ctx, t.store, req)
	if errResult != nil {
		return errResult, nil
	}

	c, created, err := t.store.UpsertConstraint(ctx, p.ID, memory.Constraint{
		ID:          req.GetString("constraint_id", ""),
		Title:       title,
		Rule:        rule,
		Kind:        memory.ConstraintKind(req.GetString("kind", "")),
		Enforcement: memory.Enforcement(req.GetString("enforcement", "")),
		Status:      memory.ConstraintStatus(req.GetString("status", "")),
		Priority:    req.GetString("priority", ""),
		Scope:       req.GetString("scope", ""),
	})
	if err != nil {
		return storeError("upsert constraint", err), nil
	}

	verb := "Updated"
	if created {
		verb = "Created"
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s constraint %q (id: %s): %s %s, %s.",
		verb, c.Title, c.ID, c.Enforcement, c.Kind, c.Status)), nil
}

// ─── constraint_list ─────────────────────────────────────────────────────────

// ConstraintListTool handles the constraint_list MCP tool.
type ConstraintListTool struct {
	store *memory.Store
}

// NewConstraintListTool creates a ConstraintListTool.
func NewConstraintListTool(store *memory.Store) *ConstraintListTool {
	return &ConstraintListTool{store: store}
}

// Definition returns the MCP tool definition for constraint_list.
func (t *ConstraintListTool) Definition() mcp.Tool {
	return mcp.NewTool("constraint_list",
		mcp.WithDescription("List the constraints of a plan, strict ones first."),
		mcp.WithString("plan_id",
			mcp.Description("Plan ID (default: the active plan)"),
		),
		mcp.WithBoolean("active_only",
			mcp.Description("Only list active constraints (default: true)"),
		),
	)
}

// Handle processes the constraint_list tool call.
func (t *ConstraintListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errResult := resolvePlan(ctx, t.store, req)
	if errResult != nil {
		return errResult, nil
	}
	cs, err := t.store.Constraints(ctx, p.ID, boolArg(req, "active_only", true))
	if err != nil {
		return storeError("list constraints", err), nil
	}
	if len(cs) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Plan %q has no constraints. Add one with constraint_upsert.", p.Title)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Constraints: %s (%d)\n\n", p.Title, len(cs))
	for _, enf := range []memory.Enforcement{memory.EnforcementStrict, memory.EnforcementAdvisory} {
		for _, c := range cs {
			if c.Enforcement != enf {
				continue
			}
			fmt.Fprintf(&b, "- [%s %s, %s] **%s** (%s): %s\n", c.Enforcement, c.Kind, c.Status, c.Title, c.ID, c.Rule)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}
