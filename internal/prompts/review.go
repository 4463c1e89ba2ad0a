package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/switchboard/internal/tracker"
)

// ReviewPrompt handles the plan-review MCP prompt.
// It instructs the AI to review the active plan and reflect on the
// current iteration.
type ReviewPrompt struct {
	tracker *tracker.Tracker
}

// NewReviewPrompt creates a ReviewPrompt.
func NewReviewPrompt(t *tracker.Tracker) *ReviewPrompt {
	return &ReviewPrompt{tracker: t}
}

// Definition returns the MCP prompt definition for registration.
func (p *ReviewPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("plan-review",
		mcp.WithPromptDescription(
			"Review the active project plan: progress, current phase, blockers "+
				"and what to do next, then record a reflection on the iteration.",
		),
	)
}

// Handle processes the plan-review prompt request.
func (p *ReviewPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	s, err := p.tracker.Suggest(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading suggestions: %w", err)
	}

	var b strings.Builder
	if s.PlanID == "" {
		b.WriteString("There is no active project plan.\n\n" +
			"Ask me what the project is about, propose 3-5 ordered phases with concrete tasks, " +
			"and create the plan with `plan_create` once I agree.")
	} else {
		fmt.Fprintf(&b, "Please run `plan_show` with detail_level full for plan %s.\n\n", s.PlanID)
		b.WriteString("Current guidance:\n")
		for _, item := range s.Items {
			fmt.Fprintf(&b, "- %s\n", item)
		}
		b.WriteString("\nThen:\n" +
			"1. Show me the phase progress in a clear, visual format\n" +
			"2. Highlight unresolved blockers and constraints at risk\n" +
			"3. Tell me exactly what I should do next\n" +
			"4. Record a reflection on this iteration with `reflection_create`\n")
	}

	return &mcp.GetPromptResult{
		Description: "Project Plan Review",
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(b.String()),
			},
		},
	}, nil
}
