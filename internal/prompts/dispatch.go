// Package prompts implements MCP prompt handlers for the dispatcher.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/switchboard/internal/dispatch"
	"github.com/HendryAvila/switchboard/internal/tracker"
)

// DispatchPrompt handles the dispatch MCP prompt.
// It runs the pipeline for the user's request and hands the AI the
// specialist prompt together with the verdict it must respect.
type DispatchPrompt struct {
	dispatcher *dispatch.Dispatcher
}

// NewDispatchPrompt creates a DispatchPrompt.
func NewDispatchPrompt(d *dispatch.Dispatcher) *DispatchPrompt {
	return &DispatchPrompt{dispatcher: d}
}

// Definition returns the MCP prompt definition for registration.
func (p *DispatchPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("dispatch",
		mcp.WithPromptDescription(
			"Hand a request to the right specialist. Routes the request, assembles the "+
				"specialist's project context and checks it against the active plan before work starts.",
		),
		mcp.WithArgument("request",
			mcp.ArgumentDescription("What you want done"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("profile",
			mcp.ArgumentDescription("Specialist profile to use instead of the routed one"),
		),
	)
}

// Handle processes the dispatch prompt request.
func (p *DispatchPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	var request, profile string
	if args := req.Params.Arguments; args != nil {
		request = strings.TrimSpace(args["request"])
		profile = strings.TrimSpace(args["profile"])
	}
	if request == "" {
		return nil, fmt.Errorf("argument 'request' is required")
	}

	out, err := p.dispatcher.Dispatch(ctx, dispatch.Request{Text: request, Profile: profile, Source: "prompt"})
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	switch out.Verdict.Level {
	case tracker.Block:
		b.WriteString("This request is BLOCKED by the active project plan. Do not carry it out.\n\n")
		b.WriteString("Explain these reasons to me and suggest how to proceed (change the request, ")
		b.WriteString("finish the current phase first, or update the constraint with `constraint_upsert`):\n")
	case tracker.Warn:
		b.WriteString("The active project plan raised WARNINGS for this request. Mention them to me ")
		b.WriteString("before you start, then proceed as the specialist below:\n")
	default:
		fmt.Fprintf(&b, "Act as the %s specialist for the request below.\n", out.Bundle.ProfileName)
	}
	for _, r := range out.Verdict.Reasons {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	if out.Verdict.Level != tracker.Block {
		b.WriteString("\nWhen you finish, record completed plan tasks with `plan_progress` and significant ")
		b.WriteString("choices with `decision_record`.\n\n---\n\n")
		b.WriteString(out.Prompt)
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Dispatch to %s (%s)", out.Profile, out.Verdict.Level),
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(b.String()),
			},
		},
	}, nil
}
