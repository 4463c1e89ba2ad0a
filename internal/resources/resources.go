// Package resources implements MCP resource handlers for the dispatcher.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (switchboard://...) following MCP conventions.
package resources

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/switchboard/internal/memory"
	"github.com/HendryAvila/switchboard/internal/plans"
	"github.com/HendryAvila/switchboard/internal/tracker"
)

// Resource URIs.
const (
	ActivePlanURI     = "switchboard://plan/active"
	RecentActivityURI = "switchboard://activity/recent"
)

// recentActivityLimit caps the activity resource.
const recentActivityLimit = 50

// Handler manages resource endpoints.
type Handler struct {
	store   *memory.Store
	tracker *tracker.Tracker
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(store *memory.Store, t *tracker.Tracker) *Handler {
	return &Handler{store: store, tracker: t}
}

// ActivePlan is the payload of the active plan resource.
type ActivePlan struct {
	Plan        *plans.Plan          `json:"plan"`
	Percent     float64              `json:"percent"`
	Constraints []*memory.Constraint `json:"constraints"`
	Suggestions tracker.Suggestions  `json:"suggestions"`
}

// ActivePlanResource returns the MCP resource definition for the active plan.
func (h *Handler) ActivePlanResource() mcp.Resource {
	return mcp.NewResource(
		ActivePlanURI,
		"Active Project Plan",
		mcp.WithResourceDescription("The plan requests are validated against: phases, progress, active constraints and next steps"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleActivePlan returns the active plan as JSON. With no active plan
// the payload carries a null plan and the create-a-plan suggestion.
func (h *Handler) HandleActivePlan(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	ac, err := h.tracker.ActiveContext(ctx)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	s, err := h.tracker.Suggest(ctx)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	payload := ActivePlan{Plan: ac.Plan, Constraints: ac.Constraints, Suggestions: s}
	if ac.Plan != nil {
		payload.Percent = plans.Percent(ac.Plan)
	}
	return jsonResource(req.Params.URI, payload)
}

// RecentActivityResource returns the MCP resource definition for the
// activity log.
func (h *Handler) RecentActivityResource() mcp.Resource {
	return mcp.NewResource(
		RecentActivityURI,
		"Recent Activity",
		mcp.WithResourceDescription(fmt.Sprintf("The last %d activity log entries, newest first", recentActivityLimit)),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleRecentActivity returns recent activity entries as JSON.
func (h *Handler) HandleRecentActivity(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	entries := h.store.RecentActivity(memory.ActivityFilter{Limit: recentActivityLimit})
	if entries == nil {
		entries = []memory.ActivityEntry{}
	}
	return jsonResource(req.Params.URI, entries)
}
