// Package server wires all components and creates the MCP server instance.
//
// This is the composition root: it creates the concrete store, registry,
// router, assembler, tracker and dispatcher and injects them into the
// tools, prompts and resources that depend on them. No business logic
// lives here, only wiring.
package server

import (
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/HendryAvila/switchboard/internal/bundle"
	"github.com/HendryAvila/switchboard/internal/config"
	"github.com/HendryAvila/switchboard/internal/dispatch"
	"github.com/HendryAvila/switchboard/internal/memory"
	"github.com/HendryAvila/switchboard/internal/memtools"
	"github.com/HendryAvila/switchboard/internal/metrics"
	"github.com/HendryAvila/switchboard/internal/profiles"
	"github.com/HendryAvila/switchboard/internal/prompts"
	"github.com/HendryAvila/switchboard/internal/quality"
	"github.com/HendryAvila/switchboard/internal/resources"
	"github.com/HendryAvila/switchboard/internal/router"
	"github.com/HendryAvila/switchboard/internal/templates"
	"github.com/HendryAvila/switchboard/internal/tools"
	"github.com/HendryAvila/switchboard/internal/tracker"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Components holds the wired core shared by the MCP server and the CLI.
type Components struct {
	Config     config.Config
	Log        *zap.Logger
	Metrics    *metrics.Metrics
	Store      *memory.Store
	Registry   *profiles.Registry
	Router     *router.Router
	Assembler  *bundle.Assembler
	Tracker    *tracker.Tracker
	Dispatcher *dispatch.Dispatcher
	Renderer   *templates.Renderer
	// Quality is nil when the quality gate is disabled.
	Quality *quality.Runner
	// ProjectRoot is the directory quality tools run from.
	ProjectRoot string
}

// Build opens the memory store and wires every component from cfg. The
// caller must Close the result.
func Build(cfg config.Config, log *zap.Logger) (*Components, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Components{Config: cfg, Log: log, Metrics: metrics.New()}

	// --- Registry ---

	reg, err := profiles.Load(cfg.ProfilePaths())
	if err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	c.Registry = reg

	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("creating template renderer: %w", err)
	}
	c.Renderer = renderer

	// --- Memory ---

	store, err := memory.New(cfg.Memory(),
		memory.WithLogger(log.Named("memory")),
		memory.WithObserver(c.Metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("opening memory store: %w", err)
	}
	c.Store = store

	// --- Decision pipeline ---

	c.Router = router.New(reg, log.Named("router"))
	c.Assembler, err = bundle.New(reg, store,
		bundle.WithMemoryLimit(cfg.ContextMemoryLimit),
		bundle.WithLogger(log.Named("bundle")),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("creating assembler: %w", err)
	}
	c.Tracker = tracker.New(store, log.Named("tracker"), c.Metrics)
	c.Dispatcher = dispatch.New(c.Router, c.Assembler, c.Tracker, store,
		dispatch.WithRecorder(c.Metrics),
		dispatch.WithLogger(log.Named("dispatch")),
	)

	// --- Quality gate ---

	c.ProjectRoot, err = tools.FindProjectRoot(cfg.Watch.Root)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	if cfg.Quality.Enabled {
		c.Quality, err = quality.NewRunner(cfg.Quality.Tools, c.ProjectRoot, cfg.Quality.Concurrency, log.Named("quality"))
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("creating quality runner: %w", err)
		}
	}

	return c, nil
}

// Close releases the memory store.
func (c *Components) Close() error {
	if c.Store == nil {
		return nil
	}
	if err := c.Store.Close(); err != nil {
		return fmt.Errorf("closing memory store: %w", err)
	}
	return nil
}

// ReloadProfiles re-reads the profile and rule files into the live
// registry. On error the current table stays in place.
func (c *Components) ReloadProfiles() error {
	if c.Registry == nil {
		return errors.New("registry not initialized")
	}
	if err := c.Registry.Reload(c.Config.ProfilePaths()); err != nil {
		return fmt.Errorf("reloading profiles: %w", err)
	}
	c.Log.Info("profiles reloaded", zap.Strings("profiles", c.Registry.IDs()))
	return nil
}

// New creates the MCP server with all tools, prompts and resources
// registered against c.
func New(c *Components) *server.MCPServer {
	s := server.NewMCPServer(
		"switchboard",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	registerDecisionTools(s, c)
	registerMemoryTools(s, c.Store, c.Renderer)

	// --- Register prompts ---

	dispatchPrompt := prompts.NewDispatchPrompt(c.Dispatcher)
	s.AddPrompt(dispatchPrompt.Definition(), dispatchPrompt.Handle)

	reviewPrompt := prompts.NewReviewPrompt(c.Tracker)
	s.AddPrompt(reviewPrompt.Definition(), reviewPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(c.Store, c.Tracker)
	s.AddResource(resourceHandler.ActivePlanResource(), resourceHandler.HandleActivePlan)
	s.AddResource(resourceHandler.RecentActivityResource(), resourceHandler.HandleRecentActivity)

	return s
}

// registerDecisionTools registers routing, assembly, validation and the
// quality gate.
func registerDecisionTools(s *server.MCPServer, c *Components) {
	routeTool := tools.NewRouteTool(c.Router, c.Store)
	s.AddTool(routeTool.Definition(), routeTool.Handle)

	assembleTool := tools.NewAssembleTool(c.Router, c.Assembler)
	s.AddTool(assembleTool.Definition(), assembleTool.Handle)

	validateTool := tools.NewValidateTool(c.Tracker)
	s.AddTool(validateTool.Definition(), validateTool.Handle)

	sequenceTool := tools.NewSequenceTool(c.Tracker)
	s.AddTool(sequenceTool.Definition(), sequenceTool.Handle)

	dispatchTool := tools.NewDispatchTool(c.Dispatcher)
	s.AddTool(dispatchTool.Definition(), dispatchTool.Handle)

	suggestTool := tools.NewSuggestTool(c.Tracker)
	s.AddTool(suggestTool.Definition(), suggestTool.Handle)

	if c.Quality != nil {
		qualityTool := tools.NewQualityCheckTool(c.Quality, c.Store, c.ProjectRoot)
		s.AddTool(qualityTool.Definition(), qualityTool.Handle)
	}
}

// registerMemoryTools registers the plan and memory tools.
func registerMemoryTools(s *server.MCPServer, ms *memory.Store, renderer *templates.Renderer) {
	// --- Plans ---
	planCreate := memtools.NewPlanCreateTool(ms)
	s.AddTool(planCreate.Definition(), planCreate.Handle)

	planList := memtools.NewPlanListTool(ms)
	s.AddTool(planList.Definition(), planList.Handle)

	planShow := memtools.NewPlanShowTool(ms, renderer)
	s.AddTool(planShow.Definition(), planShow.Handle)

	planSetCurrent := memtools.NewPlanSetCurrentTool(ms)
	s.AddTool(planSetCurrent.Definition(), planSetCurrent.Handle)

	planStatus := memtools.NewPlanStatusTool(ms)
	s.AddTool(planStatus.Definition(), planStatus.Handle)

	progressTool := memtools.NewProgressTool(ms)
	s.AddTool(progressTool.Definition(), progressTool.Handle)

	// --- Records ---
	decisionTool := memtools.NewDecisionTool(ms)
	s.AddTool(decisionTool.Definition(), decisionTool.Handle)

	reflectionTool := memtools.NewReflectionTool(ms)
	s.AddTool(reflectionTool.Definition(), reflectionTool.Handle)

	constraintTool := memtools.NewConstraintTool(ms)
	s.AddTool(constraintTool.Definition(), constraintTool.Handle)

	constraintList := memtools.NewConstraintListTool(ms)
	s.AddTool(constraintList.Definition(), constraintList.Handle)

	// --- Query & activity ---
	queryTool := memtools.NewQueryTool(ms)
	s.AddTool(queryTool.Definition(), queryTool.Handle)

	activityTool := memtools.NewActivityTool(ms)
	s.AddTool(activityTool.Definition(), activityTool.Handle)

	statsTool := memtools.NewStatsTool(ms)
	s.AddTool(statsTool.Definition(), statsTool.Handle)
}

// serverInstructions returns the system instructions that tell the AI
// how to use switchboard.
func serverInstructions() string {
	return `You have access to switchboard, a dispatcher that routes work to specialist profiles
and keeps it aligned with a phased project plan.

## HOW IT WORKS

switchboard does not generate answers. It decides WHO should handle a request and
WHETHER the request fits the plan, then hands you a context bundle. You are the
specialist: act on the bundle, then report back.

1. ROUTE: "route" scores the request against every profile's keywords and patterns.
2. ASSEMBLE: "assemble" builds the specialist prompt with the active plan, the
   active constraints and the most relevant memories.
3. VALIDATE: "validate" checks the request against strict constraints, soft
   preferences and the phase order. Verdicts are allow, warn or block.
4. "dispatch" does all three in one call and records the outcome in the activity log.

## RULES

- Call "dispatch" (or the "dispatch" prompt) before substantive work on a request.
- If the verdict is BLOCK, do not do the work. Explain the reasons to the user and
  suggest an alternative that satisfies the constraint.
- If the verdict is WARN, mention the warnings before proceeding.
- After finishing tasks, call "plan_progress" with the exact task names. A phase
  completes only when all of its tasks are done.
- Record significant choices with "decision_record" and close each iteration with
  "reflection_create". Blockers in the latest reflection surface in "suggest_next".
- Use "constraint_upsert" when the user states a rule the work must follow.
  Strict constraints can block; preferences only warn.

## GETTING STARTED

With no active plan every request is allowed. When the user starts a project,
propose 3-5 ordered phases with concrete tasks and create them with "plan_create".
Use "suggest_next" or the "plan-review" prompt to decide what to do next.`
}
