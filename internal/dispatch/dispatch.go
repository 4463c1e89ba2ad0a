// Package dispatch runs the full decision pipeline for one request: route
// it to a specialist, assemble that specialist's context, validate it
// against the active plan, optionally hand the prompt to a reasoning
// service, and log the outcome as activity.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/HendryAvila/switchboard/internal/bundle"
	"github.com/HendryAvila/switchboard/internal/memory"
	"github.com/HendryAvila/switchboard/internal/router"
	"github.com/HendryAvila/switchboard/internal/tracker"
)

// Reasoner is the external generative service. The response is passed
// back untouched.
type Reasoner interface {
	Reason(ctx context.Context, prompt string) (string, error)
}

// ActivityLog is where dispatch outcomes are recorded.
type ActivityLog interface {
	AppendActivity(ctx context.Context, e memory.ActivityEntry) (memory.ActivityEntry, error)
}

// Recorder receives pipeline measurements.
type Recorder interface {
	Routed(profile string, fallback bool)
	ActivityAppended(source string)
	ObserveDispatch(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) Routed(string, bool)           {}
func (nopRecorder) ActivityAppended(string)       {}
func (nopRecorder) ObserveDispatch(time.Duration) {}

// Request is one unit of work to dispatch.
type Request struct {
	Text string `json:"text"`
	// Profile overrides the routing decision when set.
	Profile string `json:"profile,omitempty"`
	// Source names the caller in logs and metrics.
	Source string `json:"source,omitempty"`
}

// Outcome is everything the pipeline decided about a request.
type Outcome struct {
	Route   router.Result   `json:"route"`
	Profile string          `json:"profile"`
	Bundle  *bundle.Bundle  `json:"bundle"`
	Prompt  string          `json:"prompt"`
	Verdict tracker.Verdict `json:"verdict"`
	// Executed is true when the prompt was handed to the reasoner.
	Executed bool   `json:"executed"`
	Response string `json:"response,omitempty"`
	// ResponseIssues lists unsafe patterns found in the response. The
	// response itself is not altered.
	ResponseIssues []tracker.SecurityIssue `json:"response_issues,omitempty"`
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithReasoner sets the reasoning service. Without one, Dispatch stops
// after validation.
func WithReasoner(r Reasoner) Option {
	return func(d *Dispatcher) { d.reasoner = r }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.rec = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// Dispatcher wires the router, assembler, tracker and activity log.
type Dispatcher struct {
	router    *router.Router
	assembler *bundle.Assembler
	tracker   *tracker.Tracker
	activity  ActivityLog
	reasoner  Reasoner
	rec       Recorder
	log       *zap.Logger
}

// New creates a Dispatcher.
func New(r *router.Router, a *bundle.Assembler, t *tracker.Tracker, activity ActivityLog, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		router:    r,
		assembler: a,
		tracker:   t,
		activity:  activity,
		rec:       nopRecorder{},
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs the pipeline. A blocked request is never handed to the
// reasoner. Failing to record activity is logged, not returned.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Outcome, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("dispatch: request text is required")
	}
	source := req.Source
	if source == "" {
		source = "dispatch"
	}
	start := time.Now()
	defer func() { d.rec.ObserveDispatch(time.Since(start)) }()

	out := &Outcome{Route: d.router.Route(req.Text)}
	d.rec.Routed(out.Route.Primary, out.Route.Fallback)
	out.Profile = out.Route.Primary
	if req.Profile != "" {
		out.Profile = req.Profile
	}

	b, err := d.assembler.Assemble(ctx, out.Profile, req.Text)
	if err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	out.Bundle = b
	out.Profile = b.ProfileID
	if out.Prompt, err = b.Render(); err != nil {
		return nil, fmt.Errorf("dispatch: render bundle: %w", err)
	}

	out.Verdict = d.tracker.ValidateActive(ctx, source, req.Text)

	if out.Verdict.Level != tracker.Block && d.reasoner != nil {
		resp, err := d.reasoner.Reason(ctx, out.Prompt)
		if err != nil {
			d.record(ctx, out, req.Text, "failed")
			return out, fmt.Errorf("dispatch: reasoner: %w", err)
		}
		out.Executed = true
		out.Response = resp
		if out.ResponseIssues = tracker.Screen(resp); len(out.ResponseIssues) > 0 {
			d.log.Warn("reasoner response flagged",
				zap.String("profile", out.Profile),
				zap.Int("issues", len(out.ResponseIssues)))
		}
	}

	status := string(out.Verdict.Level)
	if out.Executed {
		status += ", executed"
	}
	d.record(ctx, out, req.Text, status)

	d.log.Info("dispatched",
		zap.String("source", source),
		zap.String("profile", out.Profile),
		zap.String("verdict", string(out.Verdict.Level)),
		zap.Bool("executed", out.Executed))
	return out, nil
}

func (d *Dispatcher) record(ctx context.Context, out *Outcome, text, status string) {
	entry := memory.ActivityEntry{
		Profile: out.Profile,
		Action:  fmt.Sprintf("dispatch %q (%s)", memory.Truncate(text, 120), status),
		PlanID:  out.Bundle.PlanID,
		Source:  memory.SourceRoute,
	}
	if _, err := d.activity.AppendActivity(ctx, entry); err != nil {
		d.log.Warn("record dispatch activity failed", zap.Error(err))
		return
	}
	d.rec.ActivityAppended(string(memory.SourceRoute))
}
