// Package metrics exposes Prometheus counters for routing, validation,
// plan progress and storage health. A *Metrics value plugs into the memory
// store and the tracker as their observer.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/HendryAvila/switchboard/internal/tracker"
)

const namespace = "switchboard"

// Metrics holds the switchboard collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	routes        *prometheus.CounterVec
	verdicts      *prometheus.CounterVec
	transitions   prometheus.Counter
	storageErrors *prometheus.CounterVec
	activity      *prometheus.CounterVec
	dispatchTime  prometheus.Histogram
}

// New registers the collectors, plus the Go runtime and process
// collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		routes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routes_total",
			Help:      "Requests routed, by primary profile and whether the fallback was used.",
		}, []string{"profile", "fallback"}),
		verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Validation verdicts issued, by caller and verdict.",
		}, []string{"source", "verdict"}),
		transitions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Plan phases completed.",
		}),
		storageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Memory store operations that failed, by operation.",
		}, []string{"op"}),
		activity: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_entries_total",
			Help:      "Activity log entries appended, by source.",
		}, []string{"source"}),
		dispatchTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent routing, assembling and validating one request.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// --- Observers ---

// Routed counts one routing decision.
func (m *Metrics) Routed(profile string, fallback bool) {
	m.routes.WithLabelValues(profile, strconv.FormatBool(fallback)).Inc()
}

// Verdict implements tracker.Observer.
func (m *Metrics) Verdict(source string, level tracker.Level) {
	m.verdicts.WithLabelValues(source, string(level)).Inc()
}

// StorageError implements memory.Observer.
func (m *Metrics) StorageError(op string) {
	m.storageErrors.WithLabelValues(op).Inc()
}

// PhaseAdvanced implements memory.Observer. Plan and phase names are left
// out of the labels to keep cardinality bounded.
func (m *Metrics) PhaseAdvanced(string, string) {
	m.transitions.Inc()
}

// ActivityAppended counts one activity entry.
func (m *Metrics) ActivityAppended(source string) {
	m.activity.WithLabelValues(source).Inc()
}

// ObserveDispatch records how long one dispatch took.
func (m *Metrics) ObserveDispatch(d time.Duration) {
	m.dispatchTime.Observe(d.Seconds())
}

// --- Endpoint ---

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("metrics endpoint listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
