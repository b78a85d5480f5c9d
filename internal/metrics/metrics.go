// Package metrics exports workout activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marcus/morningshift/internal/timer"
	"github.com/marcus/morningshift/internal/workout"
)

const namespace = "morningshift"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	phasesStarted   *prometheus.CounterVec
	phasesCompleted *prometheus.CounterVec
	runsTotal       *prometheus.CounterVec
	runSeconds      *prometheus.HistogramVec
	pausesTotal     *prometheus.CounterVec
	activeRuns      prometheus.Gauge
	voiceRequests   *prometheus.CounterVec
}

// New constructs a registry and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	phasesStarted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "phase",
			Name:      "started_total",
			Help:      "Phases started, by preset and kind.",
		},
		[]string{"preset", "kind"},
	)
	phasesCompleted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "phase",
			Name:      "completed_total",
			Help:      "Phases that ran to zero, by preset and kind.",
		},
		[]string{"preset", "kind"},
	)
	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "finished_total",
			Help:      "Workouts that reached a terminal state, by preset and result.",
		},
		[]string{"preset", "result"},
	)
	runSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Wall time from start to completion or stop, pauses included.",
			Buckets:   []float64{10, 30, 60, 300, 600, 1200, 1800, 3600, 5400, 7200},
		},
		[]string{"preset", "result"},
	)
	pausesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "pauses_total",
			Help:      "Pause requests honored, by preset.",
		},
		[]string{"preset"},
	)
	activeRuns := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "active",
			Help:      "Workouts currently running or paused.",
		},
	)
	voiceRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "voice",
			Name:      "requests_total",
			Help:      "Voice webhook requests, by recognized intent.",
		},
		[]string{"intent"},
	)

	registry.MustRegister(
		phasesStarted,
		phasesCompleted,
		runsTotal,
		runSeconds,
		pausesTotal,
		activeRuns,
		voiceRequests,
	)

	return &Metrics{
		registry:        registry,
		phasesStarted:   phasesStarted,
		phasesCompleted: phasesCompleted,
		runsTotal:       runsTotal,
		runSeconds:      runSeconds,
		pausesTotal:     pausesTotal,
		activeRuns:      activeRuns,
		voiceRequests:   voiceRequests,
	}
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncVoiceRequest counts one webhook request.
func (m *Metrics) IncVoiceRequest(intent string) {
	if m == nil {
		return
	}
	m.voiceRequests.WithLabelValues(intent).Inc()
}

// Reporter returns a timer.Reporter that records one run of preset.
// Use a fresh reporter per engine.
func (m *Metrics) Reporter(preset string) timer.Reporter {
	if m == nil {
		return timer.NopReporter{}
	}
	return &runReporter{m: m, preset: preset, now: time.Now}
}

type runReporter struct {
	m      *Metrics
	preset string
	now    func() time.Time

	mu      sync.Mutex
	started time.Time
}

func (r *runReporter) OnPhaseStart(kind workout.PhaseKind, _ time.Duration, _ *workout.Exercise) {
	r.mu.Lock()
	if r.started.IsZero() {
		r.started = r.now()
		r.m.activeRuns.Inc()
	}
	r.mu.Unlock()
	r.m.phasesStarted.WithLabelValues(r.preset, kind.String()).Inc()
}

func (r *runReporter) OnTick(time.Duration, float64) {}

func (r *runReporter) OnPhaseComplete(kind workout.PhaseKind) {
	r.m.phasesCompleted.WithLabelValues(r.preset, kind.String()).Inc()
}

func (r *runReporter) OnCompleted() { r.finish("completed") }
func (r *runReporter) OnStopped()   { r.finish("stopped") }

func (r *runReporter) OnPaused() {
	r.m.pausesTotal.WithLabelValues(r.preset).Inc()
}

func (r *runReporter) OnResumed() {}

func (r *runReporter) finish(result string) {
	r.mu.Lock()
	started := r.started
	r.started = time.Time{}
	r.mu.Unlock()

	r.m.runsTotal.WithLabelValues(r.preset, result).Inc()
	if started.IsZero() {
		return
	}
	r.m.activeRuns.Dec()
	r.m.runSeconds.WithLabelValues(r.preset, result).Observe(r.now().Sub(started).Seconds())
}
