// Package metrics records turn and persistence metrics with Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the service metrics. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	turnsTotal         *prometheus.CounterVec
	generationFailures prometheus.Counter
	critiqueScore      prometheus.Histogram
	critiqueFallbacks  prometheus.Counter
	turnDuration       prometheus.Histogram
	memorySavesTotal   *prometheus.CounterVec
	tokensTotal        *prometheus.CounterVec
	cachedInstances    prometheus.Gauge
}

// New registers the metrics on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		turnsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mavkus_turns_total",
				Help: "Total number of processed turns by routing outcome",
			},
			[]string{"routed", "specialist_used"},
		),
		generationFailures: f.NewCounter(
			prometheus.CounterOpts{
				Name: "mavkus_generation_failures_total",
				Help: "Total number of turns whose generation call failed",
			},
		),
		critiqueScore: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mavkus_critique_score",
				Help:    "Overall self-critique score of generated responses",
				Buckets: prometheus.LinearBuckets(1, 1, 10),
			},
		),
		critiqueFallbacks: f.NewCounter(
			prometheus.CounterOpts{
				Name: "mavkus_critique_fallbacks_total",
				Help: "Total number of critiques replaced by neutral fallback scores",
			},
		),
		turnDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mavkus_turn_duration_seconds",
				Help:    "Duration of a full turn in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		memorySavesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mavkus_memory_saves_total",
				Help: "Total number of memory writes by status",
			},
			[]string{"status"},
		),
		tokensTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mavkus_tokens_total",
				Help: "Total number of generalist tokens by type",
			},
			[]string{"type"},
		),
		cachedInstances: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "mavkus_cached_instances",
				Help: "Number of orchestrators held in the instance cache",
			},
		),
	}
}

// Turn describes a completed turn.
type Turn struct {
	Routed           bool
	SpecialistUsed   bool
	GenerationFailed bool
	Critiqued        bool
	CritiqueScore    float64
	CritiqueFallback bool
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
}

// ObserveTurn records one turn.
func (r *Recorder) ObserveTurn(t Turn) {
	if r == nil {
		return
	}
	r.turnsTotal.WithLabelValues(strconv.FormatBool(t.Routed), strconv.FormatBool(t.SpecialistUsed)).Inc()
	if t.GenerationFailed {
		r.generationFailures.Inc()
	}
	if t.Critiqued {
		r.critiqueScore.Observe(t.CritiqueScore)
		if t.CritiqueFallback {
			r.critiqueFallbacks.Inc()
		}
	}
	r.tokensTotal.WithLabelValues("prompt").Add(float64(t.PromptTokens))
	r.tokensTotal.WithLabelValues("completion").Add(float64(t.CompletionTokens))
	r.turnDuration.Observe(t.Duration.Seconds())
}

// ObserveMemorySave counts a memory write.
func (r *Recorder) ObserveMemorySave(err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.memorySavesTotal.WithLabelValues(status).Inc()
}

// SetCachedInstances reports the instance cache size.
func (r *Recorder) SetCachedInstances(n int) {
	if r == nil {
		return
	}
	r.cachedInstances.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
