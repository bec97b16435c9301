// Package metrics exposes prometheus collectors for chatmesh. A nil
// *Collector is valid and records nothing, so components can take one as an
// optional dependency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector groups the chatmesh metrics registered on one registry.
type Collector struct {
	intentCalls     *prometheus.CounterVec
	progressions    prometheus.Counter
	staleDiscarded  *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
	dispatchTurns   *prometheus.CounterVec
}

// New registers the chatmesh collectors on reg. Pass prometheus.NewRegistry()
// in tests to avoid duplicate registration on the default registry.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		intentCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatmesh_intent_calls_total",
				Help: "Agent activation updates issued while applying chat mode intents",
			},
			[]string{"action", "outcome"},
		),
		progressions: f.NewCounter(
			prometheus.CounterOpts{
				Name: "chatmesh_progressions_total",
				Help: "Round-robin turn progressions computed",
			},
		),
		staleDiscarded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatmesh_stale_results_discarded_total",
				Help: "Fetch results dropped because a newer selection superseded them",
			},
			[]string{"outcome"},
		),
		dispatchLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatmesh_dispatch_turn_duration_seconds",
				Help:    "Duration of a single agent turn",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		dispatchTurns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatmesh_dispatch_turns_total",
				Help: "Agent turns dispatched by terminal status",
			},
			[]string{"provider", "status"},
		),
	}
}

// IntentCall records one enable/disable call and whether it succeeded.
func (c *Collector) IntentCall(action string, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.intentCalls.WithLabelValues(action, outcome).Inc()
}

// Progression records a computed round-robin progression.
func (c *Collector) Progression() {
	if c == nil {
		return
	}
	c.progressions.Inc()
}

// StaleDiscarded records a superseded fetch; outcome is "success" or "error".
func (c *Collector) StaleDiscarded(outcome string) {
	if c == nil {
		return
	}
	c.staleDiscarded.WithLabelValues(outcome).Inc()
}

// DispatchTurn records an agent turn outcome and duration.
func (c *Collector) DispatchTurn(provider, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.dispatchTurns.WithLabelValues(provider, status).Inc()
	c.dispatchLatency.WithLabelValues(provider).Observe(d.Seconds())
}
