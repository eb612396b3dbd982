// Package metrics exposes Prometheus instrumentation for the hook
// engine. RecordExecution matches the engine's listener signature, so
// the daemon wires it with engine.AddListener(metrics.RecordExecution).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/watzon/relay/internal/engine"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
	statusBlocked = "blocked"
)

var (
	hookExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_hook_executions_total",
			Help: "Total number of hook executions",
		},
		[]string{"hook", "trigger", "status"},
	)

	hookExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_hook_execution_duration_seconds",
			Help:    "Hook execution time in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"hook"},
	)

	actionExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_action_executions_total",
			Help: "Total number of action executions",
		},
		[]string{"type", "status"},
	)

	hooksRegistered = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_hooks_registered",
			Help: "Number of registered hooks by state",
		},
		[]string{"state"},
	)
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordExecution observes one recorded run and its actions.
func RecordExecution(res *engine.ExecutionResult) {
	status := statusSuccess
	switch {
	case res.Error == engine.ConditionsNotMet:
		status = statusBlocked
	case !res.Success:
		status = statusFailure
	}

	hookExecutionsTotal.WithLabelValues(res.HookID, string(res.Trigger), status).Inc()
	hookExecutionDuration.WithLabelValues(res.HookID).Observe(float64(res.DurationMs) / 1000)

	for i := range res.Actions {
		a := &res.Actions[i]
		actionStatus := statusSuccess
		if !a.Success {
			actionStatus = statusFailure
		}
		actionExecutionsTotal.WithLabelValues(string(a.Type), actionStatus).Inc()
	}
}

// SetRegisteredHooks updates the registry gauges.
func SetRegisteredHooks(enabled, disabled int) {
	hooksRegistered.WithLabelValues("enabled").Set(float64(enabled))
	hooksRegistered.WithLabelValues("disabled").Set(float64(disabled))
}

// RegisterFeedClients exposes a live WebSocket client count as a
// gauge. Call at most once per process.
func RegisterFeedClients(count func() int) {
	promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "relay_feed_clients",
			Help: "Number of connected execution feed clients",
		},
		func() float64 { return float64(count()) },
	)
}
