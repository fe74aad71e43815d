// Package metrics exposes Prometheus instrumentation for the rules engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set bundles the engine's collectors. A nil *Set is safe to use and
// records nothing, so tests can pass nil.
type Set struct {
	GamesActive      prometheus.Gauge
	ActionsTotal     *prometheus.CounterVec
	ActionErrors     *prometheus.CounterVec
	StackDepth       prometheus.Histogram
	TriggersFired    prometheus.Counter
	ResolutionSteps  *prometheus.CounterVec
	GatewaySessions  prometheus.Gauge
	EventLogAppends  prometheus.Counter
	EventLogFailures prometheus.Counter
}

// New registers the engine collectors with the given registerer.
func New(reg prometheus.Registerer) *Set {
	factory := promauto.With(reg)
	return &Set{
		GamesActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "conclave_games_active",
			Help: "Number of games currently registered.",
		}),
		ActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "conclave_actions_total",
			Help: "Accepted player actions by type.",
		}, []string{"type"}),
		ActionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "conclave_action_errors_total",
			Help: "Rejected player actions by error code.",
		}, []string{"code"}),
		StackDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "conclave_stack_depth",
			Help:    "Stack depth observed after each action.",
			Buckets: prometheus.LinearBuckets(0, 1, 10),
		}),
		TriggersFired: factory.NewCounter(prometheus.CounterOpts{
			Name: "conclave_triggers_fired_total",
			Help: "Triggered abilities placed on the stack.",
		}),
		ResolutionSteps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "conclave_resolution_steps_total",
			Help: "Resolution queue steps created by kind.",
		}, []string{"kind"}),
		GatewaySessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "conclave_gateway_sessions",
			Help: "Open websocket sessions.",
		}),
		EventLogAppends: factory.NewCounter(prometheus.CounterOpts{
			Name: "conclave_eventlog_appends_total",
			Help: "Records appended to the event log.",
		}),
		EventLogFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "conclave_eventlog_failures_total",
			Help: "Event log append failures.",
		}),
	}
}

// Handler returns the scrape endpoint for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (s *Set) IncGames() {
	if s != nil {
		s.GamesActive.Inc()
	}
}

func (s *Set) DecGames() {
	if s != nil {
		s.GamesActive.Dec()
	}
}

func (s *Set) ObserveAction(actionType string) {
	if s != nil {
		s.ActionsTotal.WithLabelValues(actionType).Inc()
	}
}

func (s *Set) ObserveActionError(code string) {
	if s != nil {
		s.ActionErrors.WithLabelValues(code).Inc()
	}
}

func (s *Set) ObserveStackDepth(depth int) {
	if s != nil {
		s.StackDepth.Observe(float64(depth))
	}
}

func (s *Set) ObserveTriggerFired() {
	if s != nil {
		s.TriggersFired.Inc()
	}
}

func (s *Set) ObserveResolutionStep(kind string) {
	if s != nil {
		s.ResolutionSteps.WithLabelValues(kind).Inc()
	}
}

func (s *Set) ObserveLogAppend(err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.EventLogFailures.Inc()
		return
	}
	s.EventLogAppends.Inc()
}
