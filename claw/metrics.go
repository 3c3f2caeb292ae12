package claw

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK         = "ok"
	outcomeError      = "error"
	outcomeParseError = "parse_error"
)

// Metrics holds the agent's Prometheus collectors. All methods are safe on
// a nil receiver.
type Metrics struct {
	providerRequests *prometheus.CounterVec
	toolCalls        *prometheus.CounterVec
	scriptsStarted   prometheus.Counter
	recursionLimit   prometheus.Counter
	turnDuration     prometheus.Histogram
}

// NewMetrics registers the agent collectors with registry. A nil registry
// returns nil, which disables metrics.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		providerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "microclaw_provider_requests_total",
				Help: "Total number of provider calls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "microclaw_tool_calls_total",
				Help: "Total number of tool dispatches by tool name",
			},
			[]string{"tool"},
		),
		scriptsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "microclaw_scripts_started_total",
				Help: "Total number of scripts started in the background",
			},
		),
		recursionLimit: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "microclaw_recursion_limit_total",
				Help: "Total number of turns stopped by the depth guard",
			},
		),
		turnDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "microclaw_turn_duration_seconds",
				Help:    "Duration of top-level agent turns",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(
		m.providerRequests,
		m.toolCalls,
		m.scriptsStarted,
		m.recursionLimit,
		m.turnDuration,
	)
	return m
}

func (m *Metrics) ProviderRequest(provider, outcome string) {
	if m != nil && m.providerRequests != nil {
		m.providerRequests.WithLabelValues(provider, outcome).Inc()
	}
}

func (m *Metrics) ToolCall(tool string) {
	if m != nil && m.toolCalls != nil {
		m.toolCalls.WithLabelValues(tool).Inc()
	}
}

func (m *Metrics) ScriptStarted() {
	if m != nil && m.scriptsStarted != nil {
		m.scriptsStarted.Inc()
	}
}

func (m *Metrics) RecursionExhausted() {
	if m != nil && m.recursionLimit != nil {
		m.recursionLimit.Inc()
	}
}

func (m *Metrics) ObserveTurn(d time.Duration) {
	if m != nil && m.turnDuration != nil {
		m.turnDuration.Observe(d.Seconds())
	}
}
