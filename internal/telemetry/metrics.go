// Package telemetry holds the Prometheus instrumentation for the engine.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the registry of engine-level Prometheus collectors.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	ProviderCalls   *prometheus.CounterVec
	StreamsActive   prometheus.Gauge
	StreamEvents    *prometheus.CounterVec
	LiveSessions    prometheus.Gauge
	LiveUpdatesSent prometheus.Counter
}

// NewMetrics creates all collectors and registers them with reg. A nil
// reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratrun_runs_total",
				Help: "Total strategy runs by strategy key and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stratrun_run_duration_seconds",
				Help:    "Strategy run duration in seconds, provider fetch included",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"strategy"},
		),
		ProviderCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratrun_provider_calls_total",
				Help: "Market-data provider calls by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		StreamsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stratrun_streams_active",
				Help: "Currently open SSE execution streams",
			},
		),
		StreamEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratrun_stream_events_total",
				Help: "SSE events emitted by event name",
			},
			[]string{"event"},
		),
		LiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stratrun_live_sessions",
				Help: "Currently connected live-price WebSocket sessions",
			},
		),
		LiveUpdatesSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stratrun_live_updates_sent_total",
				Help: "Price updates pushed over live WebSocket sessions",
			},
		),
	}
	reg.MustRegister(
		m.RunsTotal, m.RunDuration, m.ProviderCalls,
		m.StreamsActive, m.StreamEvents,
		m.LiveSessions, m.LiveUpdatesSent,
	)
	return m
}
