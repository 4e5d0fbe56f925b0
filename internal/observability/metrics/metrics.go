// Package metrics provides Prometheus metrics for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hotseat"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter

	TurnsSubmitted    prometheus.Counter
	TurnsFailed       prometheus.Counter
	SubmissionSeconds prometheus.Histogram

	FragmentsPartial prometheus.Counter
	FragmentsFinal   prometheus.Counter

	RecognizerRestarts prometheus.Counter
	SynthesisCancelled prometheus.Counter
}

// New creates and registers all metrics against the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live interview sessions",
		}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total interview sessions created",
		}),
		TurnsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_submitted_total",
			Help:      "Turns sent to the interview service",
		}),
		TurnsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_failed_total",
			Help:      "Turn submissions that ended in an error",
		}),
		SubmissionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_duration_seconds",
			Help:      "Latency of interview service exchanges",
			Buckets:   prometheus.DefBuckets,
		}),
		FragmentsPartial: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_partial_total",
			Help:      "Interim recognition fragments received",
		}),
		FragmentsFinal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_final_total",
			Help:      "Final recognition fragments received",
		}),
		RecognizerRestarts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognizer_restarts_total",
			Help:      "Recognition sessions restarted after ending unexpectedly",
		}),
		SynthesisCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_cancelled_total",
			Help:      "Speech syntheses cancelled before completion",
		}),
	}
}
