package cascade

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// #region metrics
// Metrics are the cascade's prometheus collectors.
type Metrics struct {
	Resolutions *prometheus.CounterVec // by source
	Stages      *prometheus.CounterVec // by stage and outcome
	Escalations *prometheus.CounterVec // by outcome
	Learned     prometheus.Counter
	Shared      prometheus.Counter // callers that joined an in-flight resolution
	Latency     prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_resolutions_total",
			Help: "Resolved requests by the source that answered them.",
		}, []string{"source"}),
		Stages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_stage_total",
			Help: "Cascade stage outcomes.",
		}, []string{"stage", "outcome"}),
		Escalations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_escalations_total",
			Help: "Escalation calls by outcome.",
		}, []string{"outcome"}),
		Learned: f.NewCounter(prometheus.CounterOpts{
			Name: "oracle_learned_total",
			Help: "Escalated chains written back into the index.",
		}),
		Shared: f.NewCounter(prometheus.CounterOpts{
			Name: "oracle_inflight_shared_total",
			Help: "Resolutions answered by joining an identical in-flight request.",
		}),
		Latency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "oracle_resolution_seconds",
			Help:    "End-to-end resolution latency.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
	}
}

// #endregion metrics
