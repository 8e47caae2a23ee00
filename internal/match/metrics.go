package match

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	outcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turumi_reconcile_outcomes_total",
			Help: "Reconciliation outcomes by kind",
		},
		[]string{"kind"},
	)

	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turumi_reconcile_errors_total",
			Help: "Reconciliation failures by error kind",
		},
		[]string{"kind"},
	)

	shapeFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "turumi_create_shape_fallbacks_total",
			Help: "Create requests retried with the target-only payload",
		},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turumi_match_request_duration_seconds",
			Help:    "Latency of match store requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "result"},
	)

	watchEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turumi_watch_events_total",
			Help: "Events emitted by the match watcher",
		},
		[]string{"type"},
	)

	watchErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "turumi_watch_errors_total",
			Help: "Watcher polls that failed",
		},
	)
)

func recordOutcome(kind OutcomeKind) {
	outcomesTotal.WithLabelValues(kind.String()).Inc()
}

func recordError(err error) {
	errorsTotal.WithLabelValues(kindLabel(err)).Inc()
}

func recordRequest(op string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = kindLabel(err)
	}
	requestDuration.WithLabelValues(op, result).Observe(d.Seconds())
}
