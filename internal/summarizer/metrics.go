package summarizer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcome labels.
const (
	outcomeSuccess  = "success"
	outcomeFailure  = "failure"
	outcomeConflict = "conflict"
	outcomeNoop     = "noop"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "engram",
		Subsystem: "summarizer",
		Name:      "runs_total",
		Help:      "Summarizer runs by outcome.",
	}, []string{"outcome"})

	coalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "engram",
		Subsystem: "summarizer",
		Name:      "coalesced_triggers_total",
		Help:      "Triggers dropped because a run was already in flight.",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "engram",
		Subsystem: "summarizer",
		Name:      "run_duration_seconds",
		Help:      "Wall time of successful summarizer runs.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)
