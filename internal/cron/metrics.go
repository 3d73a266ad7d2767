package cron

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chunksReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "engram",
		Subsystem: "cron",
		Name:      "chunks_reaped_total",
		Help:      "Expired memory chunks deleted by the reaper job.",
	})

	archivePrunedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "engram",
		Subsystem: "cron",
		Name:      "archive_pruned_total",
		Help:      "Archive entries deleted by the retention job.",
	})
)
