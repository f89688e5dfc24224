package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apilogs_calls_total",
		Help: "Captured HTTP calls by direction and outcome",
	}, []string{"direction", "outcome"})

	FinalizeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apilogs_finalize_total",
		Help: "Call finalizations by outcome",
	}, []string{"outcome"})

	DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apilogs_dispatch_total",
		Help: "Channel emissions by channel and status",
	}, []string{"channel", "status"})

	LookupMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apilogs_lookup_misses_total",
		Help: "Tracked entities that no longer existed at finalization",
	}, []string{"entity_type"})

	QueueDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apilogs_queue_dropped_total",
		Help: "Completions dropped because the worker queue was full",
	})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "apilogs_latency_seconds",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)

// Finalize outcomes.
const (
	OutcomeOK            = "ok"
	OutcomePartial       = "partial"
	OutcomePersistFailed = "persist_failed"
	OutcomeDropped       = "dropped"
)
