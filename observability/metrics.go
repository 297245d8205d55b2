// Package observability holds the Prometheus metrics every pipeline
// component publishes through: one promauto var block, one metric per
// concern.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueOutcomes tracks how Smart Queues terminate, by status.
	QueueOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tourguide_queue_outcomes_total",
		Help: "Smart Queue terminations by resulting status",
	}, []string{"status"})

	// QueueSuccessCount tracks how many worker kinds reported successfully
	// by the time a queue terminated.
	QueueSuccessCount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tourguide_queue_success_count",
		Help:    "Number of worker kinds that succeeded before a queue terminated",
		Buckets: prometheus.LinearBuckets(0, 1, 6),
	})

	// WorkerAttempts tracks every Produce call by kind and outcome.
	WorkerAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tourguide_worker_attempts_total",
		Help: "Worker produce attempts by kind and outcome",
	}, []string{"kind", "outcome"}) // outcome: success, transient, terminal, cancelled

	// WorkerRetryDelay tracks the backoff duration chosen before a retry.
	WorkerRetryDelay = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tourguide_worker_retry_delay_seconds",
		Help:    "Backoff delay chosen before a worker retry",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
	}, []string{"kind"})

	// CircuitState tracks each worker kind's circuit breaker state
	// (0=closed, 1=half_open, 2=open).
	CircuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tourguide_worker_circuit_state",
		Help: "Current circuit breaker state per worker kind",
	}, []string{"kind"})

	// RateLimitRejections tracks how often a kind's rate limiter context
	// expired before a token became available.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tourguide_rate_limit_rejections_total",
		Help: "Worker launches abandoned while waiting on a kind's rate limiter",
	}, []string{"kind"})

	// JudgeScore tracks the winning candidate's final score distribution.
	JudgeScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tourguide_judge_winner_score",
		Help:    "Final rubric score of the Judge's chosen winner",
		Buckets: prometheus.LinearBuckets(0, 1, 11),
	})

	// JudgeNoWinner tracks Points for which the Judge produced no winner,
	// by reason.
	JudgeNoWinner = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tourguide_judge_no_winner_total",
		Help: "Points for which the Judge selected no winner",
	}, []string{"reason"}) // reason: queue-failed, no-eligible-candidate

	// CollectorPending tracks how many decisions are buffered waiting on an
	// earlier sequence number.
	CollectorPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tourguide_collector_pending",
		Help: "Decisions buffered in the Collector waiting on an earlier point",
	})

	// PointLatency tracks wall-clock time from a Point's emission to its
	// decision being committed.
	PointLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tourguide_point_latency_seconds",
		Help:    "Time from Point emission to Collector commit",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)
