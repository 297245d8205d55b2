package pipeline

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/waypointcast/tourguide/observability"
)

// Worker produces one Candidate for one Point. Concrete implementations
// live in package workers; Produce should do the actual content-generation
// work (call an API, render a template, run a model) and return a
// *TransientError for failures worth retrying.
type Worker interface {
	Kind() WorkerKind
	Produce(ctx context.Context, p Point) (Candidate, error)
}

// WorkerRunner wraps a Worker with a retry/backoff/cancellation contract
// and submits exactly one outcome per Point to a SmartQueue. It follows a
// check/apply/final-check retry loop, generalized from Kubernetes
// reconciliation to content-worker retries.
type WorkerRunner struct {
	Worker     Worker
	Classifier ErrorClassifier
	Retry      RetryConfig
	Clock      Clock
}

// NewWorkerRunner builds a runner with DefaultClassifier if classifier is
// nil.
func NewWorkerRunner(w Worker, classifier ErrorClassifier, retry RetryConfig, clk Clock) *WorkerRunner {
	if classifier == nil {
		classifier = DefaultClassifier{}
	}
	return &WorkerRunner{Worker: w, Classifier: classifier, Retry: retry, Clock: clk}
}

// Execute drives Produce to completion, submits exactly one outcome to
// queue, and returns that same outcome so the caller can feed a worker
// health circuit breaker without re-reading the queue. It never panics the
// caller's goroutine into oblivion — callers are expected to recover
// around the goroutine that invokes it.
func (r *WorkerRunner) Execute(ctx context.Context, p Point, queue *SmartQueue) WorkerOutcome {
	kind := r.Worker.Kind()
	attempts := r.Retry.MaxAttempts + 1

	submit := func(o WorkerOutcome, metric string) WorkerOutcome {
		queue.Submit(o)
		observability.WorkerAttempts.WithLabelValues(string(kind), metric).Inc()
		return o
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return submit(FailureOutcome(kind, "cancelled"), "cancelled")
		}

		cand, err := r.Worker.Produce(ctx, p)
		if err == nil {
			return submit(SuccessOutcome(kind, cand), "success")
		}
		lastErr = err

		if !r.Classifier.IsTransient(err) {
			return submit(FailureOutcome(kind, lastErr.Error()), "terminal")
		}
		if attempt == attempts-1 {
			return submit(FailureOutcome(kind, lastErr.Error()), "terminal")
		}
		observability.WorkerAttempts.WithLabelValues(string(kind), "transient").Inc()

		sleep := r.backoff(attempt)
		observability.WorkerRetryDelay.WithLabelValues(string(kind)).Observe(sleep.Seconds())
		select {
		case <-r.Clock.After(sleep):
		case <-ctx.Done():
			return submit(FailureOutcome(kind, "cancelled"), "cancelled")
		}
	}

	// Unreachable: the loop above always returns by its last iteration.
	return submit(FailureOutcome(kind, lastErr.Error()), "terminal")
}

// backoff computes min(base * backoffBase^attempt * (1 + jitter), maxDelay),
// drawing jitter from the package-level math/rand source (safe for
// concurrent use across runners).
func (r *WorkerRunner) backoff(attempt int) time.Duration {
	raw := float64(r.Retry.BaseDelay) * math.Pow(r.Retry.BackoffBase, float64(attempt))
	jitter := 1 + rand.Float64()*r.Retry.JitterFraction
	withJitter := raw * jitter
	if withJitter > float64(r.Retry.MaxDelay) {
		withJitter = float64(r.Retry.MaxDelay)
	}
	return time.Duration(withJitter)
}
