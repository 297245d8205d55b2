package pipeline

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/waypointcast/tourguide/observability"
	"github.com/waypointcast/tourguide/resilience"
)

// Orchestrator runs one Point through fan-out, collection, and judging. A
// single Orchestrator is shared across every Point a Scheduler emits: the
// worker-task pool (a weighted semaphore) and the per-kind circuit
// breakers are the shared resources; everything else below is Point-local.
type Orchestrator struct {
	registry  map[WorkerKind]*WorkerRunner
	pool      *semaphore.Weighted
	limiter   *KindLimiter
	breakers  map[WorkerKind]*resilience.CircuitBreaker
	judge     *Judge
	collector *Collector
	clk       Clock
}

// NewOrchestrator builds an Orchestrator. limiter and breakers may be nil
// to opt out of rate limiting and worker-health circuit breaking
// respectively.
func NewOrchestrator(
	registry map[WorkerKind]*WorkerRunner,
	poolSize int64,
	limiter *KindLimiter,
	breakers map[WorkerKind]*resilience.CircuitBreaker,
	judge *Judge,
	collector *Collector,
	clk Clock,
) *Orchestrator {
	return &Orchestrator{
		registry:  registry,
		pool:      semaphore.NewWeighted(poolSize),
		limiter:   limiter,
		breakers:  breakers,
		judge:     judge,
		collector: collector,
		clk:       clk,
	}
}

// Process fans a Point out to every configured worker kind, waits on the
// resulting Smart Queue, judges the survivors against profile, and commits
// the decision to the Collector. It returns once the decision has been
// committed.
func (o *Orchestrator) Process(ctx context.Context, cfg CoreConfig, p Point, profile Profile) {
	started := o.clk.Now()
	queue := NewSmartQueue(o.clk, cfg.Kinds, cfg.SoftDeadline, cfg.HardDeadline, cfg.SoftMinimum, cfg.HardMinimum)

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			queue.Cancel()
		case <-stopWatch:
		}
	}()

	for _, kind := range cfg.Kinds {
		runner, ok := o.registry[kind]
		if !ok {
			queue.Submit(FailureOutcome(kind, "no worker registered"))
			continue
		}
		breaker, hasBreaker := o.breakers[kind]
		if hasBreaker && !breaker.Allow() {
			queue.Submit(FailureOutcome(kind, "circuit-open"))
			continue
		}
		go o.runOne(ctx, runner, breaker, kind, p, queue)
	}

	results, status, _ := queue.Await()

	candidates := make([]Candidate, 0, len(results))
	for _, c := range results {
		candidates = append(candidates, c)
	}

	decision := o.judge.Decide(p, candidates, profile, status)
	o.collector.Commit(p, decision)
	observability.PointLatency.Observe(o.clk.Since(started).Seconds())
}

// runOne rate-limits, pool-bounds, and runs a single worker kind's task,
// then feeds the outcome into that kind's circuit breaker if one is
// configured.
func (o *Orchestrator) runOne(ctx context.Context, runner *WorkerRunner, breaker *resilience.CircuitBreaker, kind WorkerKind, p Point, queue *SmartQueue) {
	if err := o.limiter.Wait(ctx, kind); err != nil {
		queue.Submit(FailureOutcome(kind, "rate-limited: "+err.Error()))
		return
	}
	if err := o.pool.Acquire(ctx, 1); err != nil {
		queue.Submit(FailureOutcome(kind, "pool-exhausted: "+err.Error()))
		return
	}
	defer o.pool.Release(1)

	outcome := runner.Execute(ctx, p, queue)
	if breaker == nil {
		return
	}
	if outcome.Success {
		breaker.RecordSuccess()
	} else {
		breaker.RecordFailure()
	}
}
