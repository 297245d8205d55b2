package pipeline

import (
	"context"
	"testing"
	"time"

	testingclock "k8s.io/utils/clock/testing"
)

type instantWorker struct {
	kind WorkerKind
}

func (w instantWorker) Kind() WorkerKind { return w.kind }

func (w instantWorker) Produce(ctx context.Context, p Point) (Candidate, error) {
	return Candidate{Kind: w.kind, Title: string(w.kind) + "-" + p.Key, Body: "body for " + p.Key}, nil
}

func blockingWorker(kind WorkerKind, release <-chan struct{}) *stallingWorker {
	return &stallingWorker{kind: kind, release: release}
}

type stallingWorker struct {
	kind    WorkerKind
	release <-chan struct{}
}

func (w *stallingWorker) Kind() WorkerKind { return w.kind }

func (w *stallingWorker) Produce(ctx context.Context, p Point) (Candidate, error) {
	select {
	case <-w.release:
		return Candidate{Kind: w.kind, Title: "late"}, nil
	case <-ctx.Done():
		return Candidate{}, ctx.Err()
	}
}

func buildOrchestrator(t *testing.T, clk Clock, registry map[WorkerKind]*WorkerRunner, collector *Collector) *Orchestrator {
	t.Helper()
	return NewOrchestrator(registry, int64(len(registry)*4), nil, nil, NewJudge(DefaultJudgeConfig()), collector, clk)
}

func TestSchedulerBatchModeCommitsAllPointsInSequenceOrder(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Unix(0, 0))
	kinds := []WorkerKind{KindVisual, KindAudio, KindTextual}

	registry := map[WorkerKind]*WorkerRunner{
		KindVisual:  NewWorkerRunner(instantWorker{KindVisual}, nil, DefaultRetryConfig(), clk),
		KindAudio:   NewWorkerRunner(instantWorker{KindAudio}, nil, DefaultRetryConfig(), clk),
		KindTextual: NewWorkerRunner(instantWorker{KindTextual}, nil, DefaultRetryConfig(), clk),
	}

	sink := &recordingSink{}
	collector := NewCollector(sink)
	orch := buildOrchestrator(t, clk, registry, collector)

	cfg, err := NewCoreConfig(kinds, 5*time.Second, 10*time.Second)
	if err != nil {
		t.Fatalf("NewCoreConfig: %v", err)
	}

	points := []Point{{Key: "p1", Name: "A"}, {Key: "p2", Name: "B"}, {Key: "p3", Name: "C"}}
	source := NewSlicePointSource(points)
	sched := NewScheduler(cfg, source, orch, nil, clk)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sched.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := collector.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len(snapshot) = %d, want 3", len(snap))
	}
	for i, e := range snap {
		if e.Point.Seq != int64(i+1) {
			t.Fatalf("snapshot[%d].Point.Seq = %d, want %d", i, e.Point.Seq, i+1)
		}
		if e.Decision.Status != StatusComplete {
			t.Fatalf("snapshot[%d].Decision.Status = %v, want COMPLETE", i, e.Decision.Status)
		}
	}
}

func TestSchedulerContextCancelCancelsInFlightQueues(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Unix(0, 0))
	kinds := []WorkerKind{KindVisual}
	release := make(chan struct{}) // never closed: the worker would hang forever without cancellation

	registry := map[WorkerKind]*WorkerRunner{
		KindVisual: NewWorkerRunner(blockingWorker(KindVisual, release), nil, DefaultRetryConfig(), clk),
	}

	collector := NewCollector()
	orch := buildOrchestrator(t, clk, registry, collector)

	cfg, err := NewCoreConfig(kinds, 30*time.Second, 60*time.Second)
	if err != nil {
		t.Fatalf("NewCoreConfig: %v", err)
	}

	source := NewSlicePointSource([]Point{{Key: "p1", Name: "A"}})
	sched := NewScheduler(cfg, source, orch, nil, clk)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	// Give the orchestrator goroutine a moment to launch the worker and
	// block inside Produce, then cancel: the Smart Queue should finalize
	// immediately rather than waiting out the 60s hard deadline.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Scheduler.Run did not return promptly after cancellation")
	}

	snap := collector.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("len(snapshot) = %d, want 1", len(snap))
	}
	if snap[0].Decision.Status == StatusComplete {
		t.Fatalf("status = %v, want a degraded/failed status after forced cancellation", snap[0].Decision.Status)
	}
}

func TestSchedulerShutdownDrainsInFlightQueueThenReturns(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Unix(0, 0))
	kinds := []WorkerKind{KindVisual}
	release := make(chan struct{}) // never closed: the worker would hang forever without Shutdown

	registry := map[WorkerKind]*WorkerRunner{
		KindVisual: NewWorkerRunner(blockingWorker(KindVisual, release), nil, DefaultRetryConfig(), clk),
	}

	collector := NewCollector()
	orch := buildOrchestrator(t, clk, registry, collector)

	cfg, err := NewCoreConfig(kinds, 30*time.Second, 60*time.Second)
	if err != nil {
		t.Fatalf("NewCoreConfig: %v", err)
	}

	source := NewSlicePointSource([]Point{{Key: "p1", Name: "A"}})
	sched := NewScheduler(cfg, source, orch, nil, clk)

	runDone := make(chan error, 1)
	go func() { runDone <- sched.Run(context.Background()) }()

	// Give the orchestrator goroutine a moment to launch the worker and
	// block inside Produce before asking for a graceful shutdown.
	time.Sleep(20 * time.Millisecond)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	if err := sched.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Scheduler.Run did not return promptly after Shutdown")
	}

	snap := collector.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("len(snapshot) = %d, want 1 (Shutdown must drain the in-flight Point before returning)", len(snap))
	}
	if snap[0].Decision.Status == StatusComplete {
		t.Fatalf("status = %v, want a degraded/failed status after a forced shutdown", snap[0].Decision.Status)
	}
}

func TestSchedulerStreamingModePacesEmission(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Unix(0, 0))
	kinds := []WorkerKind{KindVisual}

	registry := map[WorkerKind]*WorkerRunner{
		KindVisual: NewWorkerRunner(instantWorker{KindVisual}, nil, DefaultRetryConfig(), clk),
	}
	collector := NewCollector()
	orch := buildOrchestrator(t, clk, registry, collector)

	cfg, err := NewCoreConfig(kinds, 5*time.Second, 10*time.Second, WithSchedulerMode(ModeStreaming, 1*time.Second))
	if err != nil {
		t.Fatalf("NewCoreConfig: %v", err)
	}

	points := []Point{{Key: "p1"}, {Key: "p2"}}
	source := NewSlicePointSource(points)
	sched := NewScheduler(cfg, source, orch, nil, clk)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	for i := 0; i < 10; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(collector.Snapshot()) != 2 {
				t.Fatalf("len(snapshot) = %d, want 2", len(collector.Snapshot()))
			}
			return
		case <-time.After(10 * time.Millisecond):
			clk.Step(1 * time.Second)
		}
	}
	t.Fatal("streaming run never completed")
}
