package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	testingclock "k8s.io/utils/clock/testing"
)

type fakeWorker struct {
	kind    WorkerKind
	results []struct {
		cand Candidate
		err  error
	}
	calls int
}

func (w *fakeWorker) Kind() WorkerKind { return w.kind }

func (w *fakeWorker) Produce(ctx context.Context, p Point) (Candidate, error) {
	r := w.results[w.calls]
	w.calls++
	return r.cand, r.err
}

func newFakeWorker(kind WorkerKind) *fakeWorker { return &fakeWorker{kind: kind} }

func TestWorkerRunnerSucceedsFirstTry(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Unix(0, 0))
	w := newFakeWorker(KindAudio)
	w.results = append(w.results, struct {
		cand Candidate
		err  error
	}{cand: Candidate{Title: "ok"}, err: nil})

	runner := NewWorkerRunner(w, nil, DefaultRetryConfig(), clk)
	queue := NewSmartQueue(clk, []WorkerKind{KindAudio}, 5*time.Second, 10*time.Second, 1, 1)

	outcome := runner.Execute(context.Background(), Point{Key: "p1"}, queue)
	if !outcome.Success || outcome.Candidate.Title != "ok" {
		t.Fatalf("outcome = %+v, want success with title ok", outcome)
	}
	if w.calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry needed)", w.calls)
	}
}

func TestWorkerRunnerRetriesTransientThenSucceeds(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Unix(0, 0))
	w := newFakeWorker(KindAudio)
	transient := func() error { return &TransientError{Err: errors.New("upstream busy")} }
	w.results = []struct {
		cand Candidate
		err  error
	}{
		{err: transient()},
		{err: transient()},
		{cand: Candidate{Title: "ok"}},
	}

	retry := DefaultRetryConfig()
	retry.BaseDelay = 10 * time.Millisecond
	retry.JitterFraction = 0
	runner := NewWorkerRunner(w, nil, retry, clk)
	queue := NewSmartQueue(clk, []WorkerKind{KindAudio}, 5*time.Second, 10*time.Second, 1, 1)

	done := make(chan WorkerOutcome, 1)
	go func() {
		done <- runner.Execute(context.Background(), Point{Key: "p1"}, queue)
	}()

	// Advance the fake clock past each backoff sleep until the runner
	// finishes; real time between steps gives the runner goroutine a
	// chance to register its next clk.After call.
	var outcome WorkerOutcome
	for i := 0; i < 5; i++ {
		select {
		case outcome = <-done:
			if !outcome.Success {
				t.Fatalf("outcome = %+v, want success", outcome)
			}
			if w.calls != 3 {
				t.Fatalf("calls = %d, want 3 (2 transient failures then success)", w.calls)
			}
			return
		case <-time.After(20 * time.Millisecond):
			clk.Step(1 * time.Second)
		}
	}
	t.Fatal("runner never completed")
}

func TestWorkerRunnerTerminalErrorDoesNotRetry(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Unix(0, 0))
	w := newFakeWorker(KindAudio)
	w.results = append(w.results, struct {
		cand Candidate
		err  error
	}{err: errors.New("not found")})

	runner := NewWorkerRunner(w, nil, DefaultRetryConfig(), clk)
	queue := NewSmartQueue(clk, []WorkerKind{KindAudio}, 5*time.Second, 10*time.Second, 1, 1)

	outcome := runner.Execute(context.Background(), Point{Key: "p1"}, queue)
	if outcome.Success {
		t.Fatal("expected failure outcome for a terminal error")
	}
	if w.calls != 1 {
		t.Fatalf("calls = %d, want 1 (terminal errors do not retry)", w.calls)
	}
}

func TestWorkerRunnerExhaustsRetriesThenFails(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Unix(0, 0))
	w := newFakeWorker(KindAudio)
	for i := 0; i < 4; i++ {
		w.results = append(w.results, struct {
			cand Candidate
			err  error
		}{err: &TransientError{Err: errors.New("busy")}})
	}

	retry := DefaultRetryConfig()
	retry.BaseDelay = 5 * time.Millisecond
	retry.JitterFraction = 0
	runner := NewWorkerRunner(w, nil, retry, clk)
	queue := NewSmartQueue(clk, []WorkerKind{KindAudio}, 5*time.Second, 10*time.Second, 1, 1)

	done := make(chan WorkerOutcome, 1)
	go func() {
		done <- runner.Execute(context.Background(), Point{Key: "p1"}, queue)
	}()

	var outcome WorkerOutcome
	for i := 0; i < 10; i++ {
		select {
		case outcome = <-done:
			if outcome.Success {
				t.Fatal("expected failure after exhausting retries")
			}
			if w.calls != retry.MaxAttempts+1 {
				t.Fatalf("calls = %d, want %d (initial attempt + MaxAttempts retries)", w.calls, retry.MaxAttempts+1)
			}
			return
		case <-time.After(20 * time.Millisecond):
			clk.Step(1 * time.Second)
		}
	}
	t.Fatal("runner never completed")
}

func TestWorkerRunnerCancelledContextStopsPromptly(t *testing.T) {
	clk := testingclock.NewFakeClock(time.Unix(0, 0))
	w := newFakeWorker(KindAudio)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewWorkerRunner(w, nil, DefaultRetryConfig(), clk)
	queue := NewSmartQueue(clk, []WorkerKind{KindAudio}, 5*time.Second, 10*time.Second, 1, 1)

	outcome := runner.Execute(ctx, Point{Key: "p1"}, queue)
	if outcome.Success || outcome.Reason != "cancelled" {
		t.Fatalf("outcome = %+v, want failure with reason cancelled", outcome)
	}
	if w.calls != 0 {
		t.Fatalf("calls = %d, want 0 (produce should never run against a cancelled context)", w.calls)
	}
}
