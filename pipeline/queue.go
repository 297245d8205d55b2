package pipeline

import (
	"sync"
	"time"

	"github.com/waypointcast/tourguide/observability"
)

// SmartQueue collects WorkerOutcomes for a single Point and decides, under
// a tiered-timeout policy, when enough of them have arrived to stop
// waiting. It is deliberately simple: one mutex, one condition variable,
// two background timers. There is no heap or priority ordering here — a
// Smart Queue holds at most one outcome per configured WorkerKind and is
// consumed by exactly one awaiter.
type SmartQueue struct {
	mu  sync.Mutex
	cnd *sync.Cond

	clk     Clock
	kinds   map[WorkerKind]struct{}
	n       int
	created time.Time

	softDeadline time.Duration
	hardDeadline time.Duration
	softMin      int
	hardMin      int

	successes map[WorkerKind]Candidate
	failures  map[WorkerKind]string

	forceCancelled bool
	finalized      bool
	finalStatus    QueueStatus
	awaitCalled    bool

	done chan struct{}
}

// NewSmartQueue creates a queue for exactly the given set of kinds. The
// clock's current time at construction is the queue's zero point for both
// deadlines.
func NewSmartQueue(clk Clock, kinds []WorkerKind, softDeadline, hardDeadline time.Duration, softMin, hardMin int) *SmartQueue {
	kindSet := make(map[WorkerKind]struct{}, len(kinds))
	for _, k := range kinds {
		kindSet[k] = struct{}{}
	}
	q := &SmartQueue{
		clk:          clk,
		kinds:        kindSet,
		n:            len(kindSet),
		created:      clk.Now(),
		softDeadline: softDeadline,
		hardDeadline: hardDeadline,
		softMin:      softMin,
		hardMin:      hardMin,
		successes:    make(map[WorkerKind]Candidate, len(kindSet)),
		failures:     make(map[WorkerKind]string, len(kindSet)),
		done:         make(chan struct{}),
	}
	q.cnd = sync.NewCond(&q.mu)
	go q.fireAt(softDeadline)
	go q.fireAt(hardDeadline)
	return q
}

// fireAt wakes the awaiter when d has elapsed on the queue's clock, unless
// the queue has already finalized.
func (q *SmartQueue) fireAt(d time.Duration) {
	select {
	case <-q.clk.After(d):
	case <-q.done:
		return
	}
	q.mu.Lock()
	q.cnd.Broadcast()
	q.mu.Unlock()
}

// Submit records a worker's outcome for kind. It is a no-op (returns
// false) if the queue has already finalized, if an outcome for kind was
// already recorded, or if kind is not part of this queue's configured set.
func (q *SmartQueue) Submit(outcome WorkerOutcome) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.finalized || q.forceCancelled {
		return false
	}
	if _, ok := q.kinds[outcome.Kind]; !ok {
		return false
	}
	if _, ok := q.successes[outcome.Kind]; ok {
		return false
	}
	if _, ok := q.failures[outcome.Kind]; ok {
		return false
	}
	if outcome.Success {
		q.successes[outcome.Kind] = outcome.Candidate
	} else {
		q.failures[outcome.Kind] = outcome.Reason
	}
	q.cnd.Broadcast()
	return true
}

// Cancel forces immediate termination with the status that would have
// resulted had the hard deadline just elapsed with the outcomes recorded
// so far. It is idempotent and safe to call before Await, after Await has
// returned, or concurrently with either.
func (q *SmartQueue) Cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.finalized || q.forceCancelled {
		return
	}
	q.forceCancelled = true
	q.cnd.Broadcast()
}

// Done returns a channel closed once the queue has finalized, for callers
// that want to stop racing the clock once a result exists.
func (q *SmartQueue) Done() <-chan struct{} { return q.done }

// Await blocks until a termination rule fires and returns the successes
// recorded at that point together with the resulting status. Calling
// Await a second time on the same queue returns ErrAwaitCalledTwice.
func (q *SmartQueue) Await() (map[WorkerKind]Candidate, QueueStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.awaitCalled {
		return nil, "", ErrAwaitCalledTwice
	}
	q.awaitCalled = true

	for {
		if !q.finalized {
			if terminal, status := q.evaluateLocked(); terminal {
				q.finalized = true
				q.finalStatus = status
				close(q.done)
				observability.QueueOutcomes.WithLabelValues(string(status)).Inc()
				observability.QueueSuccessCount.Observe(float64(len(q.successes)))
			}
		}
		if q.finalized {
			return q.snapshotLocked(), q.finalStatus, nil
		}
		q.cnd.Wait()
	}
}

// evaluateLocked applies the termination rules in priority order: all
// kinds reported (rule 1) beats the hard deadline (rule 2), which beats
// the soft deadline (rule 3). Must be called with q.mu held.
func (q *SmartQueue) evaluateLocked() (terminal bool, status QueueStatus) {
	s := len(q.successes)
	f := len(q.failures)

	if s+f == q.n {
		return true, ladder(s, q.n, q.softMin, q.hardMin)
	}

	if q.forceCancelled || q.clk.Since(q.created) >= q.hardDeadline {
		if s >= q.hardMin {
			return true, StatusHardDegraded
		}
		return true, StatusFailed
	}

	if q.clk.Since(q.created) >= q.softDeadline && s >= q.softMin {
		return true, StatusSoftDegraded
	}

	return false, ""
}

// ladder resolves the status once every kind has reported (s+f == n).
func ladder(s, n, softMin, hardMin int) QueueStatus {
	switch {
	case s == n:
		return StatusComplete
	case s >= softMin:
		return StatusSoftDegraded
	case s >= hardMin:
		return StatusHardDegraded
	default:
		return StatusFailed
	}
}

func (q *SmartQueue) snapshotLocked() map[WorkerKind]Candidate {
	out := make(map[WorkerKind]Candidate, len(q.successes))
	for k, v := range q.successes {
		out[k] = v
	}
	return out
}
