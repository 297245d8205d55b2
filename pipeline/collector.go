package pipeline

import (
	"sync"

	"github.com/waypointcast/tourguide/observability"
)

// Entry pairs a Decision with the Point it was made for, in the order the
// Scheduler assigned.
type Entry struct {
	Point    Point
	Decision Decision
}

// DecisionSink observes committed decisions in playlist order. Sinks must
// not block the Collector for long; slow fan-out (a network publish) is
// the sink's own responsibility to make asynchronous.
type DecisionSink interface {
	Observe(e Entry)
}

// Collector buffers Decisions keyed by the Point's Seq and releases them
// to its sinks strictly in sequence order, even though Orchestrators
// finish Points out of order. It is an append-only, mutex-protected log
// with an out-of-order reorder buffer in front of it.
type Collector struct {
	mu      sync.Mutex
	pending map[int64]Entry
	nextSeq int64
	ordered []Entry
	sinks   []DecisionSink
}

// NewCollector creates a Collector that starts releasing from seq 1 and
// notifies sinks, in order, as entries arrive and gaps close.
func NewCollector(sinks ...DecisionSink) *Collector {
	return &Collector{
		pending: make(map[int64]Entry),
		nextSeq: 1,
		sinks:   sinks,
	}
}

// Commit records the decision for a Point and flushes as many
// now-contiguous entries as are available, in order.
func (c *Collector) Commit(p Point, d Decision) {
	c.mu.Lock()
	c.pending[p.Seq] = Entry{Point: p, Decision: d}

	var flushed []Entry
	for {
		e, ok := c.pending[c.nextSeq]
		if !ok {
			break
		}
		delete(c.pending, c.nextSeq)
		c.ordered = append(c.ordered, e)
		flushed = append(flushed, e)
		c.nextSeq++
	}
	sinks := c.sinks
	pending := len(c.pending)
	c.mu.Unlock()

	observability.CollectorPending.Set(float64(pending))
	for _, e := range flushed {
		for _, sink := range sinks {
			sink.Observe(e)
		}
	}
}

// Snapshot returns a copy of every entry released so far, in playlist
// order. Entries still waiting on an earlier Seq (e.g. a Point whose
// orchestration never completed before shutdown) are not included.
func (c *Collector) Snapshot() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Pending reports how many commits are buffered waiting on an earlier Seq,
// for observability.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
