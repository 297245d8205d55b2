package pipeline

import (
	"reflect"
	"sync"
	"testing"
)

type recordingSink struct {
	mu   sync.Mutex
	seen []Entry
}

func (s *recordingSink) Observe(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, e)
}

func (s *recordingSink) seqOrder() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.seen))
	for i, e := range s.seen {
		out[i] = e.Point.Seq
	}
	return out
}

func TestCollectorFlushesOutOfOrderCommitsInSequence(t *testing.T) {
	sink := &recordingSink{}
	c := NewCollector(sink)

	c.Commit(Point{Key: "p3", Seq: 3}, Decision{PointKey: "p3"})
	c.Commit(Point{Key: "p1", Seq: 1}, Decision{PointKey: "p1"})

	if got := sink.seqOrder(); !reflect.DeepEqual(got, []int64{1}) {
		t.Fatalf("seqOrder after p3,p1 = %v, want [1] (p3 still buffered behind missing seq 2)", got)
	}
	if c.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", c.Pending())
	}

	c.Commit(Point{Key: "p2", Seq: 2}, Decision{PointKey: "p2"})

	if got := sink.seqOrder(); !reflect.DeepEqual(got, []int64{1, 2, 3}) {
		t.Fatalf("seqOrder after p2 = %v, want [1 2 3]", got)
	}
	if c.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0", c.Pending())
	}
}

func TestCollectorSnapshotReflectsReleasedOrder(t *testing.T) {
	c := NewCollector()
	c.Commit(Point{Key: "p2", Seq: 2}, Decision{PointKey: "p2"})
	c.Commit(Point{Key: "p1", Seq: 1}, Decision{PointKey: "p1"})

	snap := c.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("len(snapshot) = %d, want 2", len(snap))
	}
	if snap[0].Point.Key != "p1" || snap[1].Point.Key != "p2" {
		t.Fatalf("snapshot order = [%s %s], want [p1 p2]", snap[0].Point.Key, snap[1].Point.Key)
	}
}

func TestCollectorSnapshotOmitsEntriesStillWaitingOnAGap(t *testing.T) {
	c := NewCollector()
	c.Commit(Point{Key: "p2", Seq: 2}, Decision{PointKey: "p2"})

	if got := c.Snapshot(); len(got) != 0 {
		t.Fatalf("snapshot = %+v, want empty (seq 1 never arrived)", got)
	}
}
