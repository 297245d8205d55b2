package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
)

// PointSource feeds the Scheduler one Point at a time. Next returns
// ok=false once the source is exhausted (batch mode) or never, for a
// source that streams indefinitely.
type PointSource interface {
	Next(ctx context.Context) (p Point, ok bool, err error)
}

// SlicePointSource is a PointSource over a fixed, in-memory list of
// Points, the shape a batch run typically uses.
type SlicePointSource struct {
	points []Point
	idx    int
}

// NewSlicePointSource builds a PointSource over points, in order.
func NewSlicePointSource(points []Point) *SlicePointSource {
	return &SlicePointSource{points: points}
}

func (s *SlicePointSource) Next(ctx context.Context) (Point, bool, error) {
	if err := ctx.Err(); err != nil {
		return Point{}, false, err
	}
	if s.idx >= len(s.points) {
		return Point{}, false, nil
	}
	p := s.points[s.idx]
	s.idx++
	return p, true, nil
}

// ProfileSource resolves the Profile to judge against for a given Point.
// Most deployments return the same Profile for every Point in a run; it is
// a function rather than a single value so a per-user or per-route
// Profile lookup can be wired in without changing the Scheduler.
type ProfileSource func(ctx context.Context, p Point) (Profile, error)

// Scheduler drives Points from a PointSource into the Orchestrator, in
// either batch (fire as fast as the shared pool allows) or streaming
// (paced by cfg.Interval) mode, and assigns each Point the sequence number
// the Collector uses to preserve playlist order.
type Scheduler struct {
	cfg          CoreConfig
	source       PointSource
	orchestrator *Orchestrator
	profiles     ProfileSource
	clk          Clock

	seq int64
	wg  sync.WaitGroup

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewScheduler builds a Scheduler. profiles may be nil, in which case
// every Point is judged against pipeline.NewProfile() (no hard
// restrictions, neutral weights).
func NewScheduler(cfg CoreConfig, source PointSource, orchestrator *Orchestrator, profiles ProfileSource, clk Clock) *Scheduler {
	if profiles == nil {
		profiles = func(context.Context, Point) (Profile, error) { return NewProfile(), nil }
	}
	return &Scheduler{cfg: cfg, source: source, orchestrator: orchestrator, profiles: profiles, clk: clk}
}

// Run consumes the PointSource until it is exhausted or ctx is cancelled,
// launching one Orchestrator.Process per Point, and returns once every
// launched Point has been committed. A cancelled ctx aborts future
// emissions and causes in-flight Points' Smart Queues to terminate as if
// their hard deadline had just elapsed (see Orchestrator.Process).
func (s *Scheduler) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	for {
		if runCtx.Err() != nil {
			break
		}
		p, ok, err := s.source.Next(runCtx)
		if err != nil {
			s.wg.Wait()
			return err
		}
		if !ok {
			break
		}
		p.Seq = atomic.AddInt64(&s.seq, 1)

		profile, err := s.profiles(runCtx, p)
		if err != nil {
			profile = NewProfile()
		}

		s.wg.Add(1)
		go func(p Point, profile Profile) {
			defer s.wg.Done()
			s.orchestrator.Process(runCtx, s.cfg, p, profile)
		}(p, profile)

		if s.cfg.SchedulerMode == ModeStreaming {
			select {
			case <-s.clk.After(s.cfg.Interval):
			case <-runCtx.Done():
			}
		}
	}
	s.wg.Wait()
	return runCtx.Err()
}

// Shutdown stops the Scheduler from emitting any Point not already handed
// to the Orchestrator, cancels the context Run is operating under (which
// in turn forces every in-flight Point's Smart Queue to terminate early,
// as if its hard deadline had just elapsed), and then blocks until the
// Collector has received a terminal Decision for every Point already
// emitted. It returns ctx's error if ctx is done before that drain
// completes, and nil once the drain finishes first. Calling Shutdown
// before Run has been started is a no-op beyond waiting on an empty
// WaitGroup.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
