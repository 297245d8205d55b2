package pipeline

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/waypointcast/tourguide/observability"
)

// KindLimiter throttles how often the Orchestrator is willing to launch a
// worker task for a given WorkerKind, independent of that worker's own
// retry/backoff. Each kind gets its own token bucket, to protect the
// upstream API a kind's worker wraps (e.g. a YouTube or LLM quota) from a
// burst of points scheduled in quick succession.
type KindLimiter struct {
	mu       sync.Mutex
	limiters map[WorkerKind]*rate.Limiter
	r        rate.Limit
	b        int
}

// NewKindLimiter creates a limiter allowing r invocations/second per kind
// with burst b. A nil *KindLimiter is treated as "unlimited" by Wait.
func NewKindLimiter(r float64, b int) *KindLimiter {
	return &KindLimiter{
		limiters: make(map[WorkerKind]*rate.Limiter),
		r:        rate.Limit(r),
		b:        b,
	}
}

func (l *KindLimiter) limiterFor(kind WorkerKind) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[kind]
	if !ok {
		lim = rate.NewLimiter(l.r, l.b)
		l.limiters[kind] = lim
	}
	return lim
}

// Wait blocks until kind's bucket has a token or ctx is done. A nil
// receiver never blocks, so callers may leave rate limiting unconfigured.
func (l *KindLimiter) Wait(ctx context.Context, kind WorkerKind) error {
	if l == nil {
		return nil
	}
	if err := l.limiterFor(kind).Wait(ctx); err != nil {
		observability.RateLimitRejections.WithLabelValues(string(kind)).Inc()
		return err
	}
	return nil
}
