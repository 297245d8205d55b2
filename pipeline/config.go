package pipeline

import (
	"fmt"
	"math"
	"time"
)

// SchedulerMode selects the Scheduler's pacing strategy.
type SchedulerMode string

const (
	ModeBatch     SchedulerMode = "batch"
	ModeStreaming SchedulerMode = "streaming"
)

// RetryConfig is the Worker base contract's backoff policy.
type RetryConfig struct {
	MaxAttempts    int           // MAX_RETRIES; default 3 (i.e. up to 4 attempts total)
	BaseDelay      time.Duration // default 1s
	BackoffBase    float64       // default 2
	MaxDelay       time.Duration // default 10s
	JitterFraction float64       // default 0.25, applied as [0, fraction]
}

// DefaultRetryConfig returns the baseline retry/backoff defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		BaseDelay:      1 * time.Second,
		BackoffBase:    2,
		MaxDelay:       10 * time.Second,
		JitterFraction: 0.25,
	}
}

// JudgeWeights are the fixed rubric weights the Judge scores against.
// They must sum to 1.0.
type JudgeWeights struct {
	Location   float64
	Profile    float64
	Quality    float64
	Engagement float64
}

// DefaultJudgeWeights returns the baseline rubric weights.
func DefaultJudgeWeights() JudgeWeights {
	return JudgeWeights{Location: 0.30, Profile: 0.25, Quality: 0.25, Engagement: 0.20}
}

func (w JudgeWeights) sum() float64 { return w.Location + w.Profile + w.Quality + w.Engagement }

// CoreConfig is the frozen configuration passed through construction once,
// rather than read from a process-wide singleton. Build one with
// NewCoreConfig, which validates every invariant below and returns a
// configuration error before any point is processed.
type CoreConfig struct {
	Kinds          []WorkerKind
	SoftDeadline   time.Duration // τ_soft
	HardDeadline   time.Duration // τ_hard
	SoftMinimum    int           // k_soft
	HardMinimum    int           // k_hard
	Retry          RetryConfig
	WorkerPoolSize int64 // W
	SchedulerMode  SchedulerMode
	Interval       time.Duration // streaming mode inter-emission delay
	JudgeWeights   JudgeWeights
	KindRateLimit  float64 // per-WorkerKind token bucket refill rate, in tokens/sec
	KindRateBurst  int     // per-WorkerKind token bucket capacity
}

// CoreConfigOption mutates a CoreConfig before validation.
type CoreConfigOption func(*CoreConfig)

// WithRetry overrides the worker retry policy.
func WithRetry(r RetryConfig) CoreConfigOption { return func(c *CoreConfig) { c.Retry = r } }

// WithJudgeWeights overrides the rubric weights.
func WithJudgeWeights(w JudgeWeights) CoreConfigOption {
	return func(c *CoreConfig) { c.JudgeWeights = w }
}

// WithSchedulerMode sets batch vs streaming pacing.
func WithSchedulerMode(mode SchedulerMode, interval time.Duration) CoreConfigOption {
	return func(c *CoreConfig) { c.SchedulerMode = mode; c.Interval = interval }
}

// WithWorkerPoolSize overrides W, the shared worker-task pool size.
func WithWorkerPoolSize(w int64) CoreConfigOption {
	return func(c *CoreConfig) { c.WorkerPoolSize = w }
}

// WithKindRateLimit overrides the per-WorkerKind token bucket used to
// construct a KindLimiter (rate in tokens/sec, burst in tokens).
func WithKindRateLimit(rate float64, burst int) CoreConfigOption {
	return func(c *CoreConfig) { c.KindRateLimit = rate; c.KindRateBurst = burst }
}

// NewCoreConfig assembles and validates a CoreConfig. k_soft defaults to
// ceil(2n/3) and k_hard to 1; the defaults are set before the options run,
// so an option that sets either one to zero fails validation.
func NewCoreConfig(kinds []WorkerKind, softDeadline, hardDeadline time.Duration, opts ...CoreConfigOption) (CoreConfig, error) {
	n := len(kinds)
	cfg := CoreConfig{
		Kinds:          append([]WorkerKind(nil), kinds...),
		SoftDeadline:   softDeadline,
		HardDeadline:   hardDeadline,
		SoftMinimum:    int(math.Ceil(2 * float64(n) / 3)),
		HardMinimum:    1,
		Retry:          DefaultRetryConfig(),
		WorkerPoolSize: int64(n * 4),
		SchedulerMode:  ModeBatch,
		JudgeWeights:   DefaultJudgeWeights(),
		KindRateLimit:  5,
		KindRateBurst:  10,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return CoreConfig{}, err
	}
	return cfg, nil
}

func (c *CoreConfig) validate() error {
	n := len(c.Kinds)
	if n == 0 {
		return ErrNoWorkerKinds
	}
	seen := make(map[WorkerKind]struct{}, n)
	for _, k := range c.Kinds {
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateKind, k)
		}
		seen[k] = struct{}{}
	}
	if !(c.SoftDeadline > 0 && c.SoftDeadline < c.HardDeadline) {
		return ErrDeadlineOrder
	}
	if !(1 <= c.HardMinimum && c.HardMinimum <= c.SoftMinimum && c.SoftMinimum <= n) {
		return ErrThresholdRange
	}
	const epsilon = 1e-9
	if math.Abs(c.JudgeWeights.sum()-1.0) > epsilon {
		return fmt.Errorf("%w: got %.4f", ErrWeightsSum, c.JudgeWeights.sum())
	}
	if c.WorkerPoolSize <= 0 {
		c.WorkerPoolSize = int64(n)
	}
	if c.KindRateLimit <= 0 || c.KindRateBurst <= 0 {
		c.KindRateLimit, c.KindRateBurst = 5, 10
	}
	return nil
}
