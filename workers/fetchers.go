package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/waypointcast/tourguide/pipeline"
)

// StaticFetcher returns a fixed Candidate for every Point, useful for
// tests and local demos of the pipeline's wiring.
type StaticFetcher struct {
	Candidate pipeline.Candidate
}

func (f StaticFetcher) Fetch(ctx context.Context, p pipeline.Point) (pipeline.Candidate, error) {
	return f.Candidate, nil
}

// FlakyFetcher wraps another Fetcher and fails the first failUntilCall
// calls with a *pipeline.TransientError, then delegates. It exists to
// exercise WorkerRunner's retry/backoff path in tests without a real
// upstream.
type FlakyFetcher struct {
	Inner           Fetcher
	failUntilCall   int
	calls           int
}

// NewFlakyFetcher builds a FlakyFetcher that fails the first n calls.
func NewFlakyFetcher(inner Fetcher, n int) *FlakyFetcher {
	return &FlakyFetcher{Inner: inner, failUntilCall: n}
}

func (f *FlakyFetcher) Fetch(ctx context.Context, p pipeline.Point) (pipeline.Candidate, error) {
	f.calls++
	if f.calls <= f.failUntilCall {
		return pipeline.Candidate{}, &pipeline.TransientError{
			Err: fmt.Errorf("upstream busy (attempt %d)", f.calls),
		}
	}
	return f.Inner.Fetch(ctx, p)
}

// TextualFetcher builds a short blurb candidate from a Point's name and
// tag. It stands in for a real LLM- or template-backed textual worker.
type TextualFetcher struct{}

func (TextualFetcher) Fetch(ctx context.Context, p pipeline.Point) (pipeline.Candidate, error) {
	if p.Name == "" {
		return pipeline.Candidate{}, &NotFoundError{PointKey: p.Key}
	}
	body := fmt.Sprintf("Welcome to %s, a %s stop on your route.", p.Name, p.PointTag)
	return pipeline.Candidate{
		Title:    p.Name,
		Body:     body,
		Source:   "textual-fetcher",
		HasDur:   false,
		Attributes: map[string]any{
			"topics": []string{p.PointTag},
		},
	}, nil
}

// AudioFetcher stands in for a text-to-speech or stock-narration worker,
// producing a fixed-length clip description.
type AudioFetcher struct {
	ClipDuration time.Duration
}

func (f AudioFetcher) Fetch(ctx context.Context, p pipeline.Point) (pipeline.Candidate, error) {
	if p.Name == "" {
		return pipeline.Candidate{}, &NotFoundError{PointKey: p.Key}
	}
	dur := f.ClipDuration
	if dur <= 0 {
		dur = 90 * time.Second
	}
	return pipeline.Candidate{
		Title:    p.Name + " narration",
		Body:     fmt.Sprintf("Audio guide narration for %s", p.Name),
		Source:   "audio-fetcher",
		Duration: dur,
		HasDur:   true,
		Attributes: map[string]any{
			"topics": []string{p.PointTag},
		},
	}, nil
}

// VisualFetcher stands in for a stock-photo or generated-image worker.
type VisualFetcher struct{}

func (VisualFetcher) Fetch(ctx context.Context, p pipeline.Point) (pipeline.Candidate, error) {
	if !p.HasGeo {
		return pipeline.Candidate{}, &NotFoundError{PointKey: p.Key}
	}
	return pipeline.Candidate{
		Title:  p.Name + " photo",
		Body:   fmt.Sprintf("Photo near %.4f,%.4f", p.Lat, p.Lng),
		Source: "visual-fetcher",
		Attributes: map[string]any{
			"topics": []string{p.PointTag},
		},
	}, nil
}
