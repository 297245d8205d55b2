// Package workers holds concrete pipeline.Worker implementations. None of
// these call a real upstream; they exist to give the pipeline package
// something runnable to demonstrate the produce/retry/circuit-breaking
// contract end to end.
package workers

import (
	"context"
	"fmt"

	"github.com/waypointcast/tourguide/pipeline"
)

// Fetcher is the narrow upstream dependency a Worker calls to produce a
// Candidate. Concrete deployments implement this against a real API
// (a stock-photo search, a TTS service, an LLM) and construct one of the
// Worker types below around it.
type Fetcher interface {
	Fetch(ctx context.Context, p pipeline.Point) (pipeline.Candidate, error)
}

// FetcherFunc adapts a plain function to a Fetcher.
type FetcherFunc func(ctx context.Context, p pipeline.Point) (pipeline.Candidate, error)

func (f FetcherFunc) Fetch(ctx context.Context, p pipeline.Point) (pipeline.Candidate, error) {
	return f(ctx, p)
}

// Worker adapts a Fetcher to pipeline.Worker for a fixed WorkerKind. It
// does not retry or classify errors itself — that is WorkerRunner's job —
// it only knows how to produce one Candidate per call.
type Worker struct {
	kind    pipeline.WorkerKind
	fetcher Fetcher
}

// New builds a Worker of the given kind around fetcher.
func New(kind pipeline.WorkerKind, fetcher Fetcher) *Worker {
	return &Worker{kind: kind, fetcher: fetcher}
}

func (w *Worker) Kind() pipeline.WorkerKind { return w.kind }

func (w *Worker) Produce(ctx context.Context, p pipeline.Point) (pipeline.Candidate, error) {
	c, err := w.fetcher.Fetch(ctx, p)
	if err != nil {
		return pipeline.Candidate{}, err
	}
	c.Kind = w.kind
	return c, nil
}

// NotFoundError marks a Fetcher result as having found nothing for this
// Point — not worth retrying, since a different attempt at the same query
// will not find content that does not exist.
type NotFoundError struct {
	PointKey string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no content found for point %q", e.PointKey)
}
