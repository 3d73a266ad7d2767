// Package providertest provides scripted capability fakes for engine tests.
package providertest

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync/atomic"

	"github.com/engram-dev/engram/internal/memory"
	"github.com/engram-dev/engram/internal/provider"
)

// FakeSummarizer returns a scripted update or error and counts calls.
type FakeSummarizer struct {
	Update memory.SummaryUpdate
	Err    error

	// Block, when non-nil, is waited on before answering; lets tests hold
	// a run in flight. The ctx deadline still applies.
	Block chan struct{}

	calls atomic.Int64
}

// Compile-time interface guard.
var _ provider.Summarizer = (*FakeSummarizer)(nil)

// Summarize implements provider.Summarizer.
func (f *FakeSummarizer) Summarize(ctx context.Context, seed memory.SummaryBoard, msgs []memory.Message) (memory.SummaryUpdate, error) {
	f.calls.Add(1)

	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return memory.SummaryUpdate{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return memory.SummaryUpdate{}, err
	}
	if f.Err != nil {
		return memory.SummaryUpdate{}, f.Err
	}

	update := f.Update
	if update.Summary == "" {
		update.Summary = fmt.Sprintf("summary of %d prior and %d new messages", seed.MessageCount, len(msgs))
	}
	return update, nil
}

// Calls returns the number of Summarize invocations.
func (f *FakeSummarizer) Calls() int {
	return int(f.calls.Load())
}

// FakeEmbedder produces deterministic unit vectors derived from the text
// hash, so identical texts embed identically and similarity math is exact.
type FakeEmbedder struct {
	Dim int
	Err error

	calls atomic.Int64
}

// Compile-time interface guard.
var _ provider.Embedder = (*FakeEmbedder)(nil)

// Embed implements provider.Embedder.
func (f *FakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}
	return f.vector(text), nil
}

// EmbedBatch implements provider.Embedder.
func (f *FakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimension implements provider.Embedder.
func (f *FakeEmbedder) Dimension() int {
	if f.Dim <= 0 {
		return 8
	}
	return f.Dim
}

// Calls returns the number of Embed invocations, batch elements included.
func (f *FakeEmbedder) Calls() int {
	return int(f.calls.Load())
}

// vector maps the text hash onto a basis vector of the configured dimension.
// Distinct hash buckets are exactly orthogonal; equal texts are identical.
func (f *FakeEmbedder) vector(text string) []float32 {
	dim := f.Dimension()
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	v := make([]float32, dim)
	v[int(h.Sum32())%dim] = 1
	return v
}
