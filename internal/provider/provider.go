// Package provider defines the abstract capability contracts the engine
// depends on. Concrete implementations live in backend modules
// (e.g. provider.anthropic for summarization, provider.openai for
// embeddings) and are resolved through the service registry.
package provider

import (
	"context"

	"github.com/engram-dev/engram/internal/memory"
)

// Summarizer folds a batch of new messages into an updated board state.
// Implementations must honor ctx cancellation; the engine applies the
// configured timeout before calling.
type Summarizer interface {
	// Summarize produces the replacement text fields for a board given its
	// current state as seed and the messages to absorb. The seed's zero
	// value is a valid empty seed for a first run.
	Summarize(ctx context.Context, seed memory.SummaryBoard, msgs []memory.Message) (memory.SummaryUpdate, error)
}

// Embedder maps text to fixed-dimension vectors. The same embedder is used
// for chunk creation and for query embedding so similarities are comparable.
type Embedder interface {
	// Embed returns the embedding of a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one embedding per input text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed vector dimension D.
	Dimension() int
}
