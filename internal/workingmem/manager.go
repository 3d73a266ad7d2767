// Package workingmem implements the read side of the engine: board
// retrieval, bounded context rendering, similarity search over memory
// chunks and the summary archive, and the fail-open context assembly
// policy executed once per chat turn.
package workingmem

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/engram-dev/engram/internal/memory"
	"github.com/engram-dev/engram/internal/provider"
)

// Search defaults per the consumer interface.
const (
	DefaultSimilarityThreshold = 0.7
	DefaultSearchLimit         = 5
	DefaultRecentLimit         = 20
)

// Manager exposes the working-memory read operations. All operations are
// side-effect free and deterministic given stored state.
type Manager struct {
	source  memory.MessageSource
	boards  memory.BoardStore
	chunks  memory.ChunkStore
	archive memory.ArchiveStore
	embed   provider.Embedder
	logger  *slog.Logger
	now     func() time.Time
}

// ManagerParams configures a new Manager.
type ManagerParams struct {
	Source   memory.MessageSource
	Boards   memory.BoardStore
	Chunks   memory.ChunkStore
	Archive  memory.ArchiveStore
	Embedder provider.Embedder
	Logger   *slog.Logger
	Now      func() time.Time
}

// NewManager creates a Manager from its dependencies.
func NewManager(p ManagerParams) *Manager {
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Manager{
		source:  p.Source,
		boards:  p.Boards,
		chunks:  p.Chunks,
		archive: p.Archive,
		embed:   p.Embedder,
		logger:  p.Logger,
		now:     p.Now,
	}
}

// GetWorkingContext returns the current summary board, or memory.ErrNoBoard
// if the conversation has never been summarized.
func (m *Manager) GetWorkingContext(ctx context.Context, conversationID string) (memory.SummaryBoard, error) {
	board, err := m.boards.GetBoard(ctx, conversationID)
	if err != nil {
		return memory.SummaryBoard{}, err
	}
	if board.MessageCount == 0 {
		return memory.SummaryBoard{}, memory.ErrNoBoard
	}
	return board, nil
}

// GetRecentMessages returns the limit most recent messages in chronological
// order. This is the fallback path when no board exists.
func (m *Manager) GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]memory.Message, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return m.source.RecentMessages(ctx, conversationID, limit)
}

// SearchWorkingMemory embeds the query and ranks the conversation's live
// memory chunks by cosine similarity. Only entries at or above the
// threshold are returned, descending, truncated to limit. An empty result
// is a normal outcome, not an error.
func (m *Manager) SearchWorkingMemory(ctx context.Context, conversationID, query string, threshold float64, limit int) ([]memory.ChunkHit, error) {
	threshold, limit = searchParams(threshold, limit)

	queryVec, err := m.embed.Embed(ctx, query)
	if err != nil {
		return nil, provider.MapEmbedErr(err)
	}

	candidates, err := m.chunks.LiveChunks(ctx, conversationID, m.now())
	if err != nil {
		return nil, fmt.Errorf("workingmem: load chunks: %w", err)
	}

	ranked := rank(queryVec, len(candidates), func(i int) []float32 {
		return candidates[i].Embedding
	}, threshold, limit)

	hits := make([]memory.ChunkHit, len(ranked))
	for i, r := range ranked {
		hits[i] = memory.ChunkHit{
			Text:       candidates[r.index].Text,
			Similarity: r.similarity,
			CreatedAt:  candidates[r.index].CreatedAt,
		}
	}
	return hits, nil
}

// SearchSummaries ranks archived summary snapshots across all conversations
// by cosine similarity, optionally restricted to entries whose covered
// range overlaps [from, to].
func (m *Manager) SearchSummaries(ctx context.Context, query string, from, to *time.Time, threshold float64, limit int) ([]memory.ArchiveHit, error) {
	threshold, limit = searchParams(threshold, limit)

	queryVec, err := m.embed.Embed(ctx, query)
	if err != nil {
		return nil, provider.MapEmbedErr(err)
	}

	candidates, err := m.archive.Entries(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("workingmem: load archive: %w", err)
	}

	ranked := rank(queryVec, len(candidates), func(i int) []float32 {
		return candidates[i].Embedding
	}, threshold, limit)

	hits := make([]memory.ArchiveHit, len(ranked))
	for i, r := range ranked {
		entry := candidates[r.index]
		hits[i] = memory.ArchiveHit{
			ConversationID:  entry.ConversationID,
			SummarySnapshot: entry.SummarySnapshot,
			Similarity:      r.similarity,
			CoveredFrom:     entry.CoveredFrom,
			CoveredTo:       entry.CoveredTo,
		}
	}
	return hits, nil
}

func searchParams(threshold float64, limit int) (float64, int) {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return threshold, limit
}
