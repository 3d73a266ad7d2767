package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/engram-dev/engram/internal/memory"
	"github.com/engram-dev/engram/internal/provider"
)

// Default tuning for the run pipeline.
const (
	DefaultTimeout  = 60 * time.Second
	DefaultChunkTTL = 7 * 24 * time.Hour
)

// Engine executes summarizer runs. It is stateless between runs; all state
// lives in the stores. Per-conversation mutual exclusion is the Scheduler's
// job, not the Engine's.
type Engine struct {
	source    memory.MessageSource
	boards    memory.BoardStore
	summarize provider.Summarizer
	embed     provider.Embedder
	timeout   time.Duration
	chunkTTL  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// EngineParams configures a new Engine. Zero Timeout and ChunkTTL fall back
// to the package defaults.
type EngineParams struct {
	Source     memory.MessageSource
	Boards     memory.BoardStore
	Summarizer provider.Summarizer
	Embedder   provider.Embedder
	Timeout    time.Duration
	ChunkTTL   time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

// NewEngine creates an Engine from its dependencies.
func NewEngine(p EngineParams) *Engine {
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.ChunkTTL <= 0 {
		p.ChunkTTL = DefaultChunkTTL
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Engine{
		source:    p.Source,
		boards:    p.Boards,
		summarize: p.Summarizer,
		embed:     p.Embedder,
		timeout:   p.Timeout,
		chunkTTL:  p.ChunkTTL,
		logger:    p.Logger,
		now:       p.Now,
	}
}

// Run summarizes the pending window of a conversation.
//
// The pipeline is: load seed board → fetch unsummarized messages → call the
// summarization capability under timeout → chunk and embed → commit the
// whole write set in one compare-and-set transaction. Any failure before
// the commit leaves the stores untouched; the window stays pending and is
// reprocessed on the next trigger. Running with no pending messages is a
// no-op, which makes Run idempotent.
func (e *Engine) Run(ctx context.Context, conversationID string) error {
	seed := memory.SummaryBoard{ConversationID: conversationID}
	priorCount := 0

	board, err := e.boards.GetBoard(ctx, conversationID)
	switch {
	case err == nil:
		seed = board
		priorCount = board.MessageCount
	case errors.Is(err, memory.ErrNoBoard):
		// First run for this conversation; empty seed.
	default:
		return fmt.Errorf("summarizer: load board: %w", err)
	}

	msgs, err := e.source.MessagesAfter(ctx, conversationID, priorCount)
	if err != nil {
		return fmt.Errorf("summarizer: fetch messages: %w", err)
	}
	if len(msgs) == 0 {
		runsTotal.WithLabelValues(outcomeNoop).Inc()
		return nil
	}

	started := e.now()

	update, err := e.callSummarize(ctx, seed, msgs)
	if err != nil {
		runsTotal.WithLabelValues(outcomeFailure).Inc()
		return err
	}

	chunks, archive, err := e.buildWriteSet(ctx, conversationID, update, msgs)
	if err != nil {
		runsTotal.WithLabelValues(outcomeFailure).Inc()
		return err
	}

	commit := memory.RunCommit{
		Board:      Fold(seed, update, len(msgs), e.now()),
		PriorCount: priorCount,
		Chunks:     chunks,
		Archive:    archive,
	}
	if err := e.boards.CommitRun(ctx, commit); err != nil {
		if errors.Is(err, memory.ErrBoardConflict) {
			runsTotal.WithLabelValues(outcomeConflict).Inc()
			return fmt.Errorf("summarizer: %w", err)
		}
		runsTotal.WithLabelValues(outcomeFailure).Inc()
		return fmt.Errorf("summarizer: commit run: %w", err)
	}

	runsTotal.WithLabelValues(outcomeSuccess).Inc()
	runDuration.Observe(e.now().Sub(started).Seconds())
	e.logger.Info("summarizer run committed",
		"conversation", conversationID,
		"absorbed", len(msgs),
		"message_count", commit.Board.MessageCount,
		"chunks", len(chunks),
	)
	return nil
}

// callSummarize invokes the summarization capability under the configured
// timeout and maps failures onto the capability error taxonomy.
func (e *Engine) callSummarize(ctx context.Context, seed memory.SummaryBoard, msgs []memory.Message) (memory.SummaryUpdate, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	update, err := e.summarize.Summarize(callCtx, seed, msgs)
	if err != nil {
		return memory.SummaryUpdate{}, provider.MapSummarizeErr(err)
	}
	return update, nil
}

// buildWriteSet chunks the window, embeds chunk texts and the new summary,
// and assembles the rows the commit will insert. Embeddings are computed
// up front so an embedding failure commits nothing.
func (e *Engine) buildWriteSet(ctx context.Context, conversationID string, update memory.SummaryUpdate, msgs []memory.Message) ([]memory.MemoryChunk, memory.ArchiveEntry, error) {
	embedCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	texts := ChunkMessages(msgs)
	vectors, err := e.embed.EmbedBatch(embedCtx, texts)
	if err != nil {
		return nil, memory.ArchiveEntry{}, provider.MapEmbedErr(err)
	}
	if len(vectors) != len(texts) {
		return nil, memory.ArchiveEntry{}, fmt.Errorf("%w: got %d vectors for %d chunks", provider.ErrEmbedFailed, len(vectors), len(texts))
	}

	summaryVec, err := e.embed.Embed(embedCtx, update.Summary)
	if err != nil {
		return nil, memory.ArchiveEntry{}, provider.MapEmbedErr(err)
	}

	now := e.now()
	chunks := make([]memory.MemoryChunk, len(texts))
	for i, text := range texts {
		chunks[i] = memory.MemoryChunk{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			Text:           text,
			Embedding:      vectors[i],
			CreatedAt:      now,
			ExpiresAt:      now.Add(e.chunkTTL),
		}
	}

	archive := memory.ArchiveEntry{
		ID:              uuid.NewString(),
		ConversationID:  conversationID,
		SummarySnapshot: update.Summary,
		Embedding:       summaryVec,
		CoveredFrom:     msgs[0].CreatedAt,
		CoveredTo:       msgs[len(msgs)-1].CreatedAt,
		CreatedAt:       now,
	}

	return chunks, archive, nil
}
