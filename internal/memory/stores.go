package memory

import (
	"context"
	"time"
)

// MessageSource provides read-only access to the host's message stream.
// Implementations must be safe for concurrent use.
type MessageSource interface {
	// MessagesAfter returns all messages of a conversation after the first
	// offset messages, in chronological order.
	MessagesAfter(ctx context.Context, conversationID string, offset int) ([]Message, error)

	// RecentMessages returns the limit most recent messages of a
	// conversation, in chronological order.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)

	// MessageCount returns the total number of messages in a conversation.
	MessageCount(ctx context.Context, conversationID string) (int, error)
}

// MessageRecorder is the ingest boundary standing in for the host's message
// persistence. The engine itself never writes messages; only the host-facing
// surface (the gateway ingest endpoint) records them and then notifies the
// observer.
type MessageRecorder interface {
	// AppendMessage persists a message, filling ID and CreatedAt when
	// absent, and returns the stored form.
	AppendMessage(ctx context.Context, msg Message) (Message, error)
}

// RunCommit is the full write set of one successful summarizer run. Backends
// must apply it all-or-nothing: readers never observe a partially updated
// board, orphaned chunks, or a missing archive entry for a committed board.
type RunCommit struct {
	// Board is the complete new board state.
	Board SummaryBoard

	// PriorCount is the MessageCount the board had when the run started.
	// Zero means the run expects to create the board. A mismatch at commit
	// time means another writer got there first; the backend must reject
	// the whole commit with ErrBoardConflict.
	PriorCount int

	Chunks  []MemoryChunk
	Archive ArchiveEntry
}

// BoardStore persists the current summary board per conversation.
// Implementations must be safe for concurrent use.
type BoardStore interface {
	// GetBoard returns the current board, or ErrNoBoard if the conversation
	// has never been summarized.
	GetBoard(ctx context.Context, conversationID string) (SummaryBoard, error)

	// CommitRun atomically applies the write set of a summarizer run,
	// guarded by compare-and-set on the board's MessageCount.
	CommitRun(ctx context.Context, commit RunCommit) error
}

// ChunkStore provides access to live memory chunks and their reaping.
// Implementations must be safe for concurrent use.
type ChunkStore interface {
	// LiveChunks returns all chunks of a conversation whose TTL has not
	// passed at the given instant, embeddings included.
	LiveChunks(ctx context.Context, conversationID string, now time.Time) ([]MemoryChunk, error)

	// ReapExpired deletes chunks whose ExpiresAt is at or before the given
	// instant and returns the number removed. Idempotent.
	ReapExpired(ctx context.Context, now time.Time) (int, error)
}

// ArchiveStore provides access to the append-only summary archive.
// Entries are written only through BoardStore.CommitRun.
// Implementations must be safe for concurrent use.
type ArchiveStore interface {
	// Entries returns archive entries across all conversations, newest
	// first, optionally restricted to those whose covered range overlaps
	// [from, to]. Nil bounds are open.
	Entries(ctx context.Context, from, to *time.Time) ([]ArchiveEntry, error)

	// PruneBefore deletes entries created before the cutoff and returns
	// the number removed. This is the retention policy's only write path.
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}
