// Package memorytest provides in-memory store implementations for tests.
// They honor the same atomicity and compare-and-set semantics as the real
// backends so engine tests exercise the full failure surface.
package memorytest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/engram-dev/engram/internal/memory"
)

// Store is an in-memory implementation of MessageSource, BoardStore,
// ChunkStore, and ArchiveStore backed by a single mutex.
type Store struct {
	mu       sync.Mutex
	messages map[string][]memory.Message
	boards   map[string]memory.SummaryBoard
	chunks   []memory.MemoryChunk
	archive  []memory.ArchiveEntry

	// FailCommit, when set, makes the next CommitRun return this error
	// without writing anything.
	FailCommit error

	// Commits counts successful CommitRun calls.
	Commits int
}

// Compile-time interface guards.
var (
	_ memory.MessageSource   = (*Store)(nil)
	_ memory.MessageRecorder = (*Store)(nil)
	_ memory.BoardStore      = (*Store)(nil)
	_ memory.ChunkStore      = (*Store)(nil)
	_ memory.ArchiveStore    = (*Store)(nil)
)

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		messages: make(map[string][]memory.Message),
		boards:   make(map[string]memory.SummaryBoard),
	}
}

// AddMessage appends a message to a conversation, assigning an ID and
// timestamp if absent.
func (s *Store) AddMessage(msg memory.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = fmt.Sprintf("m%d", len(s.messages[msg.ConversationID])+1)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Unix(int64(len(s.messages[msg.ConversationID])), 0).UTC()
	}
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
}

// AppendMessage implements memory.MessageRecorder.
func (s *Store) AppendMessage(_ context.Context, msg memory.Message) (memory.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = fmt.Sprintf("m%d", len(s.messages[msg.ConversationID])+1)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	return msg, nil
}

// SeedBoard installs a board directly, bypassing CAS.
func (s *Store) SeedBoard(board memory.SummaryBoard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boards[board.ConversationID] = board
}

// SeedChunk installs a chunk directly.
func (s *Store) SeedChunk(chunk memory.MemoryChunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunk)
}

// SeedArchive installs an archive entry directly.
func (s *Store) SeedArchive(entry memory.ArchiveEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archive = append(s.archive, entry)
}

// MessagesAfter implements memory.MessageSource.
func (s *Store) MessagesAfter(_ context.Context, conversationID string, offset int) ([]memory.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[conversationID]
	if offset >= len(msgs) {
		return nil, nil
	}
	return slices.Clone(msgs[offset:]), nil
}

// RecentMessages implements memory.MessageSource.
func (s *Store) RecentMessages(_ context.Context, conversationID string, limit int) ([]memory.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[conversationID]
	if limit <= 0 {
		return nil, nil
	}
	if limit < len(msgs) {
		msgs = msgs[len(msgs)-limit:]
	}
	return slices.Clone(msgs), nil
}

// MessageCount implements memory.MessageSource.
func (s *Store) MessageCount(_ context.Context, conversationID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[conversationID]), nil
}

// GetBoard implements memory.BoardStore.
func (s *Store) GetBoard(_ context.Context, conversationID string) (memory.SummaryBoard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	board, ok := s.boards[conversationID]
	if !ok {
		return memory.SummaryBoard{}, memory.ErrNoBoard
	}
	return board, nil
}

// CommitRun implements memory.BoardStore with full CAS semantics.
func (s *Store) CommitRun(_ context.Context, commit memory.RunCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCommit != nil {
		err := s.FailCommit
		s.FailCommit = nil
		return err
	}

	current, exists := s.boards[commit.Board.ConversationID]
	switch {
	case commit.PriorCount == 0 && exists:
		return memory.ErrBoardConflict
	case commit.PriorCount != 0 && (!exists || current.MessageCount != commit.PriorCount):
		return memory.ErrBoardConflict
	}

	s.boards[commit.Board.ConversationID] = commit.Board
	s.chunks = append(s.chunks, commit.Chunks...)
	s.archive = append(s.archive, commit.Archive)
	s.Commits++
	return nil
}

// LiveChunks implements memory.ChunkStore.
func (s *Store) LiveChunks(_ context.Context, conversationID string, now time.Time) ([]memory.MemoryChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var live []memory.MemoryChunk
	for _, c := range s.chunks {
		if c.ConversationID == conversationID && c.Live(now) {
			live = append(live, c)
		}
	}
	return live, nil
}

// ReapExpired implements memory.ChunkStore.
func (s *Store) ReapExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.chunks[:0]
	reaped := 0
	for _, c := range s.chunks {
		if c.Live(now) {
			kept = append(kept, c)
		} else {
			reaped++
		}
	}
	s.chunks = kept
	return reaped, nil
}

// Entries implements memory.ArchiveStore.
func (s *Store) Entries(_ context.Context, from, to *time.Time) ([]memory.ArchiveEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []memory.ArchiveEntry
	for _, e := range s.archive {
		if from != nil && e.CoveredTo.Before(*from) {
			continue
		}
		if to != nil && e.CoveredFrom.After(*to) {
			continue
		}
		out = append(out, e)
	}
	slices.Reverse(out)
	return out, nil
}

// PruneBefore implements memory.ArchiveStore.
func (s *Store) PruneBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.archive[:0]
	pruned := 0
	for _, e := range s.archive {
		if e.CreatedAt.Before(cutoff) {
			pruned++
		} else {
			kept = append(kept, e)
		}
	}
	s.archive = kept
	return pruned, nil
}

// Board returns the stored board without CAS bookkeeping, for assertions.
func (s *Store) Board(conversationID string) (memory.SummaryBoard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	board, ok := s.boards[conversationID]
	return board, ok
}

// ChunkCount returns the number of stored chunks, expired included.
func (s *Store) ChunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// ArchiveCount returns the number of stored archive entries.
func (s *Store) ArchiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.archive)
}
