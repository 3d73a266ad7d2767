package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/engram-dev/engram/internal/memory"
)

// openTestDB opens a migrated database in a test temp dir.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	if err := migrate(db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestMessageAppendAndRead(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	store := &messageStore{db: db}
	ctx := context.Background()

	stored, err := store.AppendMessage(ctx, memory.Message{
		ConversationID: "c1",
		Role:           memory.RoleUser,
		Content:        "hello",
	})
	if err != nil {
		t.Fatalf("AppendMessage() = %v", err)
	}
	if stored.ID == "" {
		t.Error("ID not assigned")
	}
	if stored.CreatedAt.IsZero() {
		t.Error("CreatedAt not assigned")
	}

	if _, err := store.AppendMessage(ctx, memory.Message{
		ConversationID: "c1", Role: memory.RoleAssistant, Content: "hi",
	}); err != nil {
		t.Fatalf("AppendMessage() = %v", err)
	}

	msgs, err := store.MessagesAfter(ctx, "c1", 0)
	if err != nil {
		t.Fatalf("MessagesAfter() = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[0].Content != "hello" || msgs[1].Content != "hi" {
		t.Errorf("messages out of order: %q, %q", msgs[0].Content, msgs[1].Content)
	}

	count, err := store.MessageCount(ctx, "c1")
	if err != nil {
		t.Fatalf("MessageCount() = %v", err)
	}
	if count != 2 {
		t.Errorf("MessageCount = %d, want 2", count)
	}
}

func TestMessagesAfterOffset(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	store := &messageStore{db: db}
	ctx := context.Background()

	for _, content := range []string{"a", "b", "c", "d"} {
		if _, err := store.AppendMessage(ctx, memory.Message{
			ConversationID: "c1", Role: memory.RoleUser, Content: content,
		}); err != nil {
			t.Fatalf("AppendMessage() = %v", err)
		}
	}

	msgs, err := store.MessagesAfter(ctx, "c1", 2)
	if err != nil {
		t.Fatalf("MessagesAfter() = %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "c" || msgs[1].Content != "d" {
		t.Errorf("MessagesAfter(2) = %+v, want c, d", msgs)
	}

	msgs, err = store.MessagesAfter(ctx, "c1", 10)
	if err != nil {
		t.Fatalf("MessagesAfter() = %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("MessagesAfter(10) returned %d messages, want 0", len(msgs))
	}
}

func TestRecentMessagesChronological(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	store := &messageStore{db: db}
	ctx := context.Background()

	for _, content := range []string{"a", "b", "c"} {
		if _, err := store.AppendMessage(ctx, memory.Message{
			ConversationID: "c1", Role: memory.RoleUser, Content: content,
		}); err != nil {
			t.Fatalf("AppendMessage() = %v", err)
		}
	}

	msgs, err := store.RecentMessages(ctx, "c1", 2)
	if err != nil {
		t.Fatalf("RecentMessages() = %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "b" || msgs[1].Content != "c" {
		t.Errorf("RecentMessages(2) = %+v, want b then c", msgs)
	}
}

func TestMessageConversationIsolation(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	store := &messageStore{db: db}
	ctx := context.Background()

	for _, id := range []string{"c1", "c2", "c1"} {
		if _, err := store.AppendMessage(ctx, memory.Message{
			ConversationID: id, Role: memory.RoleUser, Content: id,
		}); err != nil {
			t.Fatalf("AppendMessage() = %v", err)
		}
	}

	count, err := store.MessageCount(ctx, "c1")
	if err != nil {
		t.Fatalf("MessageCount() = %v", err)
	}
	if count != 2 {
		t.Errorf("MessageCount(c1) = %d, want 2", count)
	}
}

func testCommit(conversationID string, priorCount, newCount int) memory.RunCommit {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return memory.RunCommit{
		Board: memory.SummaryBoard{
			ConversationID:   conversationID,
			Summary:          "summary",
			ImportantFacts:   []string{"fact"},
			ActionItems:      []string{"item"},
			PendingQuestions: []string{"question"},
			ContextNotes:     "notes",
			MessageCount:     newCount,
			LastUpdated:      now,
		},
		PriorCount: priorCount,
		Chunks: []memory.MemoryChunk{{
			ID:             conversationID + "-chunk-1",
			ConversationID: conversationID,
			Text:           "user: q\nassistant: a",
			Embedding:      []float32{0.1, 0.2, 0.3},
			CreatedAt:      now,
			ExpiresAt:      now.Add(7 * 24 * time.Hour),
		}},
		Archive: memory.ArchiveEntry{
			ID:              conversationID + "-arch-1",
			ConversationID:  conversationID,
			SummarySnapshot: "summary",
			Embedding:       []float32{0.4, 0.5},
			CoveredFrom:     now.Add(-time.Hour),
			CoveredTo:       now,
			CreatedAt:       now,
		},
	}
}

func TestBoardCommitAndGet(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	boards := &boardStore{db: db}
	ctx := context.Background()

	if _, err := boards.GetBoard(ctx, "c1"); !errors.Is(err, memory.ErrNoBoard) {
		t.Fatalf("GetBoard() = %v, want ErrNoBoard", err)
	}

	commit := testCommit("c1", 0, 5)
	if err := boards.CommitRun(ctx, commit); err != nil {
		t.Fatalf("CommitRun() = %v", err)
	}

	board, err := boards.GetBoard(ctx, "c1")
	if err != nil {
		t.Fatalf("GetBoard() = %v", err)
	}
	if board.Summary != "summary" || board.MessageCount != 5 || board.ContextNotes != "notes" {
		t.Errorf("board = %+v", board)
	}
	if !reflect.DeepEqual(board.ImportantFacts, []string{"fact"}) {
		t.Errorf("ImportantFacts = %v", board.ImportantFacts)
	}
	if !reflect.DeepEqual(board.ActionItems, []string{"item"}) {
		t.Errorf("ActionItems = %v", board.ActionItems)
	}
	if !reflect.DeepEqual(board.PendingQuestions, []string{"question"}) {
		t.Errorf("PendingQuestions = %v", board.PendingQuestions)
	}
	if !board.LastUpdated.Equal(commit.Board.LastUpdated) {
		t.Errorf("LastUpdated = %v, want %v", board.LastUpdated, commit.Board.LastUpdated)
	}
}

func TestBoardCommitWritesChunksAndArchive(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	boards := &boardStore{db: db}
	chunks := &chunkStore{db: db}
	archive := &archiveStore{db: db}
	ctx := context.Background()

	commit := testCommit("c1", 0, 5)
	if err := boards.CommitRun(ctx, commit); err != nil {
		t.Fatalf("CommitRun() = %v", err)
	}

	live, err := chunks.LiveChunks(ctx, "c1", commit.Chunks[0].CreatedAt)
	if err != nil {
		t.Fatalf("LiveChunks() = %v", err)
	}
	if len(live) != 1 {
		t.Fatalf("len(live) = %d, want 1", len(live))
	}
	if live[0].Text != commit.Chunks[0].Text {
		t.Errorf("chunk text = %q", live[0].Text)
	}
	if !reflect.DeepEqual(live[0].Embedding, commit.Chunks[0].Embedding) {
		t.Errorf("chunk embedding = %v, want %v", live[0].Embedding, commit.Chunks[0].Embedding)
	}

	entries, err := archive.Entries(ctx, nil, nil)
	if err != nil {
		t.Fatalf("Entries() = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].SummarySnapshot != "summary" {
		t.Errorf("SummarySnapshot = %q", entries[0].SummarySnapshot)
	}
}

func TestBoardCommitConflictOnConcurrentCreate(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	boards := &boardStore{db: db}
	ctx := context.Background()

	if err := boards.CommitRun(ctx, testCommit("c1", 0, 5)); err != nil {
		t.Fatalf("first CommitRun() = %v", err)
	}

	// A second create-expecting commit loses the race.
	second := testCommit("c1", 0, 6)
	second.Chunks[0].ID = "other-chunk"
	second.Archive.ID = "other-arch"
	if err := boards.CommitRun(ctx, second); !errors.Is(err, memory.ErrBoardConflict) {
		t.Fatalf("second CommitRun() = %v, want ErrBoardConflict", err)
	}
}

func TestBoardCommitConflictOnStalePriorCount(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	boards := &boardStore{db: db}
	ctx := context.Background()

	if err := boards.CommitRun(ctx, testCommit("c1", 0, 5)); err != nil {
		t.Fatalf("create CommitRun() = %v", err)
	}

	stale := testCommit("c1", 3, 8)
	stale.Chunks[0].ID = "stale-chunk"
	stale.Archive.ID = "stale-arch"
	if err := boards.CommitRun(ctx, stale); !errors.Is(err, memory.ErrBoardConflict) {
		t.Fatalf("stale CommitRun() = %v, want ErrBoardConflict", err)
	}

	fresh := testCommit("c1", 5, 8)
	fresh.Chunks[0].ID = "fresh-chunk"
	fresh.Archive.ID = "fresh-arch"
	if err := boards.CommitRun(ctx, fresh); err != nil {
		t.Fatalf("fresh CommitRun() = %v", err)
	}

	board, err := boards.GetBoard(ctx, "c1")
	if err != nil {
		t.Fatalf("GetBoard() = %v", err)
	}
	if board.MessageCount != 8 {
		t.Errorf("MessageCount = %d, want 8", board.MessageCount)
	}
}

func TestBoardConflictRollsBackWholeCommit(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	boards := &boardStore{db: db}
	chunks := &chunkStore{db: db}
	archive := &archiveStore{db: db}
	ctx := context.Background()

	if err := boards.CommitRun(ctx, testCommit("c1", 0, 5)); err != nil {
		t.Fatalf("create CommitRun() = %v", err)
	}

	conflicting := testCommit("c1", 3, 8)
	conflicting.Chunks[0].ID = "rolled-back-chunk"
	conflicting.Archive.ID = "rolled-back-arch"
	if err := boards.CommitRun(ctx, conflicting); !errors.Is(err, memory.ErrBoardConflict) {
		t.Fatalf("CommitRun() = %v, want ErrBoardConflict", err)
	}

	// Neither the conflicting commit's chunks nor its archive entry survive.
	live, err := chunks.LiveChunks(ctx, "c1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("LiveChunks() = %v", err)
	}
	if len(live) != 1 {
		t.Errorf("len(live) = %d, want 1 (only the committed run's chunk)", len(live))
	}
	entries, err := archive.Entries(ctx, nil, nil)
	if err != nil {
		t.Fatalf("Entries() = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("len(entries) = %d, want 1", len(entries))
	}
}

func TestChunkTTL(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	boards := &boardStore{db: db}
	chunks := &chunkStore{db: db}
	ctx := context.Background()

	commit := testCommit("c1", 0, 5)
	if err := boards.CommitRun(ctx, commit); err != nil {
		t.Fatalf("CommitRun() = %v", err)
	}

	expiry := commit.Chunks[0].ExpiresAt

	live, err := chunks.LiveChunks(ctx, "c1", expiry.Add(-time.Second))
	if err != nil {
		t.Fatalf("LiveChunks() = %v", err)
	}
	if len(live) != 1 {
		t.Errorf("before expiry: len = %d, want 1", len(live))
	}

	// At the expiry instant the chunk is no longer live.
	live, err = chunks.LiveChunks(ctx, "c1", expiry)
	if err != nil {
		t.Fatalf("LiveChunks() = %v", err)
	}
	if len(live) != 0 {
		t.Errorf("at expiry: len = %d, want 0", len(live))
	}

	reaped, err := chunks.ReapExpired(ctx, expiry)
	if err != nil {
		t.Fatalf("ReapExpired() = %v", err)
	}
	if reaped != 1 {
		t.Errorf("reaped = %d, want 1", reaped)
	}

	// Idempotent.
	reaped, err = chunks.ReapExpired(ctx, expiry)
	if err != nil {
		t.Fatalf("second ReapExpired() = %v", err)
	}
	if reaped != 0 {
		t.Errorf("second reap = %d, want 0", reaped)
	}
}

func TestArchiveEntriesNewestFirstAndWindow(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	boards := &boardStore{db: db}
	archive := &archiveStore{db: db}
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	first := testCommit("c1", 0, 5)
	first.Archive.CoveredFrom = base
	first.Archive.CoveredTo = base.Add(time.Hour)
	first.Archive.CreatedAt = base.Add(time.Hour)
	if err := boards.CommitRun(ctx, first); err != nil {
		t.Fatalf("CommitRun() = %v", err)
	}

	second := testCommit("c2", 0, 5)
	second.Archive.CoveredFrom = base.Add(24 * time.Hour)
	second.Archive.CoveredTo = base.Add(25 * time.Hour)
	second.Archive.CreatedAt = base.Add(25 * time.Hour)
	if err := boards.CommitRun(ctx, second); err != nil {
		t.Fatalf("CommitRun() = %v", err)
	}

	entries, err := archive.Entries(ctx, nil, nil)
	if err != nil {
		t.Fatalf("Entries() = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].ConversationID != "c2" {
		t.Errorf("newest entry conversation = %q, want c2", entries[0].ConversationID)
	}

	// Window covering only the first entry.
	to := base.Add(2 * time.Hour)
	entries, err = archive.Entries(ctx, nil, &to)
	if err != nil {
		t.Fatalf("Entries(window) = %v", err)
	}
	if len(entries) != 1 || entries[0].ConversationID != "c1" {
		t.Errorf("windowed entries = %+v, want only c1", entries)
	}

	// Window overlapping both.
	from := base.Add(30 * time.Minute)
	to = base.Add(24*time.Hour + 30*time.Minute)
	entries, err = archive.Entries(ctx, &from, &to)
	if err != nil {
		t.Fatalf("Entries(overlap) = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("overlap window returned %d entries, want 2", len(entries))
	}
}

func TestArchivePruneBefore(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	boards := &boardStore{db: db}
	archive := &archiveStore{db: db}
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	old := testCommit("c1", 0, 5)
	old.Archive.CreatedAt = base.Add(-100 * 24 * time.Hour)
	if err := boards.CommitRun(ctx, old); err != nil {
		t.Fatalf("CommitRun() = %v", err)
	}

	recent := testCommit("c2", 0, 5)
	recent.Archive.CreatedAt = base
	if err := boards.CommitRun(ctx, recent); err != nil {
		t.Fatalf("CommitRun() = %v", err)
	}

	pruned, err := archive.PruneBefore(ctx, base.Add(-90*24*time.Hour))
	if err != nil {
		t.Fatalf("PruneBefore() = %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}

	entries, err := archive.Entries(ctx, nil, nil)
	if err != nil {
		t.Fatalf("Entries() = %v", err)
	}
	if len(entries) != 1 || entries[0].ConversationID != "c2" {
		t.Errorf("entries after prune = %+v, want only c2", entries)
	}
}
