package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/engram-dev/engram/internal/memory"
)

// boardStore implements memory.BoardStore backed by SQLite. CommitRun
// wraps the board compare-and-set, the chunk inserts, and the archive
// append in a single transaction so readers never observe partial runs.
type boardStore struct {
	db *sql.DB
}

// GetBoard implements memory.BoardStore.
func (s *boardStore) GetBoard(ctx context.Context, conversationID string) (memory.SummaryBoard, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT summary, important_facts, action_items, pending_questions,
		       context_notes, message_count, last_updated
		FROM boards
		WHERE conversation_id = ?`,
		conversationID,
	)

	var (
		board         memory.SummaryBoard
		factsJSON     string
		itemsJSON     string
		questionsJSON string
		updatedStr    string
	)
	err := row.Scan(&board.Summary, &factsJSON, &itemsJSON, &questionsJSON,
		&board.ContextNotes, &board.MessageCount, &updatedStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return memory.SummaryBoard{}, memory.ErrNoBoard
		}
		return memory.SummaryBoard{}, fmt.Errorf("sqlite: get board: %w", err)
	}

	board.ConversationID = conversationID
	if err := decodeList(factsJSON, &board.ImportantFacts); err != nil {
		return memory.SummaryBoard{}, fmt.Errorf("sqlite: important_facts: %w", err)
	}
	if err := decodeList(itemsJSON, &board.ActionItems); err != nil {
		return memory.SummaryBoard{}, fmt.Errorf("sqlite: action_items: %w", err)
	}
	if err := decodeList(questionsJSON, &board.PendingQuestions); err != nil {
		return memory.SummaryBoard{}, fmt.Errorf("sqlite: pending_questions: %w", err)
	}

	board.LastUpdated, err = time.Parse(time.RFC3339Nano, updatedStr)
	if err != nil {
		return memory.SummaryBoard{}, fmt.Errorf("sqlite: parse last_updated %q: %w", updatedStr, err)
	}

	return board, nil
}

// CommitRun implements memory.BoardStore.
func (s *boardStore) CommitRun(ctx context.Context, commit memory.RunCommit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin commit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.writeBoard(ctx, tx, commit); err != nil {
		return err
	}

	for _, chunk := range commit.Chunks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (id, conversation_id, text, embedding, created_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			chunk.ID, chunk.ConversationID, chunk.Text,
			encodeEmbedding(chunk.Embedding),
			chunk.CreatedAt.Format(time.RFC3339Nano),
			chunk.ExpiresAt.Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("sqlite: insert chunk: %w", err)
		}
	}

	entry := commit.Archive
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO archive (id, conversation_id, summary_snapshot, embedding, covered_from, covered_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ConversationID, entry.SummarySnapshot,
		encodeEmbedding(entry.Embedding),
		entry.CoveredFrom.Format(time.RFC3339Nano),
		entry.CoveredTo.Format(time.RFC3339Nano),
		entry.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("sqlite: append archive entry: %w", err)
	}

	return tx.Commit()
}

// writeBoard applies the compare-and-set board write inside the commit
// transaction. PriorCount zero expects to insert; anything else expects to
// replace a row still holding exactly that count.
func (s *boardStore) writeBoard(ctx context.Context, tx *sql.Tx, commit memory.RunCommit) error {
	board := commit.Board

	factsJSON, err := encodeList(board.ImportantFacts)
	if err != nil {
		return fmt.Errorf("sqlite: important_facts: %w", err)
	}
	itemsJSON, err := encodeList(board.ActionItems)
	if err != nil {
		return fmt.Errorf("sqlite: action_items: %w", err)
	}
	questionsJSON, err := encodeList(board.PendingQuestions)
	if err != nil {
		return fmt.Errorf("sqlite: pending_questions: %w", err)
	}
	updated := board.LastUpdated.Format(time.RFC3339Nano)

	var result sql.Result
	if commit.PriorCount == 0 {
		result, err = tx.ExecContext(ctx, `
			INSERT INTO boards (conversation_id, summary, important_facts, action_items,
			                    pending_questions, context_notes, message_count, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (conversation_id) DO NOTHING`,
			board.ConversationID, board.Summary, factsJSON, itemsJSON,
			questionsJSON, board.ContextNotes, board.MessageCount, updated,
		)
	} else {
		result, err = tx.ExecContext(ctx, `
			UPDATE boards
			SET summary = ?, important_facts = ?, action_items = ?,
			    pending_questions = ?, context_notes = ?, message_count = ?, last_updated = ?
			WHERE conversation_id = ? AND message_count = ?`,
			board.Summary, factsJSON, itemsJSON, questionsJSON,
			board.ContextNotes, board.MessageCount, updated,
			board.ConversationID, commit.PriorCount,
		)
	}
	if err != nil {
		return fmt.Errorf("sqlite: write board: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return memory.ErrBoardConflict
	}
	return nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		return "[]", nil
	}
	buf, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func decodeList(raw string, dst *[]string) error {
	if raw == "" || raw == "[]" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}
