package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/engram-dev/engram/internal/memory"
)

// messageStore implements memory.MessageSource backed by SQLite. It also
// carries the ingest write path the gateway uses to stand in for the host's
// message persistence; the engine itself only ever reads.
type messageStore struct {
	db *sql.DB
}

// AppendMessage persists an inbound message, assigning an ID and timestamp
// when absent, and returns the stored message.
func (s *messageStore) AppendMessage(ctx context.Context, msg memory.Message) (memory.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, seq, role, content, created_at)
		VALUES (?, ?, COALESCE((SELECT MAX(seq) FROM messages WHERE conversation_id = ?), 0) + 1,
		        ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.ConversationID,
		string(msg.Role), msg.Content, msg.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return memory.Message{}, fmt.Errorf("sqlite: append message: %w", err)
	}
	return msg, nil
}

// MessagesAfter implements memory.MessageSource.
func (s *messageStore) MessagesAfter(ctx context.Context, conversationID string, offset int) ([]memory.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, created_at
		FROM messages
		WHERE conversation_id = ? AND seq > ?
		ORDER BY seq ASC`,
		conversationID, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: messages after: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanMessages(rows, conversationID)
}

// RecentMessages implements memory.MessageSource.
func (s *messageStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]memory.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY seq DESC
		LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	msgs, err := scanMessages(rows, conversationID)
	if err != nil {
		return nil, err
	}

	// Reverse to chronological order.
	slices.Reverse(msgs)
	return msgs, nil
}

// MessageCount implements memory.MessageSource.
func (s *messageStore) MessageCount(ctx context.Context, conversationID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE conversation_id = ?", conversationID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count messages: %w", err)
	}
	return count, nil
}

func scanMessages(rows *sql.Rows, conversationID string) ([]memory.Message, error) {
	var msgs []memory.Message
	for rows.Next() {
		var (
			msg          memory.Message
			role         string
			createdAtStr string
		)
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &createdAtStr); err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}

		createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse created_at %q: %w", createdAtStr, err)
		}

		msg.ConversationID = conversationID
		msg.Role = memory.Role(role)
		msg.CreatedAt = createdAt
		msgs = append(msgs, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: scan message rows: %w", err)
	}
	return msgs, nil
}
