package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/engram-dev/engram/internal/memory"
)

// chunkStore implements memory.ChunkStore backed by SQLite. Candidate
// retrieval is a filtered scan of the conversation's live rows; cosine
// ranking happens in the manager. The TTL keeps the live set small enough
// that no vector index is needed at this backend's scale.
type chunkStore struct {
	db *sql.DB
}

// LiveChunks implements memory.ChunkStore.
func (s *chunkStore) LiveChunks(ctx context.Context, conversationID string, now time.Time) ([]memory.MemoryChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, embedding, created_at, expires_at
		FROM chunks
		WHERE conversation_id = ? AND expires_at > ?
		ORDER BY created_at ASC`,
		conversationID, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: live chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chunks []memory.MemoryChunk
	for rows.Next() {
		chunk, err := scanChunk(rows, conversationID)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: live chunk rows: %w", err)
	}
	return chunks, nil
}

// ReapExpired implements memory.ChunkStore. Deletes only rows whose TTL has
// passed, so it can run concurrently with any in-flight summarizer commit.
func (s *chunkStore) ReapExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE expires_at <= ?", now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: reap chunks: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return int(n), nil
}

func scanChunk(rows *sql.Rows, conversationID string) (memory.MemoryChunk, error) {
	var (
		chunk      memory.MemoryChunk
		blob       []byte
		createdStr string
		expiresStr string
	)
	if err := rows.Scan(&chunk.ID, &chunk.Text, &blob, &createdStr, &expiresStr); err != nil {
		return chunk, fmt.Errorf("sqlite: scan chunk: %w", err)
	}

	embedding, err := decodeEmbedding(blob)
	if err != nil {
		return chunk, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, createdStr)
	if err != nil {
		return chunk, fmt.Errorf("sqlite: parse created_at %q: %w", createdStr, err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, expiresStr)
	if err != nil {
		return chunk, fmt.Errorf("sqlite: parse expires_at %q: %w", expiresStr, err)
	}

	chunk.ConversationID = conversationID
	chunk.Embedding = embedding
	chunk.CreatedAt = createdAt
	chunk.ExpiresAt = expiresAt
	return chunk, nil
}
