package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/engram-dev/engram/internal/memory"
)

// archiveStore implements memory.ArchiveStore backed by SQLite. Entries are
// only written through boardStore.CommitRun; the retention prune is the
// sole delete path.
type archiveStore struct {
	db *sql.DB
}

// Entries implements memory.ArchiveStore. Overlap filter: an entry
// qualifies unless its covered range ends before `from` or starts after
// `to`.
func (s *archiveStore) Entries(ctx context.Context, from, to *time.Time) ([]memory.ArchiveEntry, error) {
	var (
		conds []string
		args  []any
	)
	if from != nil {
		conds = append(conds, "covered_to >= ?")
		args = append(args, from.Format(time.RFC3339Nano))
	}
	if to != nil {
		conds = append(conds, "covered_from <= ?")
		args = append(args, to.Format(time.RFC3339Nano))
	}

	query := `
		SELECT id, conversation_id, summary_snapshot, embedding, covered_from, covered_to, created_at
		FROM archive`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: archive entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []memory.ArchiveEntry
	for rows.Next() {
		entry, err := scanArchiveEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: archive rows: %w", err)
	}
	return entries, nil
}

// PruneBefore implements memory.ArchiveStore.
func (s *archiveStore) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM archive WHERE created_at < ?", cutoff.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune archive: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return int(n), nil
}

func scanArchiveEntry(rows *sql.Rows) (memory.ArchiveEntry, error) {
	var (
		entry      memory.ArchiveEntry
		blob       []byte
		fromStr    string
		toStr      string
		createdStr string
	)
	if err := rows.Scan(&entry.ID, &entry.ConversationID, &entry.SummarySnapshot,
		&blob, &fromStr, &toStr, &createdStr); err != nil {
		return entry, fmt.Errorf("sqlite: scan archive entry: %w", err)
	}

	embedding, err := decodeEmbedding(blob)
	if err != nil {
		return entry, err
	}
	entry.Embedding = embedding

	for _, field := range []struct {
		raw string
		dst *time.Time
	}{
		{fromStr, &entry.CoveredFrom},
		{toStr, &entry.CoveredTo},
		{createdStr, &entry.CreatedAt},
	} {
		t, err := time.Parse(time.RFC3339Nano, field.raw)
		if err != nil {
			return entry, fmt.Errorf("sqlite: parse timestamp %q: %w", field.raw, err)
		}
		*field.dst = t
	}

	return entry, nil
}
