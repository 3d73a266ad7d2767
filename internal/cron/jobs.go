package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/engram-dev/engram/internal/memory"
)

// ChunkReaperJob deletes memory chunks whose TTL has elapsed. Expired
// chunks are already invisible to search; this job reclaims the rows.
type ChunkReaperJob struct {
	Chunks       memory.ChunkStore
	ScheduleExpr string
	Logger       *slog.Logger
}

// Name implements Job.
func (j *ChunkReaperJob) Name() string { return "chunk_reaper" }

// Schedule implements Job.
func (j *ChunkReaperJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/10 * * * *"
}

// Run implements Job.
func (j *ChunkReaperJob) Run(ctx context.Context) error {
	reaped, err := j.Chunks.ReapExpired(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if reaped > 0 {
		chunksReapedTotal.Add(float64(reaped))
		j.Logger.Info("reaped expired memory chunks", "count", reaped)
	}
	return nil
}

// ArchiveRetentionJob prunes archive entries older than the retention
// window. The archive is append-only between prunes; this is the only
// path that removes entries.
type ArchiveRetentionJob struct {
	Archive      memory.ArchiveStore
	Retention    time.Duration
	ScheduleExpr string
	Logger       *slog.Logger
}

// Name implements Job.
func (j *ArchiveRetentionJob) Name() string { return "archive_retention" }

// Schedule implements Job.
func (j *ArchiveRetentionJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 3 * * *"
}

// Run implements Job.
func (j *ArchiveRetentionJob) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.Retention)
	pruned, err := j.Archive.PruneBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if pruned > 0 {
		archivePrunedTotal.Add(float64(pruned))
		j.Logger.Info("pruned archive entries past retention",
			"count", pruned,
			"cutoff", cutoff.Format(time.RFC3339),
		)
	}
	return nil
}
