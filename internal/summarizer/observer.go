package summarizer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/engram-dev/engram/internal/memory"
)

// DefaultThreshold is the number of unsummarized messages that triggers a
// run.
const DefaultThreshold = 5

// Observer is invoked after each message is persisted. When a conversation
// accumulates Threshold unsummarized messages it schedules exactly one
// summarizer run; duplicates are coalesced by the Scheduler. It never runs
// summarization synchronously with persistence.
type Observer struct {
	source    memory.MessageSource
	boards    memory.BoardStore
	sched     *Scheduler
	threshold int
	logger    *slog.Logger
}

// NewObserver creates an Observer with the given threshold (values < 1 fall
// back to DefaultThreshold).
func NewObserver(source memory.MessageSource, boards memory.BoardStore, sched *Scheduler, threshold int, logger *slog.Logger) *Observer {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{
		source:    source,
		boards:    boards,
		sched:     sched,
		threshold: threshold,
		logger:    logger,
	}
}

// MessageAppended checks the unsummarized count for the conversation and
// schedules a run when it reaches the threshold. All failures are absorbed:
// a missed trigger is recovered by the next message, and a coalesced
// duplicate is the expected steady state under bursts.
func (o *Observer) MessageAppended(ctx context.Context, conversationID string) {
	total, err := o.source.MessageCount(ctx, conversationID)
	if err != nil {
		o.logger.Warn("observer: message count failed", "conversation", conversationID, "error", err)
		return
	}

	summarized := 0
	board, err := o.boards.GetBoard(ctx, conversationID)
	switch {
	case err == nil:
		summarized = board.MessageCount
	case errors.Is(err, memory.ErrNoBoard):
	default:
		o.logger.Warn("observer: board lookup failed", "conversation", conversationID, "error", err)
		return
	}

	if total-summarized < o.threshold {
		return
	}

	if err := o.sched.Schedule(conversationID); err != nil {
		if errors.Is(err, ErrRunInFlight) {
			o.logger.Debug("observer: trigger coalesced", "conversation", conversationID)
			return
		}
		o.logger.Warn("observer: scheduling failed", "conversation", conversationID, "error", err)
	}
}

// Threshold returns the configured trigger threshold.
func (o *Observer) Threshold() int {
	return o.threshold
}
