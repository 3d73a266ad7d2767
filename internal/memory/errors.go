package memory

import "errors"

// Sentinel errors for store operations.
var (
	// ErrNoBoard indicates the conversation has never been summarized.
	// This is an expected condition, not a fault; callers fall back to
	// raw recent messages.
	ErrNoBoard = errors.New("no summary board for conversation")

	// ErrBoardConflict indicates a compare-and-set commit lost the race
	// against a concurrent writer. The losing run's window is reprocessed
	// on the next trigger.
	ErrBoardConflict = errors.New("summary board modified concurrently")
)
