// Package summarizer implements the background summarization engine: the
// pure board fold, the deterministic chunking policy, the run pipeline with
// all-or-nothing commit, and the coalescing per-conversation scheduler.
package summarizer

import (
	"slices"
	"time"

	"github.com/engram-dev/engram/internal/memory"
)

// Fold applies one summarization update to a prior board state and returns
// the new state. It is side-effect free: the incremental
// "seed + new messages → updated state" pattern reduces to this function,
// called once per trigger window with the capability's output.
//
// All text fields are replaced wholesale; MessageCount grows by the number
// of messages the update absorbed, keeping the monotonicity invariant.
func Fold(prior memory.SummaryBoard, update memory.SummaryUpdate, absorbed int, now time.Time) memory.SummaryBoard {
	return memory.SummaryBoard{
		ConversationID:   prior.ConversationID,
		Summary:          update.Summary,
		ImportantFacts:   slices.Clone(update.ImportantFacts),
		ActionItems:      slices.Clone(update.ActionItems),
		PendingQuestions: slices.Clone(update.PendingQuestions),
		ContextNotes:     update.ContextNotes,
		MessageCount:     prior.MessageCount + absorbed,
		LastUpdated:      now,
	}
}
