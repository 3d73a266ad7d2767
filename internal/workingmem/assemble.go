package workingmem

import (
	"context"
	"errors"

	"github.com/engram-dev/engram/internal/memory"
)

// ContextBlock is the result of the per-turn context assembly policy.
type ContextBlock struct {
	// Summarized reports which path produced the block: the board render
	// or the raw-message fallback.
	Summarized bool `json:"summarized"`

	// Context is the formatted board block. Empty on the fallback path.
	Context string `json:"context,omitempty"`

	// Messages is the raw recent tail. Nil on the summarized path.
	Messages []memory.Message `json:"messages,omitempty"`
}

// AssembleContext executes the per-turn decision rule: a board, when
// present, replaces raw history entirely; otherwise up to recentLimit raw
// messages are returned. Any board-path fault fails open to the raw path:
// a chat turn is never blocked or errored by this subsystem, only its
// token efficiency degrades.
func (m *Manager) AssembleContext(ctx context.Context, conversationID string, recentLimit int) ContextBlock {
	board, err := m.GetWorkingContext(ctx, conversationID)
	if err == nil {
		return ContextBlock{
			Summarized: true,
			Context:    FormatContextForLLM(board),
		}
	}
	if !errors.Is(err, memory.ErrNoBoard) {
		m.logger.Warn("context assembly failing open to raw messages",
			"conversation", conversationID,
			"error", err,
		)
	}

	msgs, err := m.GetRecentMessages(ctx, conversationID, recentLimit)
	if err != nil {
		// Both paths failed; an empty block still must not error the turn.
		m.logger.Error("raw message fallback failed",
			"conversation", conversationID,
			"error", err,
		)
		return ContextBlock{}
	}
	return ContextBlock{Messages: msgs}
}
