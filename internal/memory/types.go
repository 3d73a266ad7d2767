// Package memory defines the working-memory domain model and the store
// contracts shared by the summarization engine and the read-side manager.
// Concrete persistence lives in backend modules (e.g. modules/store/sqlite).
package memory

import "time"

// Role identifies the author of a conversation message.
type Role string

// Role constants for conversation messages.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single conversation message. Messages are owned by the host
// system; the engine reads them but never mutates them.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// SummaryBoard is the single, continuously updated compact representation of
// a conversation. Summary always reflects exactly the first MessageCount
// messages; MessageCount never decreases.
type SummaryBoard struct {
	ConversationID   string    `json:"conversation_id"`
	Summary          string    `json:"summary"`
	ImportantFacts   []string  `json:"important_facts"`
	ActionItems      []string  `json:"action_items"`
	PendingQuestions []string  `json:"pending_questions"`
	ContextNotes     string    `json:"context_notes"`
	MessageCount     int       `json:"message_count"`
	LastUpdated      time.Time `json:"last_updated"`
}

// SummaryUpdate is the output of one summarization capability call: the
// replacement text fields for a board, before the fold applies bookkeeping.
type SummaryUpdate struct {
	Summary          string   `json:"summary"`
	ImportantFacts   []string `json:"important_facts"`
	ActionItems      []string `json:"action_items"`
	PendingQuestions []string `json:"pending_questions"`
	ContextNotes     string   `json:"context_notes"`
}

// MemoryChunk is a short-lived, vector-searchable fragment of recently
// summarized content. Chunks expire independently of the board.
type MemoryChunk struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Text           string    `json:"text"`
	Embedding      []float32 `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Live reports whether the chunk has not yet expired at the given instant.
func (c MemoryChunk) Live(now time.Time) bool {
	return c.ExpiresAt.After(now)
}

// ArchiveEntry is one append-only historical snapshot of a conversation
// summary, searchable across all conversations.
type ArchiveEntry struct {
	ID              string    `json:"id"`
	ConversationID  string    `json:"conversation_id"`
	SummarySnapshot string    `json:"summary_snapshot"`
	Embedding       []float32 `json:"-"`
	CoveredFrom     time.Time `json:"covered_from"`
	CoveredTo       time.Time `json:"covered_to"`
	CreatedAt       time.Time `json:"created_at"`
}

// ChunkHit is one ranked result from a working-memory search.
type ChunkHit struct {
	Text       string    `json:"text"`
	Similarity float64   `json:"similarity"`
	CreatedAt  time.Time `json:"created_at"`
}

// ArchiveHit is one ranked result from a summary-archive search.
type ArchiveHit struct {
	ConversationID  string    `json:"conversation_id"`
	SummarySnapshot string    `json:"summary_snapshot"`
	Similarity      float64   `json:"similarity"`
	CoveredFrom     time.Time `json:"covered_from"`
	CoveredTo       time.Time `json:"covered_to"`
}
