package anthropic

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/engram-dev/engram/internal/memory"
)

const systemPrompt = `You maintain a working-memory board for an ongoing conversation.
Given the current board state and a batch of new messages, produce the updated board.
Carry forward everything from the current state that is still relevant, fold in the new
messages, and drop items that have been resolved.

Respond with a single JSON object and nothing else:
{"summary": "...", "important_facts": ["..."], "action_items": ["..."], "pending_questions": ["..."], "context_notes": "..."}

Leave a field as an empty string or empty array when there is nothing to put in it.`

// buildPrompt renders the seed board and the new message window into the
// user turn of the summarization request.
func buildPrompt(seed memory.SummaryBoard, msgs []memory.Message) string {
	var b strings.Builder

	b.WriteString("Current board state:\n")
	if seed.MessageCount == 0 {
		b.WriteString("(empty: this is the first summarization of the conversation)\n")
	} else {
		writeField(&b, "Summary", seed.Summary)
		writeItems(&b, "Important facts", seed.ImportantFacts)
		writeItems(&b, "Action items", seed.ActionItems)
		writeItems(&b, "Pending questions", seed.PendingQuestions)
		writeField(&b, "Context notes", seed.ContextNotes)
	}

	fmt.Fprintf(&b, "\nNew messages (%d):\n", len(msgs))
	for _, msg := range msgs {
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}

	return b.String()
}

func writeField(b *strings.Builder, label, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(text)
	b.WriteString("\n")
}

func writeItems(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(label)
	b.WriteString(":\n")
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
}

// parseUpdate extracts the JSON board update from the model's answer.
// Markdown code fences around the object are tolerated.
func parseUpdate(content string) (memory.SummaryUpdate, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// The model occasionally prefixes prose; recover by locating the
	// outermost object.
	if !strings.HasPrefix(content, "{") {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start == -1 || end <= start {
			return memory.SummaryUpdate{}, errors.New("response contains no JSON object")
		}
		content = content[start : end+1]
	}

	var update memory.SummaryUpdate
	if err := json.Unmarshal([]byte(content), &update); err != nil {
		return memory.SummaryUpdate{}, fmt.Errorf("decode board update: %w", err)
	}
	if strings.TrimSpace(update.Summary) == "" {
		return memory.SummaryUpdate{}, errors.New("board update has empty summary")
	}
	return update, nil
}
