package workingmem

import (
	"strings"

	"github.com/engram-dev/engram/internal/memory"
)

// Rendering caps. Together they bound FormatContextForLLM output by a
// constant regardless of how long the conversation grows: the board's text
// fields are truncated and its lists are capped before rendering.
const (
	maxSummaryRunes  = 2000
	maxNotesRunes    = 1000
	maxItemsPerList  = 10
	maxItemRunes     = 300
	truncationMarker = "…"
)

// FormatContextForLLM renders a board into the labeled context block
// injected into a chat turn. Empty sections are omitted; output length is
// bounded by the package caps (the compression guarantee).
func FormatContextForLLM(board memory.SummaryBoard) string {
	var b strings.Builder

	writeSection := func(label, text string, limit int) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## ")
		b.WriteString(label)
		b.WriteString("\n")
		b.WriteString(truncateRunes(text, limit))
		b.WriteString("\n")
	}

	writeList := func(label string, items []string) {
		items = capItems(items)
		if len(items) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## ")
		b.WriteString(label)
		b.WriteString("\n")
		for _, item := range items {
			b.WriteString("- ")
			b.WriteString(truncateRunes(item, maxItemRunes))
			b.WriteString("\n")
		}
	}

	writeSection("Summary", board.Summary, maxSummaryRunes)
	writeList("Facts", board.ImportantFacts)
	writeList("Action Items", board.ActionItems)
	writeList("Pending Questions", board.PendingQuestions)
	writeSection("Notes", board.ContextNotes, maxNotesRunes)

	return b.String()
}

// capItems drops blank entries and caps the list length.
func capItems(items []string) []string {
	out := make([]string, 0, min(len(items), maxItemsPerList))
	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			continue
		}
		out = append(out, item)
		if len(out) == maxItemsPerList {
			break
		}
	}
	return out
}

// truncateRunes cuts s to at most limit runes, appending a marker when
// anything was removed.
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + truncationMarker
}
