package summarizer

import (
	"strings"

	"github.com/engram-dev/engram/internal/memory"
)

// ChunkMessages partitions a summarized window into semantic chunk texts.
//
// Policy: one chunk per user→assistant exchange. A user message immediately
// followed by an assistant message forms a single chunk carrying both sides;
// every other message becomes a chunk of its own. The partition is a
// function of the input alone, so reprocessing the same window after a
// failed commit yields identical chunks and no span is ever covered twice.
func ChunkMessages(msgs []memory.Message) []string {
	var chunks []string

	for i := 0; i < len(msgs); {
		msg := msgs[i]

		if msg.Role == memory.RoleUser && i+1 < len(msgs) && msgs[i+1].Role == memory.RoleAssistant {
			chunks = append(chunks, renderChunk(msg, msgs[i+1]))
			i += 2
			continue
		}

		chunks = append(chunks, renderChunk(msg))
		i++
	}

	return chunks
}

func renderChunk(msgs ...memory.Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}
