package mcptool

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/engram-dev/engram/internal/memory"
	"github.com/engram-dev/engram/internal/memory/memorytest"
	"github.com/engram-dev/engram/internal/provider/providertest"
	"github.com/engram-dev/engram/internal/workingmem"
)

func newTestModule(t *testing.T, store *memorytest.Store) *Module {
	t.Helper()

	manager := workingmem.NewManager(workingmem.ManagerParams{
		Source:   store,
		Boards:   store,
		Chunks:   store,
		Archive:  store,
		Embedder: &providertest.FakeEmbedder{},
	})
	return &Module{
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		manager:     manager,
		recentLimit: 20,
	}
}

func toolRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("len(Content) = %d, want 1", len(result.Content))
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Content[0] is %T, want TextContent", result.Content[0])
	}
	return tc.Text
}

func TestGetBoardTool(t *testing.T) {
	t.Parallel()

	store := memorytest.NewStore()
	store.SeedBoard(memory.SummaryBoard{
		ConversationID: "c1",
		Summary:        "planning a trip",
		MessageCount:   6,
	})
	m := newTestModule(t, store)

	result, err := m.handleGetBoard(context.Background(), toolRequest(map[string]any{
		"conversation_id": "c1",
	}))
	if err != nil {
		t.Fatalf("handleGetBoard() = %v", err)
	}
	if result.IsError {
		t.Fatalf("result is error: %s", textContent(t, result))
	}

	var board memory.SummaryBoard
	if err := json.Unmarshal([]byte(textContent(t, result)), &board); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if board.Summary != "planning a trip" || board.MessageCount != 6 {
		t.Errorf("board = %+v", board)
	}
}

func TestGetBoardToolErrors(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, memorytest.NewStore())

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing conversation_id", map[string]any{}},
		{"no board", map[string]any{"conversation_id": "absent"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := m.handleGetBoard(context.Background(), toolRequest(tt.args))
			if err != nil {
				t.Fatalf("handleGetBoard() = %v", err)
			}
			if !result.IsError {
				t.Error("result.IsError = false, want true")
			}
		})
	}
}

func TestGetContextToolFallsBackToMessages(t *testing.T) {
	t.Parallel()

	store := memorytest.NewStore()
	store.AddMessage(memory.Message{ConversationID: "c1", Role: memory.RoleUser, Content: "hi"})
	m := newTestModule(t, store)

	result, err := m.handleGetContext(context.Background(), toolRequest(map[string]any{
		"conversation_id": "c1",
	}))
	if err != nil {
		t.Fatalf("handleGetContext() = %v", err)
	}

	var block workingmem.ContextBlock
	if err := json.Unmarshal([]byte(textContent(t, result)), &block); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if block.Summarized {
		t.Error("Summarized = true without a board")
	}
	if len(block.Messages) != 1 {
		t.Errorf("len(Messages) = %d, want 1", len(block.Messages))
	}
}

func TestSearchMemoryToolRequiresQuery(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, memorytest.NewStore())
	result, err := m.handleSearchMemory(context.Background(), toolRequest(map[string]any{
		"conversation_id": "c1",
	}))
	if err != nil {
		t.Fatalf("handleSearchMemory() = %v", err)
	}
	if !result.IsError {
		t.Error("result.IsError = false, want true")
	}
}

func TestSearchSummariesToolRejectsBadTimestamp(t *testing.T) {
	t.Parallel()

	m := newTestModule(t, memorytest.NewStore())
	result, err := m.handleSearchSummaries(context.Background(), toolRequest(map[string]any{
		"query": "trip",
		"from":  "yesterday",
	}))
	if err != nil {
		t.Fatalf("handleSearchSummaries() = %v", err)
	}
	if !result.IsError {
		t.Fatal("result.IsError = false, want true")
	}
	if !strings.HasPrefix(textContent(t, result), "from:") {
		t.Errorf("error text = %q, want from: prefix", textContent(t, result))
	}
}

func TestParseTimeArg(t *testing.T) {
	t.Parallel()

	if got, err := parseTimeArg(""); err != nil || got != nil {
		t.Errorf("parseTimeArg(\"\") = %v, %v", got, err)
	}

	got, err := parseTimeArg("2026-08-01T12:00:00Z")
	if err != nil {
		t.Fatalf("parseTimeArg() = %v", err)
	}
	want := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("parseTimeArg() = %v, want %v", got, want)
	}
}
