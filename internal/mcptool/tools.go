package mcptool

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// registerTools wires the read-side tool set onto the MCP server.
func (m *Module) registerTools(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("get_conversation_summary_board",
		mcp.WithDescription("Return the current summary board of a conversation: running summary, important facts, action items, pending questions, and context notes."),
		mcp.WithString("conversation_id",
			mcp.Required(),
			mcp.Description("Conversation identifier."),
		),
	), m.handleGetBoard)

	s.AddTool(mcp.NewTool("get_conversation_context",
		mcp.WithDescription("Assemble the per-turn LLM context for a conversation: the formatted summary board when one exists, otherwise the recent raw messages."),
		mcp.WithString("conversation_id",
			mcp.Required(),
			mcp.Description("Conversation identifier."),
		),
	), m.handleGetContext)

	s.AddTool(mcp.NewTool("search_working_memory",
		mcp.WithDescription("Search a conversation's live memory chunks by semantic similarity to the query."),
		mcp.WithString("conversation_id",
			mcp.Required(),
			mcp.Description("Conversation identifier."),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural-language search query."),
		),
		mcp.WithNumber("threshold",
			mcp.Description("Minimum cosine similarity, 0 to 1. Defaults to 0.7."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results. Defaults to 5."),
		),
	), m.handleSearchMemory)

	s.AddTool(mcp.NewTool("search_conversation_summaries",
		mcp.WithDescription("Search archived summary snapshots across all conversations by semantic similarity, optionally restricted to a time window."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural-language search query."),
		),
		mcp.WithString("from",
			mcp.Description("RFC 3339 lower bound on the covered time range."),
		),
		mcp.WithString("to",
			mcp.Description("RFC 3339 upper bound on the covered time range."),
		),
		mcp.WithNumber("threshold",
			mcp.Description("Minimum cosine similarity, 0 to 1. Defaults to 0.7."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results. Defaults to 5."),
		),
	), m.handleSearchSummaries)
}

func (m *Module) handleGetBoard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID, err := req.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	board, err := m.manager.GetWorkingContext(ctx, conversationID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(board)
}

func (m *Module) handleGetContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID, err := req.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	block := m.manager.AssembleContext(ctx, conversationID, m.recentLimit)
	return jsonResult(block)
}

func (m *Module) handleSearchMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID, err := req.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	threshold := req.GetFloat("threshold", 0)
	limit := req.GetInt("limit", 0)

	hits, err := m.manager.SearchWorkingMemory(ctx, conversationID, query, threshold, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(hits)
}

func (m *Module) handleSearchSummaries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	from, err := parseTimeArg(req.GetString("from", ""))
	if err != nil {
		return mcp.NewToolResultError("from: " + err.Error()), nil
	}
	to, err := parseTimeArg(req.GetString("to", ""))
	if err != nil {
		return mcp.NewToolResultError("to: " + err.Error()), nil
	}

	threshold := req.GetFloat("threshold", 0)
	limit := req.GetInt("limit", 0)

	hits, err := m.manager.SearchSummaries(ctx, query, from, to, threshold, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(hits)
}

// parseTimeArg parses an optional RFC 3339 argument, nil when absent.
func parseTimeArg(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// jsonResult renders v as an indented JSON text result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("encode result: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}
