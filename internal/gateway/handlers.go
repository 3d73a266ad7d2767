package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/engram-dev/engram/internal/memory"
)

// maxBodyBytes bounds request body reads on all JSON endpoints.
const maxBodyBytes = 1 << 20

// appendMessageRequest is the ingest payload for POST
// /api/conversations/{id}/messages.
type appendMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// handleAppendMessage persists a message and notifies the summarizer
// observer. The observer call is asynchronous: ingest latency never includes
// summarization, and observer failures never surface to the caller.
func (g *Gateway) handleAppendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversationID := chi.URLParam(r, "id")
		if conversationID == "" {
			http.Error(w, "missing conversation id", http.StatusBadRequest)
			return
		}

		var req appendMessageRequest
		if err := decodeJSON(w, r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		role := memory.Role(req.Role)
		switch role {
		case memory.RoleUser, memory.RoleAssistant, memory.RoleSystem:
		default:
			http.Error(w, "invalid role: "+req.Role, http.StatusBadRequest)
			return
		}
		if req.Content == "" {
			http.Error(w, "content must not be empty", http.StatusBadRequest)
			return
		}

		msg, err := g.recorder.AppendMessage(r.Context(), memory.Message{
			ConversationID: conversationID,
			Role:           role,
			Content:        req.Content,
		})
		if err != nil {
			g.logger.Error("message ingest failed", "conversation", conversationID, "error", err)
			http.Error(w, "failed to store message", http.StatusInternalServerError)
			return
		}

		if g.observer != nil {
			go g.observer.MessageAppended(context.WithoutCancel(r.Context()), conversationID)
		}

		writeJSON(w, http.StatusCreated, msg)
	}
}

// handleRecentMessages returns the most recent messages of a conversation in
// chronological order. The limit query parameter is optional.
func (g *Gateway) handleRecentMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversationID := chi.URLParam(r, "id")

		limit := g.recentLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		msgs, err := g.manager.GetRecentMessages(r.Context(), conversationID, limit)
		if err != nil {
			g.logger.Error("recent messages failed", "conversation", conversationID, "error", err)
			http.Error(w, "failed to load messages", http.StatusInternalServerError)
			return
		}
		if msgs == nil {
			msgs = []memory.Message{}
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

// handleGetBoard returns the current summary board, 404 when the
// conversation has never been summarized.
func (g *Gateway) handleGetBoard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversationID := chi.URLParam(r, "id")

		board, err := g.manager.GetWorkingContext(r.Context(), conversationID)
		if err != nil {
			if errors.Is(err, memory.ErrNoBoard) {
				http.Error(w, "no summary board for conversation", http.StatusNotFound)
				return
			}
			g.logger.Error("board lookup failed", "conversation", conversationID, "error", err)
			http.Error(w, "failed to load board", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, board)
	}
}

// handleGetContext runs the per-turn context assembly. This endpoint never
// returns an error status for engine faults; the block degrades instead.
func (g *Gateway) handleGetContext() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversationID := chi.URLParam(r, "id")
		block := g.manager.AssembleContext(r.Context(), conversationID, g.recentLimit)
		writeJSON(w, http.StatusOK, block)
	}
}

// searchMemoryRequest is the payload for POST /api/search/memory.
type searchMemoryRequest struct {
	ConversationID string  `json:"conversation_id"`
	Query          string  `json:"query"`
	Threshold      float64 `json:"threshold"`
	Limit          int     `json:"limit"`
}

// handleSearchMemory ranks a conversation's live memory chunks against the
// query.
func (g *Gateway) handleSearchMemory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchMemoryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.ConversationID == "" || req.Query == "" {
			http.Error(w, "conversation_id and query are required", http.StatusBadRequest)
			return
		}

		hits, err := g.manager.SearchWorkingMemory(r.Context(), req.ConversationID, req.Query, req.Threshold, req.Limit)
		if err != nil {
			g.logger.Error("memory search failed", "conversation", req.ConversationID, "error", err)
			http.Error(w, "search failed", http.StatusInternalServerError)
			return
		}
		if hits == nil {
			hits = []memory.ChunkHit{}
		}
		writeJSON(w, http.StatusOK, hits)
	}
}

// searchSummariesRequest is the payload for POST /api/search/summaries.
// From and To optionally restrict results to entries whose covered range
// overlaps the window.
type searchSummariesRequest struct {
	Query     string     `json:"query"`
	From      *time.Time `json:"from,omitempty"`
	To        *time.Time `json:"to,omitempty"`
	Threshold float64    `json:"threshold"`
	Limit     int        `json:"limit"`
}

// handleSearchSummaries ranks archived summary snapshots across all
// conversations against the query.
func (g *Gateway) handleSearchSummaries() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchSummariesRequest
		if err := decodeJSON(w, r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Query == "" {
			http.Error(w, "query is required", http.StatusBadRequest)
			return
		}

		hits, err := g.manager.SearchSummaries(r.Context(), req.Query, req.From, req.To, req.Threshold, req.Limit)
		if err != nil {
			g.logger.Error("summary search failed", "error", err)
			http.Error(w, "search failed", http.StatusInternalServerError)
			return
		}
		if hits == nil {
			hits = []memory.ArchiveHit{}
		}
		writeJSON(w, http.StatusOK, hits)
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
