package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/54b3r/newschat-go/internal/chat"
	"github.com/54b3r/newschat-go/internal/rag"
	"github.com/54b3r/newschat-go/internal/session"
)

// historyDefaultLimit is the number of messages returned by GET /api/history
// when the caller does not need pagination. Matches the orchestrator's view
// of a conversation.
const historyDefaultLimit = 50

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("response encode error", slog.Any("error", err))
	}
}

// errorStatus maps a pipeline error to its HTTP status code. Unknown errors
// become 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, chat.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrUnavailable), errors.Is(err, rag.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, chat.ErrGenerationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage returns the generic client-facing message for a status code.
// Internal error detail is logged server-side, never sent to the client.
func errorMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid request"
	case http.StatusNotFound:
		return "session not found"
	case http.StatusServiceUnavailable:
		return "service temporarily unavailable"
	case http.StatusBadGateway:
		return "answer generation failed"
	default:
		return "internal error"
	}
}

// handleError logs err and writes its mapped status with a generic message.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	logRequestError(r, status, err)
	writeJSON(w, status, map[string]string{"error": errorMessage(status)})
}

// handleCreateSession handles POST /api/session.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.sessions.Create(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id})
}

// handleChat handles POST /api/chat. The full pipeline runs synchronously
// and the structured answer is returned as a single JSON document.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errorMessage(http.StatusBadRequest)})
		return
	}

	start := time.Now()
	s.metrics.chatActiveRequests.Inc()
	resp, err := s.chat.Query(r.Context(), req.SessionID, req.Message)
	s.metrics.chatActiveRequests.Dec()

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, chat.ErrGenerationFailed) {
			outcome = "generation_failed"
		}
	}
	s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHistory handles GET /api/history?sessionId=.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("sessionId")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errorMessage(http.StatusBadRequest)})
		return
	}

	exists, err := s.sessions.Exists(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": errorMessage(http.StatusNotFound)})
		return
	}

	msgs, err := s.sessions.History(r.Context(), id, historyDefaultLimit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []session.Message{}
	}
	writeJSON(w, http.StatusOK, historyResponse{SessionID: id, Messages: msgs})
}

// handleReset handles POST /api/session/reset.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errorMessage(http.StatusBadRequest)})
		return
	}

	ok, err := s.sessions.Reset(r.Context(), req.SessionID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": errorMessage(http.StatusNotFound)})
		return
	}
	writeJSON(w, http.StatusOK, resetResponse{Success: true})
}

// handleSessions handles GET /api/sessions (dashboard listing).
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.sessions.List(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []session.Summary{}
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: summaries})
}
