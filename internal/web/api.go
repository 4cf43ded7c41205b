package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/haasonsaas/showroom/internal/agent"
	"github.com/haasonsaas/showroom/pkg/models"
)

// ChatRequest is the POST /chat body.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// ChatResponse is the POST /chat reply.
type ChatResponse struct {
	SessionID string        `json:"sessionId"`
	Assistant AssistantTurn `json:"assistant"`
}

// AssistantTurn is the assistant's reply within a ChatResponse.
type AssistantTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HealthResponse is the GET /health reply.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	MCPURL  string `json:"mcpUrl,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.jsonError(w, "message is required", http.StatusBadRequest)
		return
	}

	result, err := s.config.Responder.Respond(r.Context(), req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, agent.ErrEmptyMessage) {
			s.jsonError(w, "message is required", http.StatusBadRequest)
			return
		}
		s.logger.Error("chat turn failed", "error", err, "session_id", req.SessionID)
		s.jsonError(w, "failed to generate a response", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, ChatResponse{
		SessionID: result.SessionID,
		Assistant: AssistantTurn{Role: string(models.RoleAssistant), Content: result.Text},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		OK:      true,
		Service: "showroom",
		MCPURL:  s.config.MCPURL,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
