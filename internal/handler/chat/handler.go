package chat

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/rag-assistant/backend/internal/model/chat"
	chatService "github.com/zhouzirui/rag-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/rag-assistant/backend/pkg/utils"
)

// Service is the session-bound chat API the handler exposes.
type Service interface {
	CreateSession(ctx context.Context) (string, error)
	Chat(ctx context.Context, sessionID, query string) (chatService.TurnResult, error)
	History(ctx context.Context, sessionID string) ([]chat.Message, error)
	ListSessions(ctx context.Context) ([]string, error)
	DeleteSession(ctx context.Context, sessionID string) (bool, error)
}

// Handler serves the session and chat endpoints.
type Handler struct {
	chatSvc Service
}

func New(chatSvc Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the handler on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions", h.handleListSessions)
	r.Get("/sessions/{session_id}", h.handleGetSession)
	r.Delete("/sessions/{session_id}", h.handleDeleteSession)
	r.Post("/chat", h.handleChat)
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

type chatResponse struct {
	SessionID   string   `json:"session_id"`
	Answer      string   `json:"answer"`
	ChatHistory []string `json:"chat_history"`
}

type historyMessage struct {
	Role    chat.Role `json:"role"`
	Content string    `json:"content"`
}

type sessionHistoryResponse struct {
	SessionID string           `json:"session_id"`
	History   []historyMessage `json:"history"`
}

type listSessionsResponse struct {
	Sessions []string `json:"sessions"`
}

type deleteSessionResponse struct {
	SessionID string `json:"session_id"`
	Deleted   bool   `json:"deleted"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, createSessionResponse{SessionID: id})
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		utils.RespondError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		utils.RespondError(w, http.StatusBadRequest, "query is required")
		return
	}

	result, err := h.chatSvc.Chat(r.Context(), req.SessionID, req.Query)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, chatResponse{
		SessionID:   result.SessionID,
		Answer:      result.Answer,
		ChatHistory: result.ChatHistory,
	})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	history, err := h.chatSvc.History(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	messages := make([]historyMessage, 0, len(history))
	for _, msg := range history {
		messages = append(messages, historyMessage{Role: msg.Role, Content: msg.Content})
	}
	utils.RespondJSON(w, http.StatusOK, sessionHistoryResponse{SessionID: sessionID, History: messages})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := h.chatSvc.ListSessions(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	utils.RespondJSON(w, http.StatusOK, listSessionsResponse{Sessions: ids})
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	deleted, err := h.chatSvc.DeleteSession(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, deleteSessionResponse{SessionID: sessionID, Deleted: deleted})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, chatService.ErrEmptyQuery):
		utils.RespondError(w, http.StatusBadRequest, "query is required")
	case errors.Is(err, chatService.ErrChainFailed):
		utils.RespondError(w, http.StatusBadGateway, "failed to generate an answer")
	default:
		log.Printf("[chat] request failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
