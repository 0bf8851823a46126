package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/zhouzirui/rag-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/rag-assistant/backend/internal/service/rag"
	"github.com/zhouzirui/rag-assistant/backend/internal/store"
)

var (
	ErrSessionNotFound = store.ErrSessionNotFound
	ErrEmptyQuery      = rag.ErrEmptyQuery
	// ErrChainFailed marks failures of the model or retrieval backends.
	ErrChainFailed = errors.New("rag chain failed")
)

// Responder runs one conversational turn over a history.
type Responder interface {
	Chat(ctx context.Context, query string, history []chat.Message) (rag.Result, error)
}

// SessionStore is the persistence the service needs; *store.Store satisfies it.
type SessionStore interface {
	CreateSession(ctx context.Context) (string, error)
	SessionExists(ctx context.Context, sessionID string) (bool, error)
	ListSessions(ctx context.Context) ([]string, error)
	GetHistoryMessages(ctx context.Context, sessionID string) ([]chat.Message, error)
	AppendMessages(ctx context.Context, sessionID string, messages []chat.Message) error
	DeleteSession(ctx context.Context, sessionID string) (bool, error)
}

// TurnResult is what a caller sees after a chat turn.
type TurnResult struct {
	SessionID   string
	Answer      string
	ChatHistory []string
}

// Service binds the RAG chain to persisted sessions.
type Service struct {
	store     SessionStore
	responder Responder
}

// NewService wires the orchestrator. responder may be nil when no model is
// configured; Chat then fails with ErrChainFailed.
func NewService(store SessionStore, responder Responder) *Service {
	return &Service{store: store, responder: responder}
}

// CreateSession provisions an empty session.
func (s *Service) CreateSession(ctx context.Context) (string, error) {
	id, err := s.store.CreateSession(ctx)
	if err != nil {
		return "", err
	}
	log.Printf("[chat] created session=%s", id)
	return id, nil
}

// Chat loads the session transcript, runs the chain and persists the new turns.
// Nothing is written when the chain fails.
func (s *Service) Chat(ctx context.Context, sessionID, query string) (TurnResult, error) {
	if strings.TrimSpace(query) == "" {
		return TurnResult{}, ErrEmptyQuery
	}

	history, err := s.History(ctx, sessionID)
	if err != nil {
		return TurnResult{}, err
	}

	if s.responder == nil {
		return TurnResult{}, fmt.Errorf("%w: no chat model configured", ErrChainFailed)
	}

	result, err := s.responder.Chat(ctx, query, history)
	if err != nil {
		log.Printf("[chat] chain failed session=%s: %v", sessionID, err)
		return TurnResult{}, fmt.Errorf("%w: %w", ErrChainFailed, err)
	}

	if len(result.ChatHistory) < len(history) {
		return TurnResult{}, fmt.Errorf("%w: returned history shorter than input", ErrChainFailed)
	}
	if err := s.store.AppendMessages(ctx, sessionID, result.ChatHistory[len(history):]); err != nil {
		return TurnResult{}, fmt.Errorf("persist turn: %w", err)
	}

	return TurnResult{
		SessionID:   sessionID,
		Answer:      result.Answer,
		ChatHistory: chat.FormatHistory(result.ChatHistory),
	}, nil
}

// History returns the transcript of an existing session.
func (s *Service) History(ctx context.Context, sessionID string) ([]chat.Message, error) {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.GetHistoryMessages(ctx, sessionID)
}

// ListSessions returns session ids, newest first.
func (s *Service) ListSessions(ctx context.Context) ([]string, error) {
	return s.store.ListSessions(ctx)
}

// DeleteSession removes a session and its transcript, reporting whether it existed.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	deleted, err := s.store.DeleteSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if deleted {
		log.Printf("[chat] deleted session=%s", sessionID)
	}
	return deleted, nil
}

func (s *Service) ensureSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrSessionNotFound
	}
	ok, err := s.store.SessionExists(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}
