package voice

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/rag-assistant/backend/internal/service/voice"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
	queueSize    = 8
)

// Responder answers one utterance within a conversation; *voice.Agent satisfies it.
type Responder interface {
	Respond(ctx context.Context, conv *voice.Conversation, transcript string) (voice.Reply, error)
}

// Options customise new connections. Blank values use the voice package defaults.
type Options struct {
	Instructions string
	Greeting     string
}

// WebSocketHandler serves the voice agent over a websocket carrying transcripts.
type WebSocketHandler struct {
	agent    Responder
	opts     Options
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(agent Responder, opts Options) *WebSocketHandler {
	if strings.TrimSpace(opts.Greeting) == "" {
		opts.Greeting = voice.DefaultGreeting
	}
	return &WebSocketHandler{
		agent: agent,
		opts:  opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/voice/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// TranscriptMessage carries one finished user utterance.
type TranscriptMessage struct {
	Text string `json:"text"`
}

// ConfigMessage adjusts the connection.
type ConfigMessage struct {
	Instructions *string `json:"instructions,omitempty"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type turnKind int

const (
	turnTranscript turnKind = iota
	turnReset
)

type turnRequest struct {
	kind turnKind
	text string
}

// connectionState is owned by one websocket. Writes are serialised because the
// read loop, the turn worker and the ping loop all send frames.
type connectionState struct {
	sessionID string
	conv      *voice.Conversation
	conn      *websocket.Conn
	writeMu   sync.Mutex
	turns     chan turnRequest
}

func newConnectionState(conn *websocket.Conn, instructions string) *connectionState {
	return &connectionState{
		sessionID: uuid.NewString(),
		conv:      voice.NewConversation(instructions),
		conn:      conn,
		turns:     make(chan turnRequest, queueSize),
	}
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.agent == nil {
		http.Error(w, "voice agent unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	state := newConnectionState(conn, h.opts.Instructions)
	log.Printf("[websocket] new voice connection: %s", state.sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, state)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.turnWorker(ctx, state)
	}()
	defer wg.Wait()
	defer cancel()

	h.sendInfo(state, map[string]any{"type": "connected"})
	h.sendInfo(state, map[string]any{"type": "reply", "text": h.opts.Greeting})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			log.Printf("[websocket] closed voice connection: %s", state.sessionID)
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		h.handleMessage(ctx, state, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, state *connectionState, msg *inboundMessage) {
	switch msg.Type {
	case "transcript":
		var transcript TranscriptMessage
		if err := json.Unmarshal(msg.Data, &transcript); err != nil {
			h.sendError(state, "invalid transcript payload")
			return
		}
		text := strings.TrimSpace(transcript.Text)
		if text == "" {
			return
		}
		h.enqueue(ctx, state, turnRequest{kind: turnTranscript, text: text})
	case "config":
		var cfg ConfigMessage
		if err := json.Unmarshal(msg.Data, &cfg); err != nil {
			h.sendError(state, "invalid config payload")
			return
		}
		h.applyConfig(state, cfg)
		h.sendInfo(state, map[string]any{
			"type":         "config",
			"instructions": state.conv.Instructions(),
		})
	case "reset":
		h.enqueue(ctx, state, turnRequest{kind: turnReset})
	default:
		h.sendError(state, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) applyConfig(state *connectionState, cfg ConfigMessage) {
	if cfg.Instructions != nil {
		state.conv.SetInstructions(*cfg.Instructions)
	}
}

func (h *WebSocketHandler) enqueue(ctx context.Context, state *connectionState, req turnRequest) {
	select {
	case state.turns <- req:
	case <-ctx.Done():
	default:
		h.sendError(state, "too many pending turns")
	}
}

// turnWorker handles queued turns one at a time, in arrival order.
func (h *WebSocketHandler) turnWorker(ctx context.Context, state *connectionState) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-state.turns:
			switch req.kind {
			case turnReset:
				state.conv.Reset()
				h.sendInfo(state, map[string]any{"type": "reset"})
			case turnTranscript:
				h.processTranscript(ctx, state, req.text)
			}
		}
	}
}

func (h *WebSocketHandler) processTranscript(ctx context.Context, state *connectionState, text string) {
	h.sendInfo(state, map[string]any{"type": "user", "text": text})

	reply, err := h.agent.Respond(ctx, state.conv, text)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Printf("[websocket] turn failed session=%s: %v", state.sessionID, err)
		h.sendError(state, "failed to answer: "+err.Error())
		return
	}

	for _, step := range reply.Steps {
		data := map[string]any{"type": "tool", "name": voice.ToolName, "query": step.Query}
		if step.Err != "" {
			data["error"] = step.Err
		} else {
			data["answer"] = step.Answer
		}
		h.sendInfo(state, data)
	}
	h.sendInfo(state, map[string]any{"type": "reply", "text": reply.Text, "isFinal": true})
}

func (h *WebSocketHandler) write(state *connectionState, msg outgoingMessage) error {
	state.writeMu.Lock()
	defer state.writeMu.Unlock()
	state.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return state.conn.WriteJSON(msg)
}

func (h *WebSocketHandler) sendInfo(state *connectionState, data map[string]any) {
	msg := outgoingMessage{
		Type:      "result",
		SessionID: state.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := h.write(state, msg); err != nil {
		log.Printf("[websocket] write info failed: %v", err)
	}
}

func (h *WebSocketHandler) sendError(state *connectionState, message string) {
	msg := outgoingMessage{
		Type:      "error",
		SessionID: state.sessionID,
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	if err := h.write(state, msg); err != nil {
		log.Printf("[websocket] write error failed: %v", err)
	}
}

func (h *WebSocketHandler) pingLoop(ctx context.Context, state *connectionState) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state.writeMu.Lock()
			err := state.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			state.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
