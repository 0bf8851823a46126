package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/rag-assistant/backend/internal/handler/chat"
	"github.com/zhouzirui/rag-assistant/backend/internal/handler/voice"
	middlewarePkg "github.com/zhouzirui/rag-assistant/backend/internal/middleware"
	"github.com/zhouzirui/rag-assistant/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. voiceHandler may be nil when the
// voice agent is disabled.
func NewRouter(chatSvc chat.Service, voiceHandler *voice.WebSocketHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	chat.New(chatSvc).RegisterRoutes(r)

	if voiceHandler != nil {
		voiceHandler.RegisterRoutes(r)
	}

	return r
}
