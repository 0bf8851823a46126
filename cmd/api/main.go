package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/rag-assistant/backend/internal/bootstrap"
	"github.com/zhouzirui/rag-assistant/backend/internal/config"
	"github.com/zhouzirui/rag-assistant/backend/internal/handler"
	voiceHandler "github.com/zhouzirui/rag-assistant/backend/internal/handler/voice"
	"github.com/zhouzirui/rag-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/rag-assistant/backend/internal/service/rag"
	"github.com/zhouzirui/rag-assistant/backend/internal/service/voice"
	"github.com/zhouzirui/rag-assistant/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	sessionStore, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("failed to open session store: %v", err)
	}
	defer sessionStore.Close()
	log.Printf("session store ready at %s", cfg.Store.Path)

	var chain *rag.Chain
	rt, err := bootstrap.OpenRetrieval(cfg.Retrieval)
	if err != nil {
		log.Printf("warning: retrieval unavailable: %v", err)
	} else {
		defer rt.Close()
		if cfg.AI.Enabled() {
			chain, err = bootstrap.NewChain(ctx, cfg, rt)
			if err != nil {
				log.Printf("warning: failed to initialize RAG chain: %v", err)
			}
		} else {
			log.Println("Ark credentials not configured, /chat will answer 502")
		}
	}

	var responder chat.Responder
	if chain != nil {
		responder = chain
	}
	chatService := chat.NewService(sessionStore, responder)

	var voiceWS *voiceHandler.WebSocketHandler
	switch {
	case !cfg.Voice.Enabled:
		log.Println("voice agent disabled by configuration")
	case chain == nil:
		log.Println("voice agent needs the RAG chain, skipping")
	default:
		agentModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Printf("warning: failed to create voice agent model: %v", err)
			break
		}
		agent, err := voice.NewAgent(agentModel, chain)
		if err != nil {
			log.Printf("warning: failed to initialize voice agent: %v", err)
			break
		}
		voiceWS = voiceHandler.NewWebSocketHandler(agent, voiceHandler.Options{
			Instructions: cfg.Voice.Instructions,
			Greeting:     cfg.Voice.Greeting,
		})
		log.Println("voice agent initialized successfully")
	}

	router := handler.NewRouter(chatService, voiceWS)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("RAG assistant backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
