package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/zhouzirui/rag-assistant/backend/internal/bootstrap"
	"github.com/zhouzirui/rag-assistant/backend/internal/config"
	"github.com/zhouzirui/rag-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/rag-assistant/backend/internal/service/rag"
)

var demoQuestions = []string{
	"Hello, can you tell me what HackRF is?",
	"Where can it be used?",
}

func main() {
	demo := flag.Bool("demo", false, "replay the two-question HackRF conversation and exit")
	showContext := flag.Bool("context", false, "print the retrieved fragments for each turn")
	timeout := flag.Duration("timeout", 2*time.Minute, "timeout per turn")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] failed to load .env, using system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.OpenRetrieval(cfg.Retrieval)
	if err != nil {
		log.Fatalf("failed to connect retrieval backends: %v", err)
	}
	defer rt.Close()

	chain, err := bootstrap.NewChain(ctx, cfg, rt)
	if err != nil {
		log.Fatalf("failed to build RAG chain: %v", err)
	}

	s := &session{
		chain:       chain,
		timeout:     *timeout,
		showContext: *showContext,
		you:         color.New(color.FgGreen, color.Bold).SprintFunc(),
		bot:         color.New(color.FgCyan, color.Bold).SprintFunc(),
		dim:         color.New(color.Faint).SprintFunc(),
		warn:        color.New(color.FgRed).SprintFunc(),
	}

	if *demo {
		for i, q := range demoQuestions {
			fmt.Printf("%s %s\n", s.you(fmt.Sprintf("Q%d:", i+1)), q)
			if !s.turn(ctx, q) {
				os.Exit(1)
			}
		}
		return
	}

	fmt.Println(s.you("RAG chat"))
	fmt.Println("Type a question and press Enter. Commands: /history, /reset, exit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(s.you("You: "))
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(input) {
		case "":
			continue
		case "exit", "quit":
			return
		case "/history":
			for _, line := range chat.FormatHistory(s.history) {
				fmt.Println(s.dim(line))
			}
			continue
		case "/reset":
			s.history = nil
			fmt.Println(s.dim("history cleared"))
			continue
		}
		s.turn(ctx, input)
		if ctx.Err() != nil {
			return
		}
	}
}

type session struct {
	chain       *rag.Chain
	history     []chat.Message
	timeout     time.Duration
	showContext bool

	you, bot, dim, warn func(a ...any) string
}

func (s *session) turn(ctx context.Context, query string) bool {
	turnCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.chain.Chat(turnCtx, query, s.history)
	if err != nil {
		fmt.Fprintln(os.Stderr, s.warn("Error: "+err.Error()))
		return false
	}
	s.history = result.ChatHistory

	if result.StandaloneQuestion != query {
		fmt.Println(s.dim("(searched for: " + result.StandaloneQuestion + ")"))
	}
	if s.showContext {
		for i, doc := range result.Context {
			source, _ := doc.MetaData["source"].(string)
			fmt.Println(s.dim(fmt.Sprintf("[%d] %s score=%.3f", i+1, source, doc.Score())))
		}
	}
	fmt.Printf("%s %s\n\n", s.bot(chat.RoleAI.Label()+":"), result.Answer)
	return true
}
