package rag

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/rag-assistant/backend/internal/model/chat"
)

// DefaultTopK is how many context fragments are retrieved per turn.
const DefaultTopK = 3

var ErrEmptyQuery = errors.New("query is required")

// Config tunes retrieval.
type Config struct {
	TopK int
}

// Result is the outcome of one conversational turn.
type Result struct {
	Answer string
	// StandaloneQuestion is what retrieval ran against. It is never persisted.
	StandaloneQuestion string
	Context            []*schema.Document
	// ChatHistory is the input history followed by Human(query) and AI(answer).
	ChatHistory []chat.Message
}

// Chain rewrites a query against prior turns, retrieves supporting context and
// generates a grounded answer.
type Chain struct {
	retriever retriever.Retriever
	topK      int
	rewrite   compose.Runnable[map[string]any, *schema.Message]
	answer    compose.Runnable[map[string]any, *schema.Message]
}

// NewChain compiles the rewrite and answer chains around chatModel.
func NewChain(ctx context.Context, chatModel model.ChatModel, r retriever.Retriever, cfg Config) (*Chain, error) {
	if chatModel == nil {
		return nil, errors.New("rag: chat model is required")
	}
	if r == nil {
		return nil, errors.New("rag: retriever is required")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	rewriteTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(contextualizeSystemPrompt),
		schema.MessagesPlaceholder("chat_history", true),
		schema.UserMessage("{input}"),
	)
	rewrite, err := compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(rewriteTemplate).
		AppendChatModel(chatModel).
		Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile rewrite chain: %w", err)
	}

	answerTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(answerSystemPrompt),
		schema.SystemMessage(contextSystemPrompt),
		schema.MessagesPlaceholder("chat_history", true),
		schema.UserMessage("{input}"),
	)
	answer, err := compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(answerTemplate).
		AppendChatModel(chatModel).
		Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile answer chain: %w", err)
	}

	return &Chain{
		retriever: r,
		topK:      topK,
		rewrite:   rewrite,
		answer:    answer,
	}, nil
}

// TopK reports the configured retrieval depth.
func (c *Chain) TopK() int {
	return c.topK
}

// Chat runs one turn. history is not modified; the returned ChatHistory is a new slice.
func (c *Chain) Chat(ctx context.Context, query string, history []chat.Message) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return Result{}, ErrEmptyQuery
	}

	prior := toSchemaMessages(history)

	question, err := c.standaloneQuestion(ctx, query, prior)
	if err != nil {
		return Result{}, err
	}

	docs, err := c.retrieve(ctx, question)
	if err != nil {
		return Result{}, err
	}

	out, err := c.answer.Invoke(ctx, map[string]any{
		"context":      formatDocuments(docs),
		"chat_history": prior,
		"input":        query,
	})
	if err != nil {
		return Result{}, fmt.Errorf("rag: generate answer: %w", err)
	}
	if out == nil {
		return Result{}, errors.New("rag: generate answer: empty model response")
	}
	answer := strings.TrimSpace(out.Content)

	updated := chat.CloneHistory(history)
	updated = append(updated, chat.HumanMessage(query), chat.AIMessage(answer))

	log.Printf("[rag] answered turn history=%d docs=%d rewritten=%t answer_len=%d", len(history), len(docs), question != query, len(answer))

	return Result{
		Answer:             answer,
		StandaloneQuestion: question,
		Context:            docs,
		ChatHistory:        updated,
	}, nil
}

// standaloneQuestion resolves references to earlier turns. Without history there
// is nothing to resolve and the query is used verbatim.
func (c *Chain) standaloneQuestion(ctx context.Context, query string, prior []*schema.Message) (string, error) {
	if len(prior) == 0 {
		return query, nil
	}

	out, err := c.rewrite.Invoke(ctx, map[string]any{
		"chat_history": prior,
		"input":        query,
	})
	if err != nil {
		return "", fmt.Errorf("rag: rewrite question: %w", err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return query, nil
	}
	return strings.TrimSpace(out.Content), nil
}

func (c *Chain) retrieve(ctx context.Context, question string) ([]*schema.Document, error) {
	docs, err := c.retriever.Retrieve(ctx, question, retriever.WithTopK(c.topK))
	if err != nil {
		return nil, fmt.Errorf("rag: retrieve context: %w", err)
	}
	if len(docs) > c.topK {
		docs = docs[:c.topK]
	}
	return docs, nil
}

func toSchemaMessages(history []chat.Message) []*schema.Message {
	if len(history) == 0 {
		return nil
	}

	out := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case chat.RoleHuman:
			out = append(out, schema.UserMessage(msg.Content))
		case chat.RoleAI:
			out = append(out, schema.AssistantMessage(msg.Content, nil))
		case chat.RoleSystem:
			out = append(out, schema.SystemMessage(msg.Content))
		}
	}
	return out
}

func formatDocuments(docs []*schema.Document) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if text := strings.TrimSpace(doc.Content); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}
