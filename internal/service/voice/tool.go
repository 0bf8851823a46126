package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/rag-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/rag-assistant/backend/internal/service/rag"
)

// ToolName is the name the agent model uses to call the knowledge base.
const ToolName = "rag_query"

const (
	toolDesc = "Use this tool when you need to answer questions based on the user's private documents " +
		"indexed in the RAG system. Always call this tool for factual or knowledge-type questions " +
		"about that custom content instead of guessing."
	queryDesc = "A clear, fully-formed question that should be answered using the indexed documents. " +
		"Extract this from the user's message."
)

// Chain runs one RAG turn over a history.
type Chain interface {
	Chat(ctx context.Context, query string, history []chat.Message) (rag.Result, error)
}

var _ tool.InvokableTool = (*RAGTool)(nil)

// RAGTool answers knowledge questions through the chain, carrying the chain
// transcript in the connection's Conversation.
type RAGTool struct {
	chain Chain
	conv  *Conversation
}

func NewRAGTool(chain Chain, conv *Conversation) *RAGTool {
	return &RAGTool{chain: chain, conv: conv}
}

func (t *RAGTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return ragToolInfo(), nil
}

func ragToolInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolName,
		Desc: toolDesc,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     queryDesc,
				Required: true,
			},
		}),
	}
}

type ragArgs struct {
	Query string `json:"query"`
}

type chainOutcome struct {
	result rag.Result
	err    error
}

// InvokableRun runs the chain on its own goroutine and waits for it. When ctx is
// cancelled first the result is discarded and the history is left untouched.
func (t *RAGTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var args ragArgs
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", fmt.Errorf("invalid %s arguments: %w", ToolName, err)
	}
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return "", rag.ErrEmptyQuery
	}
	if t.chain == nil {
		return "", errors.New("knowledge base unavailable")
	}

	history := t.conv.RAGHistory()
	done := make(chan chainOutcome, 1)
	go func() {
		result, err := t.chain.Chat(ctx, query, history)
		done <- chainOutcome{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case out := <-done:
		if out.err != nil {
			return "", out.err
		}
		t.conv.ReplaceRAGHistory(out.result.ChatHistory)
		log.Printf("[voice] rag_query answered query=%q history=%d", query, len(out.result.ChatHistory))
		return out.result.Answer, nil
	}
}
