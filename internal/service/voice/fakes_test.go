package voice

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/rag-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/rag-assistant/backend/internal/service/rag"
)

var errUpstream = errors.New("upstream unavailable")

// fakeChain answers "answer: <query>" and records the histories it was given.
type fakeChain struct {
	mu        sync.Mutex
	histories [][]chat.Message
	err       error
	block     chan struct{}
}

func (f *fakeChain) Chat(ctx context.Context, query string, history []chat.Message) (rag.Result, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return rag.Result{}, ctx.Err()
		}
	}
	f.mu.Lock()
	f.histories = append(f.histories, history)
	f.mu.Unlock()
	if f.err != nil {
		return rag.Result{}, f.err
	}
	answer := "answer: " + query
	updated := chat.CloneHistory(history)
	updated = append(updated, chat.HumanMessage(query), chat.AIMessage(answer))
	return rag.Result{Answer: answer, StandaloneQuestion: query, ChatHistory: updated}, nil
}

// scriptedModel plays back one response per Generate call and records prompts.
type scriptedModel struct {
	mu      sync.Mutex
	bound   []*schema.ToolInfo
	prompts [][]*schema.Message
	script  []func(input []*schema.Message) (*schema.Message, error)
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, input)
	round := len(m.prompts) - 1
	if round >= len(m.script) {
		return schema.AssistantMessage("", nil), nil
	}
	return m.script[round](input)
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) BindTools(tools []*schema.ToolInfo) error {
	m.bound = tools
	return nil
}

func say(text string) func([]*schema.Message) (*schema.Message, error) {
	return func([]*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage(text, nil), nil
	}
}

func callTool(id, name, args string) func([]*schema.Message) (*schema.Message, error) {
	return func([]*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage("", []schema.ToolCall{{
			ID:       id,
			Function: schema.FunctionCall{Name: name, Arguments: args},
		}}), nil
	}
}

// echoToolResult speaks whatever the last tool message said.
func echoToolResult(input []*schema.Message) (*schema.Message, error) {
	last := input[len(input)-1]
	return schema.AssistantMessage("Here is what I found. "+last.Content, nil), nil
}
