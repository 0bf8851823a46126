package rag

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

// scriptedModel answers rewrite and answer prompts with canned replies and records
// every prompt it receives.
type scriptedModel struct {
	mu        sync.Mutex
	rewrites  [][]*schema.Message
	answers   [][]*schema.Message
	rewriteFn func(input []*schema.Message) (string, error)
	answerFn  func(input []*schema.Message) (string, error)
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(input) > 0 && strings.Contains(input[0].Content, "standalone question") {
		m.rewrites = append(m.rewrites, input)
		if m.rewriteFn == nil {
			return schema.AssistantMessage(input[len(input)-1].Content, nil), nil
		}
		text, err := m.rewriteFn(input)
		if err != nil {
			return nil, err
		}
		return schema.AssistantMessage(text, nil), nil
	}

	m.answers = append(m.answers, input)
	if m.answerFn == nil {
		return schema.AssistantMessage("answer", nil), nil
	}
	text, err := m.answerFn(input)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(text, nil), nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) BindTools(_ []*schema.ToolInfo) error {
	return nil
}

type fakeRetriever struct {
	mu      sync.Mutex
	queries []string
	topKs   []int
	docs    []*schema.Document
	err     error
}

func (r *fakeRetriever) Retrieve(_ context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	options := retriever.GetCommonOptions(&retriever.Options{}, opts...)
	topK := 0
	if options.TopK != nil {
		topK = *options.TopK
	}
	r.queries = append(r.queries, query)
	r.topKs = append(r.topKs, topK)

	if r.err != nil {
		return nil, r.err
	}
	return r.docs, nil
}

var errUpstream = errors.New("upstream unavailable")

func hackrfDocs() []*schema.Document {
	return []*schema.Document{
		{ID: "1", Content: "HackRF One is an open source software defined radio peripheral covering 1 MHz to 6 GHz."},
		{ID: "2", Content: "HackRF is used for wireless security research, RF prototyping and education."},
		{ID: "3", Content: "It connects over USB and works with GNU Radio."},
		{ID: "4", Content: "This fragment is beyond top-k."},
	}
}
