package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/rag-assistant/backend/internal/model/chat"
)

func newTestChain(t *testing.T, m *scriptedModel, r *fakeRetriever, topK int) *Chain {
	t.Helper()
	c, err := NewChain(context.Background(), m, r, Config{TopK: topK})
	require.NoError(t, err)
	return c
}

func TestChatEmptyHistorySkipsRewrite(t *testing.T) {
	m := &scriptedModel{}
	r := &fakeRetriever{docs: hackrfDocs()}
	c := newTestChain(t, m, r, 0)

	res, err := c.Chat(context.Background(), "What is HackRF?", nil)
	require.NoError(t, err)

	assert.Empty(t, m.rewrites, "rewrite must not run without history")
	require.Equal(t, []string{"What is HackRF?"}, r.queries)
	assert.Equal(t, "What is HackRF?", res.StandaloneQuestion)
	assert.Equal(t, []int{DefaultTopK}, r.topKs)
	assert.Len(t, res.Context, DefaultTopK)
}

func TestChatAppendsRawQueryAndAnswer(t *testing.T) {
	m := &scriptedModel{
		rewriteFn: func([]*schema.Message) (string, error) { return "Where can HackRF be used?", nil },
		answerFn:  func([]*schema.Message) (string, error) { return "  It is used in RF research.  ", nil },
	}
	r := &fakeRetriever{docs: hackrfDocs()}
	c := newTestChain(t, m, r, 2)

	history := []chat.Message{chat.HumanMessage("What is HackRF?"), chat.AIMessage("An SDR.")}
	res, err := c.Chat(context.Background(), "Where can it be used?", history)
	require.NoError(t, err)

	require.Len(t, res.ChatHistory, len(history)+2)
	assert.Equal(t, chat.HumanMessage("Where can it be used?"), res.ChatHistory[2])
	assert.Equal(t, chat.AIMessage("It is used in RF research."), res.ChatHistory[3])
	assert.Equal(t, "It is used in RF research.", res.Answer)
	assert.Equal(t, "Where can HackRF be used?", res.StandaloneQuestion)
	assert.Len(t, history, 2, "input history must not grow")
	assert.Len(t, res.Context, 2)
}

func TestChatAnswerPromptCarriesContextHistoryAndRawQuery(t *testing.T) {
	m := &scriptedModel{
		rewriteFn: func([]*schema.Message) (string, error) { return "Where can HackRF be used?", nil },
	}
	r := &fakeRetriever{docs: hackrfDocs()}
	c := newTestChain(t, m, r, 3)

	history := []chat.Message{chat.HumanMessage("What is HackRF?"), chat.AIMessage("An SDR.")}
	_, err := c.Chat(context.Background(), "Where can it be used?", history)
	require.NoError(t, err)

	require.Len(t, m.answers, 1)
	prompt := m.answers[0]
	require.Len(t, prompt, 5)
	assert.Equal(t, schema.System, prompt[0].Role)
	assert.Contains(t, prompt[0].Content, "120 words")
	assert.Equal(t, schema.System, prompt[1].Role)
	assert.True(t, strings.HasPrefix(prompt[1].Content, "Context: "))
	assert.Contains(t, prompt[1].Content, "GNU Radio")
	assert.NotContains(t, prompt[1].Content, "beyond top-k")
	assert.Equal(t, schema.User, prompt[2].Role)
	assert.Equal(t, schema.Assistant, prompt[3].Role)
	assert.Equal(t, schema.User, prompt[4].Role)
	assert.Equal(t, "Where can it be used?", prompt[4].Content)
}

func TestChatHackRFScenario(t *testing.T) {
	m := &scriptedModel{
		rewriteFn: func(input []*schema.Message) (string, error) {
			last := input[len(input)-1].Content
			for _, msg := range input[1 : len(input)-1] {
				if strings.Contains(msg.Content, "HackRF") && strings.Contains(last, " it ") {
					return strings.Replace(last, " it ", " HackRF ", 1), nil
				}
			}
			return last, nil
		},
		answerFn: func(input []*schema.Message) (string, error) {
			return "HackRF One is a wideband software defined radio used for RF experimentation.", nil
		},
	}
	r := &fakeRetriever{docs: hackrfDocs()}
	c := newTestChain(t, m, r, 3)
	ctx := context.Background()

	first, err := c.Chat(ctx, "What is HackRF?", nil)
	require.NoError(t, err)
	assert.Len(t, first.ChatHistory, 2)
	assert.Less(t, len(strings.Fields(first.Answer)), 120)

	second, err := c.Chat(ctx, "Where can it be used?", first.ChatHistory)
	require.NoError(t, err)
	assert.Len(t, second.ChatHistory, 4)
	assert.Contains(t, second.StandaloneQuestion, "HackRF")
	assert.Equal(t, "Where can HackRF be used?", r.queries[1])
	assert.Equal(t, "Where can it be used?", second.ChatHistory[2].Content)
}

func TestChatBlankRewriteFallsBackToQuery(t *testing.T) {
	m := &scriptedModel{
		rewriteFn: func([]*schema.Message) (string, error) { return "   ", nil },
	}
	r := &fakeRetriever{}
	c := newTestChain(t, m, r, 3)

	res, err := c.Chat(context.Background(), "and then?", []chat.Message{chat.HumanMessage("a"), chat.AIMessage("b")})
	require.NoError(t, err)
	assert.Equal(t, "and then?", res.StandaloneQuestion)
}

func TestChatRejectsBlankQuery(t *testing.T) {
	m := &scriptedModel{}
	r := &fakeRetriever{}
	c := newTestChain(t, m, r, 3)

	_, err := c.Chat(context.Background(), "  ", nil)
	require.ErrorIs(t, err, ErrEmptyQuery)
	assert.Empty(t, r.queries)
	assert.Empty(t, m.answers)
}

func TestChatSurfacesUpstreamFailures(t *testing.T) {
	history := []chat.Message{chat.HumanMessage("a"), chat.AIMessage("b")}

	t.Run("rewrite", func(t *testing.T) {
		m := &scriptedModel{rewriteFn: func([]*schema.Message) (string, error) { return "", errUpstream }}
		r := &fakeRetriever{}
		_, err := newTestChain(t, m, r, 3).Chat(context.Background(), "q", history)
		require.ErrorContains(t, err, errUpstream.Error())
		assert.Empty(t, r.queries)
	})

	t.Run("retrieve", func(t *testing.T) {
		m := &scriptedModel{}
		r := &fakeRetriever{err: errUpstream}
		_, err := newTestChain(t, m, r, 3).Chat(context.Background(), "q", nil)
		require.ErrorIs(t, err, errUpstream)
		assert.Empty(t, m.answers)
	})

	t.Run("answer", func(t *testing.T) {
		m := &scriptedModel{answerFn: func([]*schema.Message) (string, error) { return "", errUpstream }}
		r := &fakeRetriever{}
		_, err := newTestChain(t, m, r, 3).Chat(context.Background(), "q", nil)
		require.ErrorContains(t, err, errUpstream.Error())
	})
}

func TestNewChainValidatesDependencies(t *testing.T) {
	_, err := NewChain(context.Background(), nil, &fakeRetriever{}, Config{})
	assert.Error(t, err)

	_, err = NewChain(context.Background(), &scriptedModel{}, nil, Config{})
	assert.Error(t, err)
}

func TestToSchemaMessagesMapsEveryRole(t *testing.T) {
	got := toSchemaMessages([]chat.Message{
		chat.SystemMessage("s"),
		chat.HumanMessage("h"),
		chat.AIMessage("a"),
	})
	require.Len(t, got, 3)
	assert.Equal(t, schema.System, got[0].Role)
	assert.Equal(t, schema.User, got[1].Role)
	assert.Equal(t, schema.Assistant, got[2].Role)
}
