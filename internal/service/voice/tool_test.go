package voice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/rag-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/rag-assistant/backend/internal/service/rag"
)

func TestRAGToolInfo(t *testing.T) {
	info, err := NewRAGTool(&fakeChain{}, NewConversation("")).Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rag_query", info.Name)
	assert.NotEmpty(t, info.Desc)
	assert.NotNil(t, info.ParamsOneOf)
}

func TestRAGToolCarriesHistoryAcrossCalls(t *testing.T) {
	chain := &fakeChain{}
	conv := NewConversation("")
	ragTool := NewRAGTool(chain, conv)
	ctx := context.Background()

	answer, err := ragTool.InvokableRun(ctx, `{"query":"What is HackRF?"}`)
	require.NoError(t, err)
	assert.Equal(t, "answer: What is HackRF?", answer)

	_, err = ragTool.InvokableRun(ctx, `{"query":"What frequencies does it cover?"}`)
	require.NoError(t, err)

	require.Len(t, chain.histories, 2)
	assert.Empty(t, chain.histories[0])
	assert.Len(t, chain.histories[1], 2)

	history := conv.RAGHistory()
	require.Len(t, history, 4)
	assert.Equal(t, chat.RoleHuman, history[2].Role)
	assert.Equal(t, "What frequencies does it cover?", history[2].Content)
}

func TestRAGToolRejectsBadArguments(t *testing.T) {
	chain := &fakeChain{}
	ragTool := NewRAGTool(chain, NewConversation(""))

	_, err := ragTool.InvokableRun(context.Background(), `not json`)
	require.Error(t, err)

	_, err = ragTool.InvokableRun(context.Background(), `{"query":"  "}`)
	require.ErrorIs(t, err, rag.ErrEmptyQuery)
	assert.Empty(t, chain.histories)
}

func TestRAGToolFailureKeepsHistory(t *testing.T) {
	conv := NewConversation("")
	conv.ReplaceRAGHistory([]chat.Message{chat.HumanMessage("q"), chat.AIMessage("a")})
	ragTool := NewRAGTool(&fakeChain{err: errUpstream}, conv)

	_, err := ragTool.InvokableRun(context.Background(), `{"query":"next"}`)
	require.ErrorIs(t, err, errUpstream)
	assert.Len(t, conv.RAGHistory(), 2)
}

func TestRAGToolHonorsCancellation(t *testing.T) {
	chain := &fakeChain{block: make(chan struct{})}
	conv := NewConversation("")
	ragTool := NewRAGTool(chain, conv)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := ragTool.InvokableRun(ctx, `{"query":"slow"}`)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, conv.RAGHistory())
}
