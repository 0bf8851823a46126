package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// DefaultMaxRounds bounds how many times the model is called per turn.
const DefaultMaxRounds = 4

var (
	ErrEmptyTranscript = errors.New("transcript is empty")
	ErrNoReply         = errors.New("agent produced no reply")
)

// ToolStep records one knowledge base lookup made during a turn.
type ToolStep struct {
	Query  string
	Answer string
	Err    string
}

// Reply is the outcome of a voice turn.
type Reply struct {
	Text  string
	Steps []ToolStep
}

// Agent drives the conversational model and lets it call rag_query.
type Agent struct {
	model     model.ChatModel
	chain     Chain
	maxRounds int
}

// NewAgent binds the rag_query tool to chatModel. chatModel must not be shared
// with components that bind other tools.
func NewAgent(chatModel model.ChatModel, chain Chain) (*Agent, error) {
	if chatModel == nil {
		return nil, errors.New("voice: chat model is required")
	}
	if err := chatModel.BindTools([]*schema.ToolInfo{ragToolInfo()}); err != nil {
		return nil, fmt.Errorf("voice: bind tools: %w", err)
	}
	return &Agent{model: chatModel, chain: chain, maxRounds: DefaultMaxRounds}, nil
}

// Respond answers one user utterance within conv.
func (a *Agent) Respond(ctx context.Context, conv *Conversation, transcript string) (Reply, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return Reply{}, ErrEmptyTranscript
	}

	ragTool := NewRAGTool(a.chain, conv)
	user := schema.UserMessage(transcript)

	msgs := make([]*schema.Message, 0, 8)
	msgs = append(msgs, schema.SystemMessage(conv.Instructions()))
	msgs = append(msgs, conv.Dialogue()...)
	msgs = append(msgs, user)

	var reply Reply
	for round := 0; round < a.maxRounds; round++ {
		out, err := a.model.Generate(ctx, msgs)
		if err != nil {
			return Reply{}, fmt.Errorf("voice: generate: %w", err)
		}
		if out == nil {
			return Reply{}, ErrNoReply
		}

		if len(out.ToolCalls) == 0 {
			reply.Text = strings.TrimSpace(out.Content)
			break
		}

		msgs = append(msgs, out)
		for _, call := range out.ToolCalls {
			result, step, err := a.runTool(ctx, ragTool, call)
			if err != nil {
				return Reply{}, err
			}
			if step != nil {
				reply.Steps = append(reply.Steps, *step)
			}
			msgs = append(msgs, schema.ToolMessage(result, call.ID))
		}
	}

	if reply.Text == "" {
		// out of rounds, or an empty final message: speak the last knowledge base answer
		for i := len(reply.Steps) - 1; i >= 0; i-- {
			if reply.Steps[i].Answer != "" {
				reply.Text = reply.Steps[i].Answer
				break
			}
		}
	}
	if reply.Text == "" {
		return Reply{}, ErrNoReply
	}

	conv.appendDialogue(user, schema.AssistantMessage(reply.Text, nil))
	log.Printf("[voice] turn done tool_calls=%d reply_len=%d", len(reply.Steps), len(reply.Text))
	return reply, nil
}

// runTool executes one tool call. Tool failures are reported back to the model;
// only a cancelled ctx aborts the turn.
func (a *Agent) runTool(ctx context.Context, ragTool *RAGTool, call schema.ToolCall) (string, *ToolStep, error) {
	if call.Function.Name != ToolName {
		return fmt.Sprintf("error: unknown tool %q", call.Function.Name), nil, nil
	}

	answer, err := ragTool.InvokableRun(ctx, call.Function.Arguments)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", nil, ctxErr
	}

	step := &ToolStep{Query: queryFromArgs(call.Function.Arguments)}
	if err != nil {
		log.Printf("[voice] rag_query failed: %v", err)
		step.Err = err.Error()
		return "error: " + err.Error(), step, nil
	}
	step.Answer = answer
	return answer, step, nil
}

func queryFromArgs(raw string) string {
	var args ragArgs
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return ""
	}
	return strings.TrimSpace(args.Query)
}
