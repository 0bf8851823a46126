package voice

import (
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/rag-assistant/backend/internal/model/chat"
)

const (
	DefaultInstructions = "You are a helpful voice assistant that can talk naturally with the user. " +
		"You have access to a knowledge base built from the user's documents. " +
		"Whenever the user asks a question that might be answered by those documents, " +
		"you MUST call the 'rag_query' tool with a clean version of the question, " +
		"then use the tool's result to form your final answer. " +
		"If the question is clearly outside the scope of the documents, answer normally. " +
		"Keep your responses clear, concise, and voice-friendly."

	DefaultGreeting = "Hey! I'm your RAG assistant. You can ask me questions based on your uploaded documents."
)

// Conversation is the state of one voice connection: the transcript the RAG
// chain sees and the spoken dialogue the agent model sees. It is never persisted.
type Conversation struct {
	mu           sync.Mutex
	instructions string
	ragHistory   []chat.Message
	dialogue     []*schema.Message
}

// NewConversation starts an empty conversation. Blank instructions fall back to
// DefaultInstructions.
func NewConversation(instructions string) *Conversation {
	c := &Conversation{}
	c.SetInstructions(instructions)
	return c
}

func (c *Conversation) Instructions() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.instructions
}

func (c *Conversation) SetInstructions(instructions string) {
	instructions = strings.TrimSpace(instructions)
	if instructions == "" {
		instructions = DefaultInstructions
	}
	c.mu.Lock()
	c.instructions = instructions
	c.mu.Unlock()
}

// RAGHistory returns a copy of the chain transcript.
func (c *Conversation) RAGHistory() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return chat.CloneHistory(c.ragHistory)
}

// ReplaceRAGHistory swaps in the transcript returned by the chain.
func (c *Conversation) ReplaceRAGHistory(history []chat.Message) {
	c.mu.Lock()
	c.ragHistory = chat.CloneHistory(history)
	c.mu.Unlock()
}

// Dialogue returns a copy of the user/assistant exchange seen by the agent model.
func (c *Conversation) Dialogue() []*schema.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*schema.Message, len(c.dialogue))
	copy(out, c.dialogue)
	return out
}

func (c *Conversation) appendDialogue(msgs ...*schema.Message) {
	c.mu.Lock()
	c.dialogue = append(c.dialogue, msgs...)
	c.mu.Unlock()
}

// Reset forgets both transcripts but keeps the instructions.
func (c *Conversation) Reset() {
	c.mu.Lock()
	c.ragHistory = nil
	c.dialogue = nil
	c.mu.Unlock()
}
