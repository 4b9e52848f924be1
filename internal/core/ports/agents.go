package ports

import (
	"context"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
)

// PromptRequest addresses a stored prompt template by id.
type PromptRequest struct {
	// ID is the provider-side prompt identifier.
	ID        string
	Name      string
	Input     string
	Variables map[string]string
}

// PromptSubmitter runs a single-shot templated completion.
type PromptSubmitter interface {
	SubmitPrompt(ctx context.Context, req PromptRequest) (string, error)
}

// AgentReply is the raw answer of a conversational agent.
type AgentReply struct {
	Text     string
	ThreadID string
}

// ConversationAgent continues a multi-turn conversation.
// An empty threadID starts a new thread.
type ConversationAgent interface {
	SubmitConversation(ctx context.Context, threadID string, messages []domain.Message) (AgentReply, error)
}
