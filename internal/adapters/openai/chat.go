package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/ports"
)

var _ ports.ConversationAgent = (*Chat)(nil)

const (
	chatTemperature = 0.7
	chatMaxTokens   = 500
)

// Chat holds the conversation locally and resends it on every turn.
type Chat struct {
	client *Client
	system string
}

func NewChat(client *Client, systemPrompt string) *Chat {
	return &Chat{client: client, system: systemPrompt}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatReply struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// SubmitConversation implements ports.ConversationAgent. Chat has no server
// side thread, so threadID is ignored and never returned.
func (c *Chat) SubmitConversation(ctx context.Context, _ string, history []domain.Message) (reply ports.AgentReply, err error) {
	defer observe("chat", time.Now(), &err)

	body := chatRequest{
		Model:       c.client.model,
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
		Messages:    make([]chatMessage, 0, len(history)+1),
	}
	if c.system != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: c.system})
	}
	for _, m := range history {
		body.Messages = append(body.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	var out chatReply
	if err := c.client.do(ctx, http.MethodPost, "/chat/completions", body, &out); err != nil {
		return ports.AgentReply{}, fmt.Errorf("openai: chat: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return ports.AgentReply{}, ports.NewProviderError(providerName, ports.ReasonEmpty, fmt.Errorf("chat completion has no content"))
	}
	return ports.AgentReply{Text: out.Choices[0].Message.Content}, nil
}
