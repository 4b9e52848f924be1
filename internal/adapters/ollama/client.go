// Package ollama runs the agents against a local Ollama instance. Ollama has
// no stored prompts or threads, so prompts are rendered from the catalog and
// the whole conversation is resent on every turn.
package ollama

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ewilliams-labs/tunnetilasi/internal/adapters/prompts"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/ports"
	"github.com/ewilliams-labs/tunnetilasi/internal/metrics"
)

const (
	providerName   = "ollama"
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "llama3.1:8b"
	emotionPrompt  = prompts.EmotionDetection
	requestTimeout = 120 * time.Second
)

var (
	_ ports.PromptSubmitter   = (*Client)(nil)
	_ ports.ConversationAgent = (*Client)(nil)
)

type Client struct {
	baseURL    string
	model      string
	catalog    *prompts.Catalog
	httpClient *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

func NewClient(baseURL, model string, catalog *prompts.Catalog) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		catalog: catalog,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// SubmitPrompt implements ports.PromptSubmitter. The stored prompt id is
// ignored; the prompt is looked up by name.
func (c *Client) SubmitPrompt(ctx context.Context, req ports.PromptRequest) (text string, err error) {
	start := time.Now()
	defer func() { metrics.RecordAgentCall(providerName, "prompt", time.Since(start), err) }()

	system, input, err := c.catalog.Render(req.Name, req.Variables)
	if err != nil {
		return "", fmt.Errorf("ollama: submit prompt: %w", err)
	}
	if input == "" {
		input = req.Input
	}

	messages := []chatMessage{{Role: "user", Content: input}}
	if system != "" {
		messages = append([]chatMessage{{Role: "system", Content: system}}, messages...)
	}
	return c.chat(ctx, chatRequest{Model: c.model, Messages: messages, Format: "json"})
}

// SubmitConversation implements ports.ConversationAgent. The returned thread
// id is always empty.
func (c *Client) SubmitConversation(ctx context.Context, _ string, history []domain.Message) (reply ports.AgentReply, err error) {
	start := time.Now()
	defer func() { metrics.RecordAgentCall(providerName, "conversation", time.Since(start), err) }()

	p, ok := c.catalog.Get(emotionPrompt)
	if !ok {
		return ports.AgentReply{}, fmt.Errorf("ollama: conversation: prompt %q missing from catalog", emotionPrompt)
	}

	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: p.System})
	for _, m := range history {
		messages = append(messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	// Small local models drift from the format after a few turns.
	if p.Reminder != "" {
		messages = append(messages, chatMessage{Role: "system", Content: p.Reminder})
	}

	text, err := c.chat(ctx, chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return ports.AgentReply{}, err
	}
	return ports.AgentReply{Text: text}, nil
}

func (c *Client) chat(ctx context.Context, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", ports.NewProviderError(providerName, transportReason(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", ports.NewProviderError(providerName, ports.ReasonBadStatus, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", ports.NewProviderError(providerName, ports.ReasonBadStatus, fmt.Errorf("decode response: %w", err))
	}
	if parsed.Error != "" {
		return "", ports.NewProviderError(providerName, ports.ReasonBadStatus, errors.New(parsed.Error))
	}
	if strings.TrimSpace(parsed.Message.Content) == "" {
		return "", ports.NewProviderError(providerName, ports.ReasonEmpty, errors.New("empty response"))
	}
	return parsed.Message.Content, nil
}

func transportReason(err error) ports.ProviderReason {
	var ne net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return ports.ReasonCanceled
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return ports.ReasonTimeout
	default:
		return ports.ReasonUnavailable
	}
}
