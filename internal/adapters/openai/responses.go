package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ewilliams-labs/tunnetilasi/internal/adapters/prompts"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/ports"
)

var _ ports.PromptSubmitter = (*Responses)(nil)

// Responses runs stored prompts through the Responses API. Prompts without a
// stored id are rendered from the catalog and sent as instructions and input.
type Responses struct {
	client  *Client
	catalog *prompts.Catalog
}

func NewResponses(client *Client, catalog *prompts.Catalog) *Responses {
	return &Responses{client: client, catalog: catalog}
}

type promptRef struct {
	ID        string            `json:"id"`
	Variables map[string]string `json:"variables,omitempty"`
}

type responsesRequest struct {
	Model        string     `json:"model,omitempty"`
	Prompt       *promptRef `json:"prompt,omitempty"`
	Instructions string     `json:"instructions,omitempty"`
	Input        string     `json:"input"`
}

type outputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outputItem struct {
	Type    string          `json:"type"`
	Role    string          `json:"role"`
	Content []outputContent `json:"content"`
}

type responsesReply struct {
	Status     string       `json:"status"`
	OutputText string       `json:"output_text"`
	Output     []outputItem `json:"output"`
}

// text picks the reply text: output_text, then the first message item, then
// any output_text content anywhere in the output.
func (r responsesReply) text() string {
	if strings.TrimSpace(r.OutputText) != "" {
		return r.OutputText
	}
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if strings.TrimSpace(c.Text) != "" {
				return c.Text
			}
		}
		break
	}
	for _, item := range r.Output {
		for _, c := range item.Content {
			if c.Type == "output_text" && strings.TrimSpace(c.Text) != "" {
				return c.Text
			}
		}
	}
	return ""
}

// SubmitPrompt implements ports.PromptSubmitter.
func (r *Responses) SubmitPrompt(ctx context.Context, req ports.PromptRequest) (text string, err error) {
	defer observe("responses", time.Now(), &err)

	body := responsesRequest{Input: req.Input}
	switch {
	case req.ID != "":
		body.Prompt = &promptRef{ID: req.ID, Variables: req.Variables}
	case r.catalog != nil && req.Name != "":
		system, input, err := r.catalog.Render(req.Name, req.Variables)
		if err != nil {
			return "", fmt.Errorf("openai: submit prompt: %w", err)
		}
		body.Model = r.client.model
		body.Instructions = system
		if input != "" {
			body.Input = input
		}
	default:
		return "", fmt.Errorf("openai: submit prompt: %w", errors.New("no prompt id or catalog entry"))
	}

	var reply responsesReply
	if err := r.client.do(ctx, http.MethodPost, "/responses", body, &reply); err != nil {
		return "", fmt.Errorf("openai: submit prompt: %w", err)
	}
	text = reply.text()
	if strings.TrimSpace(text) == "" {
		return "", ports.NewProviderError(providerName, ports.ReasonEmpty, fmt.Errorf("response %s has no text", reply.Status))
	}
	return text, nil
}
