package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/ports"
	"github.com/ewilliams-labs/tunnetilasi/internal/logging"
)

var _ ports.ConversationAgent = (*Assistant)(nil)

const (
	DefaultPollInterval = time.Second
	DefaultMaxWait      = 60 * time.Second
)

// Run statuses that mean the run is still working.
const (
	runQueued     = "queued"
	runInProgress = "in_progress"
	runCompleted  = "completed"
)

// Assistant keeps the conversation in an OpenAI thread and polls runs of a
// configured assistant.
type Assistant struct {
	client       *Client
	assistantID  string
	pollInterval time.Duration
	maxWait      time.Duration
}

type AssistantOption func(*Assistant)

func WithPolling(interval, maxWait time.Duration) AssistantOption {
	return func(a *Assistant) {
		if interval > 0 {
			a.pollInterval = interval
		}
		if maxWait > 0 {
			a.maxWait = maxWait
		}
	}
}

func NewAssistant(client *Client, assistantID string, opts ...AssistantOption) *Assistant {
	a := &Assistant{
		client:       client,
		assistantID:  assistantID,
		pollInterval: DefaultPollInterval,
		maxWait:      DefaultMaxWait,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type idObject struct {
	ID string `json:"id"`
}

type messageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type runRequest struct {
	AssistantID string `json:"assistant_id"`
}

type run struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

type threadMessages struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

// SubmitConversation implements ports.ConversationAgent. Only the newest user
// message is sent; earlier turns already live in the thread.
func (a *Assistant) SubmitConversation(ctx context.Context, threadID string, history []domain.Message) (reply ports.AgentReply, err error) {
	defer observe("assistant", time.Now(), &err)

	latest, ok := latestUserMessage(history)
	if !ok {
		return ports.AgentReply{}, &domain.ValidationError{Field: "messages", Message: "no user message to send"}
	}

	if threadID == "" {
		var thread idObject
		if err := a.client.do(ctx, http.MethodPost, "/threads", struct{}{}, &thread); err != nil {
			return ports.AgentReply{}, fmt.Errorf("openai: create thread: %w", err)
		}
		threadID = thread.ID
		logging.Ctx(ctx).Debug().Str("thread_id", threadID).Msg("assistant thread created")
	}
	threadPath := "/threads/" + url.PathEscape(threadID)

	if err := a.client.do(ctx, http.MethodPost, threadPath+"/messages", messageRequest{Role: "user", Content: latest}, nil); err != nil {
		return ports.AgentReply{}, fmt.Errorf("openai: add message: %w", err)
	}

	var r run
	if err := a.client.do(ctx, http.MethodPost, threadPath+"/runs", runRequest{AssistantID: a.assistantID}, &r); err != nil {
		return ports.AgentReply{}, fmt.Errorf("openai: create run: %w", err)
	}
	if r, err = a.await(ctx, threadPath, r); err != nil {
		return ports.AgentReply{}, fmt.Errorf("openai: run %s: %w", r.ID, err)
	}

	var msgs threadMessages
	if err := a.client.do(ctx, http.MethodGet, threadPath+"/messages?limit=1&order=desc", nil, &msgs); err != nil {
		return ports.AgentReply{}, fmt.Errorf("openai: list messages: %w", err)
	}
	if len(msgs.Data) == 0 || msgs.Data[0].Role != "assistant" {
		return ports.AgentReply{}, ports.NewProviderError(providerName, ports.ReasonEmpty, fmt.Errorf("no assistant reply in thread"))
	}
	for _, c := range msgs.Data[0].Content {
		if c.Type == "text" && strings.TrimSpace(c.Text.Value) != "" {
			return ports.AgentReply{Text: c.Text.Value, ThreadID: threadID}, nil
		}
	}
	return ports.AgentReply{}, ports.NewProviderError(providerName, ports.ReasonEmpty, fmt.Errorf("assistant reply has no text"))
}

// await polls the run while it is queued or in progress, for at most maxWait.
func (a *Assistant) await(ctx context.Context, threadPath string, r run) (run, error) {
	deadline := time.Now().Add(a.maxWait)
	for r.Status == runQueued || r.Status == runInProgress {
		if time.Now().Add(a.pollInterval).After(deadline) {
			return r, ports.NewProviderError(providerName, ports.ReasonTimeout, fmt.Errorf("still %s after %s", r.Status, a.maxWait))
		}
		if err := sleepWithContext(ctx, a.pollInterval); err != nil {
			return r, classify(err)
		}
		if err := a.client.do(ctx, http.MethodGet, threadPath+"/runs/"+url.PathEscape(r.ID), nil, &r); err != nil {
			return r, err
		}
	}
	if r.Status != runCompleted {
		cause := fmt.Errorf("run ended with status %s", r.Status)
		if r.LastError != nil && r.LastError.Message != "" {
			cause = fmt.Errorf("run ended with status %s: %s", r.Status, r.LastError.Message)
		}
		return r, ports.NewProviderError(providerName, ports.ReasonRunFailed, cause)
	}
	return r, nil
}

func latestUserMessage(history []domain.Message) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.RoleUser {
			return history[i].Content, true
		}
	}
	return "", false
}
