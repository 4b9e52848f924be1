package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ewilliams-labs/tunnetilasi/internal/adapters/prompts"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/ports"
)

func newCatalog(t *testing.T) *prompts.Catalog {
	t.Helper()
	c, err := prompts.Default()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return c
}

// chatServer records the last request and answers with status and body.
func chatServer(t *testing.T, status int, body string, got *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_SubmitPrompt(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    bool
		wantReason ports.ProviderReason
	}{
		{
			name:   "Success",
			status: http.StatusOK,
			body:   `{"message":{"role":"assistant","content":"{\"subgenre\":\"doom metal\"}"}}`,
		},
		{
			name:       "Server error",
			status:     http.StatusInternalServerError,
			body:       `{"error":"bad"}`,
			wantErr:    true,
			wantReason: ports.ReasonBadStatus,
		},
		{
			name:       "Error field",
			status:     http.StatusOK,
			body:       `{"error":"model not found"}`,
			wantErr:    true,
			wantReason: ports.ReasonBadStatus,
		},
		{
			name:       "Empty content",
			status:     http.StatusOK,
			body:       `{"message":{"role":"assistant","content":"  "}}`,
			wantErr:    true,
			wantReason: ports.ReasonEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got chatRequest
			srv := chatServer(t, tt.status, tt.body, &got)
			client := NewClient(srv.URL, "", newCatalog(t))

			text, err := client.SubmitPrompt(context.Background(), ports.PromptRequest{
				Name:      "matcher",
				Input:     "fallback input",
				Variables: map[string]string{"emotion": "sad", "stress_level": "3", "event": "none"},
			})

			if (err != nil) != tt.wantErr {
				t.Fatalf("expected err=%v, got %v", tt.wantErr, err)
			}
			if tt.wantErr {
				var pe *ports.ProviderError
				if !errors.As(err, &pe) || pe.Reason != tt.wantReason {
					t.Fatalf("expected provider error %q, got %v", tt.wantReason, err)
				}
				return
			}
			if text != `{"subgenre":"doom metal"}` {
				t.Fatalf("unexpected text %q", text)
			}
			if got.Model != defaultModel {
				t.Fatalf("expected model %s, got %q", defaultModel, got.Model)
			}
			if got.Format != "json" {
				t.Fatalf("expected format json, got %q", got.Format)
			}
			if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
				t.Fatalf("expected system and user messages, got %+v", got.Messages)
			}
			if got.Messages[1].Content != "Analyze emotional state: sad, stress level: 3" {
				t.Fatalf("user message mismatch: %q", got.Messages[1].Content)
			}
		})
	}
}

func TestClient_SubmitPromptUnknown(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "", newCatalog(t))
	if _, err := client.SubmitPrompt(context.Background(), ports.PromptRequest{Name: "nope"}); err == nil {
		t.Fatal("expected error for unknown prompt")
	}
}

func TestClient_SubmitConversation(t *testing.T) {
	var got chatRequest
	srv := chatServer(t, http.StatusOK, `{"message":{"role":"assistant","content":"What happened at work?"}}`, &got)
	catalog := newCatalog(t)
	client := NewClient(srv.URL, "llama-test", catalog)

	reply, err := client.SubmitConversation(context.Background(), "ignored", []domain.Message{
		{Role: domain.RoleAssistant, Content: "Hi!"},
		{Role: domain.RoleUser, Content: "I'm stressed"},
	})
	if err != nil {
		t.Fatalf("SubmitConversation() error = %v", err)
	}
	if reply.Text != "What happened at work?" || reply.ThreadID != "" {
		t.Fatalf("unexpected reply %+v", reply)
	}

	p, _ := catalog.Get(emotionPrompt)
	if got.Model != "llama-test" || got.Format != "" {
		t.Fatalf("unexpected model/format %q/%q", got.Model, got.Format)
	}
	if len(got.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Content != p.System || got.Messages[3].Content != p.Reminder {
		t.Fatalf("system prompt or reminder mismatch")
	}
	if got.Messages[2].Role != "user" || got.Messages[2].Content != "I'm stressed" {
		t.Fatalf("user message mismatch: %+v", got.Messages[2])
	}
}

func TestClient_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, "", newCatalog(t))
	_, err := client.SubmitConversation(context.Background(), "", []domain.Message{{Role: domain.RoleUser, Content: "hi"}})

	var pe *ports.ProviderError
	if !errors.As(err, &pe) || pe.Reason != ports.ReasonUnavailable {
		t.Fatalf("expected unavailable provider error, got %v", err)
	}
}
