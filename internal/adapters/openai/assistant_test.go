package openai

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/ports"
)

// fakeAssistantAPI serves the thread endpoints. Runs report in_progress for
// pending polls before settling on final.
func fakeAssistantAPI(t *testing.T, pending int32, final string, sent *[]string) http.HandlerFunc {
	var polls atomic.Int32
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/threads":
			_, _ = w.Write([]byte(`{"id":"thread_new"}`))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/messages"):
			body, _ := io.ReadAll(r.Body)
			*sent = append(*sent, r.URL.Path+" "+string(body))
			_, _ = w.Write([]byte(`{"id":"msg_1"}`))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/runs"):
			_, _ = w.Write([]byte(`{"id":"run_1","status":"queued"}`))
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/runs/run_1"):
			if polls.Add(1) <= pending {
				_, _ = w.Write([]byte(`{"id":"run_1","status":"in_progress"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"run_1","status":"` + final + `","last_error":{"code":"server_error","message":"boom"}}`))
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/messages"):
			assert.Equal(t, "1", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`{"data":[{"role":"assistant","content":[{"type":"text","text":{"value":"Tell me more about work."}}]}]}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

var history = []domain.Message{
	{Role: domain.RoleAssistant, Content: "Hi!"},
	{Role: domain.RoleUser, Content: "work is crushing me"},
}

func TestAssistantNewThread(t *testing.T) {
	var sent []string
	client := newTestClient(t, fakeAssistantAPI(t, 2, "completed", &sent))
	a := NewAssistant(client, "asst_1", WithPolling(time.Millisecond, time.Second))

	reply, err := a.SubmitConversation(context.Background(), "", history)
	require.NoError(t, err)
	assert.Equal(t, "Tell me more about work.", reply.Text)
	assert.Equal(t, "thread_new", reply.ThreadID)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "/threads/thread_new/messages")
	assert.Contains(t, sent[0], "work is crushing me")
}

func TestAssistantExistingThread(t *testing.T) {
	var sent []string
	client := newTestClient(t, fakeAssistantAPI(t, 0, "completed", &sent))
	a := NewAssistant(client, "asst_1", WithPolling(time.Millisecond, time.Second))

	reply, err := a.SubmitConversation(context.Background(), "thread_old", history)
	require.NoError(t, err)
	assert.Equal(t, "thread_old", reply.ThreadID)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "/threads/thread_old/messages")
}

func TestAssistantPollTimeout(t *testing.T) {
	var sent []string
	client := newTestClient(t, fakeAssistantAPI(t, 1<<30, "completed", &sent))
	a := NewAssistant(client, "asst_1", WithPolling(5*time.Millisecond, 30*time.Millisecond))

	_, err := a.SubmitConversation(context.Background(), "thread_old", history)
	requireProviderReason(t, err, ports.ReasonTimeout)
}

func TestAssistantRunFailed(t *testing.T) {
	var sent []string
	client := newTestClient(t, fakeAssistantAPI(t, 1, "failed", &sent))
	a := NewAssistant(client, "asst_1", WithPolling(time.Millisecond, time.Second))

	_, err := a.SubmitConversation(context.Background(), "thread_old", history)
	requireProviderReason(t, err, ports.ReasonRunFailed)
	assert.Contains(t, err.Error(), "boom")
}

func TestAssistantNeedsUserMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	a := NewAssistant(client, "asst_1")

	_, err := a.SubmitConversation(context.Background(), "", []domain.Message{{Role: domain.RoleAssistant, Content: "Hi!"}})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
