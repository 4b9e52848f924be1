package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/ports"
)

const (
	verdictReply  = `Thanks for sharing. {"emotion": "angry", "confidence": 0.9, "context": "deadline at work", "reasoning": "short clipped sentences"}`
	selectionJSON = `{"Selection":[{"artist":"Mayhem","link":"x"},{"artist":"Gorgoroth","link":"y"}]}`
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// --- Mocks ---

// mockConversation replays queued replies and records what it was sent.
type mockConversation struct {
	mu      sync.Mutex
	replies []ports.AgentReply
	errs    []error
	calls   [][]domain.Message
	// entered and release, when set, hold the call open until released.
	entered chan struct{}
	release chan struct{}
}

func (m *mockConversation) SubmitConversation(ctx context.Context, threadID string, messages []domain.Message) (ports.AgentReply, error) {
	if m.entered != nil {
		m.entered <- struct{}{}
		select {
		case <-m.release:
		case <-ctx.Done():
			return ports.AgentReply{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, messages)
	i := len(m.calls) - 1
	if i < len(m.errs) && m.errs[i] != nil {
		return ports.AgentReply{}, m.errs[i]
	}
	if i < len(m.replies) {
		return m.replies[i], nil
	}
	return ports.AgentReply{Text: "Tell me more?", ThreadID: threadID}, nil
}

// mockPrompts answers every prompt with reply unless err is set.
type mockPrompts struct {
	mu       sync.Mutex
	reply    string
	err      error
	errOnce  bool
	requests []ports.PromptRequest
}

func (m *mockPrompts) SubmitPrompt(ctx context.Context, req ports.PromptRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		err := m.err
		if m.errOnce {
			m.err = nil
		}
		return "", err
	}
	return m.reply, nil
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func newTestOrchestrator(conv *mockConversation, prompts *mockPrompts) *SessionOrchestrator {
	now := func() time.Time { return fixedNow }
	rec := NewRecommender(prompts, PromptIDs{Matcher: "pmpt_matcher", Curator: "pmpt_curator"},
		WithRecommenderClock(now),
		WithPlaylistIDs(sequentialIDs("pl")),
	)
	return NewSessionOrchestrator(conv, rec, NewSessionStore(0),
		WithClock(now),
		WithSessionIDs(sequentialIDs("id")),
	)
}

func TestOrchestrator_Start(t *testing.T) {
	o := newTestOrchestrator(&mockConversation{}, &mockPrompts{})

	s := o.Start(context.Background())

	assert.Equal(t, domain.StateAwaitingEmotion, s.State)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, domain.RoleAssistant, s.Messages[0].Role)
	assert.Equal(t, GreetingMessage, s.Messages[0].Content)

	stored, err := o.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, stored.ID)
}

func TestOrchestrator_ProcessUserMessage(t *testing.T) {
	providerErr := ports.NewProviderError("openai", ports.ReasonBadStatus, errors.New("status 500"))

	tests := []struct {
		name         string
		conv         *mockConversation
		prompts      *mockPrompts
		wantState    domain.SessionState
		wantErr      error
		wantMessages int
		wantLast     string
		wantPlaylist bool
	}{
		{
			name:         "agent needs more context",
			conv:         &mockConversation{replies: []ports.AgentReply{{Text: "What happened at work?", ThreadID: "th-1"}}},
			prompts:      &mockPrompts{reply: selectionJSON},
			wantState:    domain.StateAwaitingEmotion,
			wantMessages: 3,
			wantLast:     "What happened at work?",
		},
		{
			name:         "verdict resolves and curates",
			conv:         &mockConversation{replies: []ports.AgentReply{{Text: verdictReply, ThreadID: "th-1"}}},
			prompts:      &mockPrompts{reply: selectionJSON},
			wantState:    domain.StateComplete,
			wantMessages: 3,
			wantLast:     `Your playlist "Angry Metal Mix" is ready.`,
			wantPlaylist: true,
		},
		{
			name:         "agent failure",
			conv:         &mockConversation{errs: []error{providerErr}},
			prompts:      &mockPrompts{reply: selectionJSON},
			wantState:    domain.StateFailed,
			wantErr:      ports.ErrProvider,
			wantMessages: 3,
			wantLast:     ErrorMessage,
		},
		{
			name:         "curation failure",
			conv:         &mockConversation{replies: []ports.AgentReply{{Text: verdictReply}}},
			prompts:      &mockPrompts{err: providerErr},
			wantState:    domain.StateFailed,
			wantErr:      ports.ErrProvider,
			wantMessages: 3,
			wantLast:     ApologyMessage,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := newTestOrchestrator(tc.conv, tc.prompts)
			s := o.Start(context.Background())

			out, err := o.ProcessUserMessage(context.Background(), s.ID, "work has been brutal")
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}

			require.NotNil(t, out.Session)
			assert.Equal(t, tc.wantState, out.Session.State)
			assert.Len(t, out.Session.Messages, tc.wantMessages)
			assert.Equal(t, tc.wantLast, out.Session.Messages[len(out.Session.Messages)-1].Content)
			assert.Equal(t, tc.wantPlaylist, out.Playlist != nil)

			stored, err := o.Get(s.ID)
			require.NoError(t, err)
			assert.Equal(t, out.Session.State, stored.State)
		})
	}
}

func TestOrchestrator_VerdictFlow(t *testing.T) {
	conv := &mockConversation{replies: []ports.AgentReply{
		{Text: "How long has it been like this?", ThreadID: "th-9"},
		{Text: verdictReply, ThreadID: "th-9"},
	}}
	prompts := &mockPrompts{reply: selectionJSON}
	o := newTestOrchestrator(conv, prompts)
	s := o.Start(context.Background())

	_, err := o.ProcessUserMessage(context.Background(), s.ID, "rough week")
	require.NoError(t, err)
	out, err := o.ProcessUserMessage(context.Background(), s.ID, "about a month, mostly deadlines")
	require.NoError(t, err)

	got := out.Session
	assert.True(t, out.Resolved)
	assert.Equal(t, domain.StateComplete, got.State)
	assert.Equal(t, "th-9", got.ThreadID)
	require.NotNil(t, got.FinalEmotion)
	assert.Equal(t, domain.EmotionAngry, got.FinalEmotion.PrimaryEmotion)
	assert.Equal(t, 90, got.FinalEmotion.PrimaryIntensity)
	require.NotNil(t, got.ResolvedAt)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.Playlist)
	assert.Equal(t, []string{"Mayhem", "Gorgoroth"}, got.Playlist.Result.ArtistNames())

	// the whole history goes to the agent on every turn
	require.Len(t, conv.calls, 2)
	assert.Len(t, conv.calls[1], 4)

	// curation is fed by the genre weighting and the verdict context
	require.Len(t, prompts.requests, 1)
	req := prompts.requests[0]
	assert.Equal(t, "pmpt_curator", req.ID)
	assert.Equal(t, "angry", req.Variables["primary_emotion"])
	assert.Equal(t, "thrash metal", req.Variables["subgenre"])
	assert.Equal(t, "deadline at work", req.Variables["event"])
	assert.Equal(t, "none", req.Variables["stress_level"])

	// complete is terminal
	_, err = o.ProcessUserMessage(context.Background(), s.ID, "again")
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

func TestOrchestrator_FailedRecovers(t *testing.T) {
	conv := &mockConversation{
		errs:    []error{ports.NewProviderError("openai", ports.ReasonTimeout, nil)},
		replies: []ports.AgentReply{{}, {Text: "Go on?"}},
	}
	o := newTestOrchestrator(conv, &mockPrompts{reply: selectionJSON})
	s := o.Start(context.Background())

	out, err := o.ProcessUserMessage(context.Background(), s.ID, "hello")
	require.Error(t, err)
	assert.Equal(t, domain.StateFailed, out.Session.State)
	assert.Equal(t, domain.StateAwaitingEmotion, out.Session.PriorState)
	assert.NotEmpty(t, out.Session.LastError)

	out, err = o.ProcessUserMessage(context.Background(), s.ID, "hello again")
	require.NoError(t, err)
	assert.Equal(t, domain.StateAwaitingEmotion, out.Session.State)
	assert.Empty(t, out.Session.LastError)
}

func TestOrchestrator_RetryCuration(t *testing.T) {
	conv := &mockConversation{replies: []ports.AgentReply{{Text: verdictReply}}}
	prompts := &mockPrompts{err: ports.NewProviderError("openai", ports.ReasonUnavailable, nil), errOnce: true, reply: selectionJSON}
	o := newTestOrchestrator(conv, prompts)
	s := o.Start(context.Background())

	out, err := o.ProcessUserMessage(context.Background(), s.ID, "furious")
	require.Error(t, err)
	require.Equal(t, domain.StateFailed, out.Session.State)
	assert.Equal(t, domain.StateCuratingPlaylist, out.Session.PriorState)

	out, err = o.Retry(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateComplete, out.Session.State)
	require.NotNil(t, out.Playlist)
	assert.Len(t, conv.calls, 1, "retry must not ask the emotion agent again")

	_, err = o.Retry(context.Background(), s.ID)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

func TestOrchestrator_RetryAwaiting(t *testing.T) {
	conv := &mockConversation{errs: []error{ports.NewProviderError("openai", ports.ReasonTimeout, nil)}}
	o := newTestOrchestrator(conv, &mockPrompts{})
	s := o.Start(context.Background())

	_, err := o.ProcessUserMessage(context.Background(), s.ID, "hi")
	require.Error(t, err)

	out, err := o.Retry(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAwaitingEmotion, out.Session.State)
}

func TestOrchestrator_CancelledLeavesSessionUnchanged(t *testing.T) {
	conv := &mockConversation{entered: make(chan struct{}, 1), release: make(chan struct{})}
	o := newTestOrchestrator(conv, &mockPrompts{reply: selectionJSON})
	s := o.Start(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := o.ProcessUserMessage(ctx, s.ID, "hello")
		done <- err
	}()
	<-conv.entered
	cancel()

	err := <-done
	require.ErrorIs(t, err, context.Canceled)

	stored, err := o.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAwaitingEmotion, stored.State)
	assert.Len(t, stored.Messages, 1)
}

func TestOrchestrator_BusySession(t *testing.T) {
	conv := &mockConversation{entered: make(chan struct{}, 1), release: make(chan struct{})}
	o := newTestOrchestrator(conv, &mockPrompts{reply: selectionJSON})
	s := o.Start(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := o.ProcessUserMessage(context.Background(), s.ID, "first")
		done <- err
	}()
	<-conv.entered

	_, err := o.ProcessUserMessage(context.Background(), s.ID, "second")
	assert.ErrorIs(t, err, domain.ErrSessionBusy)
	_, err = o.Retry(context.Background(), s.ID)
	assert.ErrorIs(t, err, domain.ErrSessionBusy)

	close(conv.release)
	require.NoError(t, <-done)

	// the lock is released once the first call returns
	conv.entered = nil
	_, err = o.ProcessUserMessage(context.Background(), s.ID, "third")
	assert.NoError(t, err)
}

func TestOrchestrator_Validation(t *testing.T) {
	o := newTestOrchestrator(&mockConversation{}, &mockPrompts{})
	s := o.Start(context.Background())

	long := make([]rune, MaxMessageLength+1)
	for i := range long {
		long[i] = 'a'
	}
	for _, text := range []string{"", "   ", string(long)} {
		_, err := o.ProcessUserMessage(context.Background(), s.ID, text)
		assert.ErrorIs(t, err, domain.ErrValidation)
	}

	_, err := o.ProcessUserMessage(context.Background(), "missing", "hello")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrchestrator_StatusAndSummary(t *testing.T) {
	conv := &mockConversation{replies: []ports.AgentReply{{Text: verdictReply}}}
	o := newTestOrchestrator(conv, &mockPrompts{reply: selectionJSON})
	s := o.Start(context.Background())

	status, err := o.Status(s.ID)
	require.NoError(t, err)
	assert.False(t, status.IsComplete)
	assert.Equal(t, 1, status.MessageCount)
	assert.Equal(t, domain.StateAwaitingEmotion, status.State)

	_, err = o.ProcessUserMessage(context.Background(), s.ID, "angry at everything")
	require.NoError(t, err)

	sum, err := o.Summary(s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, sum.SessionID)
	assert.True(t, sum.Completed)
	assert.Equal(t, 1, sum.UserMessages)
	assert.Equal(t, 3, sum.MessageCount)
	assert.Equal(t, domain.EmotionAngry, sum.FinalEmotion)
	assert.Zero(t, sum.DurationMs)

	_, err = o.Status("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrchestrator_Reset(t *testing.T) {
	o := newTestOrchestrator(&mockConversation{}, &mockPrompts{})
	first := o.Start(context.Background())

	second := o.Reset(context.Background(), first.ID)

	assert.NotEqual(t, first.ID, second.ID)
	_, err := o.Get(first.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, domain.StateAwaitingEmotion, second.State)
}

func TestOrchestrator_DropDuringAgentCall(t *testing.T) {
	tests := []struct {
		name string
		drop func(t *testing.T, o *SessionOrchestrator, id string)
	}{
		{
			name: "drop",
			drop: func(t *testing.T, o *SessionOrchestrator, id string) { require.NoError(t, o.Drop(id)) },
		},
		{
			name: "reset",
			drop: func(_ *testing.T, o *SessionOrchestrator, id string) { o.Reset(context.Background(), id) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := &mockConversation{entered: make(chan struct{}, 1), release: make(chan struct{})}
			o := newTestOrchestrator(conv, &mockPrompts{reply: selectionJSON})
			s := o.Start(context.Background())

			done := make(chan error, 1)
			go func() {
				_, err := o.ProcessUserMessage(context.Background(), s.ID, "still thinking")
				done <- err
			}()
			<-conv.entered

			tt.drop(t, o, s.ID)
			close(conv.release)

			assert.ErrorIs(t, <-done, domain.ErrNotFound)
			_, err := o.Get(s.ID)
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}
