package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/extract"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/ports"
	"github.com/ewilliams-labs/tunnetilasi/internal/logging"
	"github.com/ewilliams-labs/tunnetilasi/internal/metrics"
)

const (
	GreetingMessage = "Hi! I'm here to help understand how you're feeling right now so we can find the perfect metal music to match your mood. What's going on in your day? How are you feeling?"
	ErrorMessage    = "I'm having trouble processing that right now. Could you try rephrasing how you're feeling?"
	ApologyMessage  = "Sorry, I couldn't put your playlist together just now. Please try again in a moment."

	MaxMessageLength = 2000
)

// Outcome is the result of one user action on a session.
type Outcome struct {
	Session *domain.Session
	// Resolved is true when this call settled the emotion.
	Resolved bool
	Playlist *domain.Playlist
}

// SessionOrchestrator drives a session from greeting to finished playlist. It
// never lets two agent calls run against the same session and only commits a
// new snapshot once the agent call has resolved.
type SessionOrchestrator struct {
	conversation ports.ConversationAgent
	recommender  *Recommender
	sessions     *SessionStore
	extractor    *extract.Extractor
	now          func() time.Time
	newID        func() string

	mu   sync.Mutex
	busy map[string]struct{}
}

type OrchestratorOption func(*SessionOrchestrator)

func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *SessionOrchestrator) { o.now = now }
}

func WithSessionIDs(newID func() string) OrchestratorOption {
	return func(o *SessionOrchestrator) { o.newID = newID }
}

func WithSessionExtractor(x *extract.Extractor) OrchestratorOption {
	return func(o *SessionOrchestrator) { o.extractor = x }
}

// NewSessionOrchestrator constructs a SessionOrchestrator.
func NewSessionOrchestrator(conversation ports.ConversationAgent, recommender *Recommender, sessions *SessionStore, opts ...OrchestratorOption) *SessionOrchestrator {
	o := &SessionOrchestrator{
		conversation: conversation,
		recommender:  recommender,
		sessions:     sessions,
		extractor:    extract.New(),
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
		busy:         make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start opens a session, greets the user and stores it.
func (o *SessionOrchestrator) Start(ctx context.Context) *domain.Session {
	s := domain.NewSession(o.newID(), o.now())
	_ = o.transition(ctx, s, domain.StateAwaitingEmotion)
	s.Append(o.message(domain.RoleAssistant, GreetingMessage))
	o.sessions.Put(s)

	logging.Ctx(ctx).Info().Str("session_id", s.ID).Msg("session started")
	return s
}

// Reset drops the previous session, if any, and starts a new one.
func (o *SessionOrchestrator) Reset(ctx context.Context, previousID string) *domain.Session {
	if previousID != "" {
		_ = o.sessions.Delete(previousID)
	}
	return o.Start(ctx)
}

// Get returns the current snapshot of a session.
func (o *SessionOrchestrator) Get(id string) (*domain.Session, error) {
	return o.sessions.Get(id)
}

// Drop forgets a session.
func (o *SessionOrchestrator) Drop(id string) error {
	return o.sessions.Delete(id)
}

func (o *SessionOrchestrator) Status(id string) (domain.SessionStatus, error) {
	s, err := o.sessions.Get(id)
	if err != nil {
		return domain.SessionStatus{}, err
	}
	return s.Status(o.now()), nil
}

func (o *SessionOrchestrator) Summary(id string) (domain.SessionSummary, error) {
	s, err := o.sessions.Get(id)
	if err != nil {
		return domain.SessionSummary{}, err
	}
	return s.Summary(o.now()), nil
}

// ProcessUserMessage sends the user's text to the conversation agent. A reply
// without a verdict keeps the session awaiting an emotion; a verdict resolves
// the emotion and runs curation in the same call.
func (o *SessionOrchestrator) ProcessUserMessage(ctx context.Context, id, text string) (Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{}, &domain.ValidationError{Field: "message", Message: "message must not be empty"}
	}
	if len([]rune(text)) > MaxMessageLength {
		return Outcome{}, &domain.ValidationError{Field: "message", Message: fmt.Sprintf("message must be at most %d characters", MaxMessageLength)}
	}

	release, err := o.acquire(id)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	current, err := o.sessions.Get(id)
	if err != nil {
		return Outcome{}, err
	}
	ctx = logging.WithSessionID(ctx, id)

	userMsg := o.message(domain.RoleUser, text)
	switch {
	case current.State == domain.StateAwaitingEmotion,
		current.State == domain.StateFailed && current.PriorState == domain.StateAwaitingEmotion:
	case current.State == domain.StateFailed && current.PriorState == domain.StateCuratingPlaylist:
		next := current.Clone()
		next.Append(userMsg)
		return o.resumeCuration(ctx, current, next)
	default:
		return Outcome{Session: current}, o.illegal(ctx, "process_user_message", current.State)
	}

	next := current.Clone()
	history := append(append([]domain.Message(nil), next.Messages...), userMsg)
	reply, err := o.conversation.SubmitConversation(ctx, next.ThreadID, history)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{Session: current}, fmt.Errorf("orchestrator: process message: %w", ctx.Err())
		}
		next.Append(userMsg)
		o.fail(ctx, next, err)
		next.Append(o.message(domain.RoleAssistant, ErrorMessage))
		if cerr := o.commit(ctx, next); cerr != nil {
			return Outcome{}, cerr
		}
		return Outcome{Session: next}, fmt.Errorf("orchestrator: process message: %w", err)
	}

	next.Append(userMsg)
	if reply.ThreadID != "" {
		next.ThreadID = reply.ThreadID
	}
	if err := o.transition(ctx, next, domain.StateAwaitingEmotion); err != nil {
		return Outcome{Session: current}, err
	}

	verdict, ok := extract.DetectVerdict(reply.Text, o.now())
	if !ok {
		next.Append(o.message(domain.RoleAssistant, strings.TrimSpace(reply.Text)))
		if err := o.commit(ctx, next); err != nil {
			return Outcome{}, err
		}
		return Outcome{Session: next}, nil
	}

	next.FinalEmotion = &verdict
	if analysis, err := o.extractor.Analysis(reply.Text, domain.EmotionInput{Primary: verdict.PrimaryEmotion}); err == nil {
		next.Analysis = &analysis
	}
	resolvedAt := o.now()
	next.ResolvedAt = &resolvedAt
	if err := o.transition(ctx, next, domain.StateEmotionResolved); err != nil {
		return Outcome{Session: current}, err
	}
	logging.Ctx(ctx).Info().
		Str("emotion", string(verdict.PrimaryEmotion)).
		Int("intensity", verdict.PrimaryIntensity).
		Msg("emotion resolved")

	if err := o.transition(ctx, next, domain.StateCuratingPlaylist); err != nil {
		return Outcome{Session: current}, err
	}
	out, err := o.runCuration(ctx, current, next)
	if out.Session == next {
		out.Resolved = true
	}
	return out, err
}

// Retry leaves the failed state toward the state the failure happened in.
// A failed curation is run again.
func (o *SessionOrchestrator) Retry(ctx context.Context, id string) (Outcome, error) {
	release, err := o.acquire(id)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	current, err := o.sessions.Get(id)
	if err != nil {
		return Outcome{}, err
	}
	ctx = logging.WithSessionID(ctx, id)
	if current.State != domain.StateFailed {
		return Outcome{Session: current}, o.illegal(ctx, "retry", current.State)
	}

	next := current.Clone()
	if next.PriorState == domain.StateCuratingPlaylist {
		return o.resumeCuration(ctx, current, next)
	}
	if err := o.transition(ctx, next, next.PriorState); err != nil {
		return Outcome{Session: current}, err
	}
	if err := o.commit(ctx, next); err != nil {
		return Outcome{}, err
	}
	return Outcome{Session: next}, nil
}

func (o *SessionOrchestrator) resumeCuration(ctx context.Context, current, next *domain.Session) (Outcome, error) {
	if next.FinalEmotion == nil {
		return Outcome{Session: current}, o.illegal(ctx, "curate", next.State)
	}
	if err := o.transition(ctx, next, domain.StateCuratingPlaylist); err != nil {
		return Outcome{Session: current}, err
	}
	return o.runCuration(ctx, current, next)
}

// runCuration calls the curator for a session in curating_playlist. On a
// cancelled ctx the previous snapshot is kept.
func (o *SessionOrchestrator) runCuration(ctx context.Context, current, next *domain.Session) (Outcome, error) {
	c := curation{
		emotion: *next.FinalEmotion,
		stress:  "none",
		event:   "none",
	}
	if next.FinalEmotion.Context != "" {
		c.event = next.FinalEmotion.Context
	}
	if next.Analysis != nil {
		c.subgenre = next.Analysis.Subgenre
	}

	pl, err := o.recommender.curate(ctx, c)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{Session: current}, fmt.Errorf("orchestrator: curate: %w", ctx.Err())
		}
		o.fail(ctx, next, err)
		next.Append(o.message(domain.RoleAssistant, ApologyMessage))
		if cerr := o.commit(ctx, next); cerr != nil {
			return Outcome{}, cerr
		}
		return Outcome{Session: next}, fmt.Errorf("orchestrator: curate: %w", err)
	}

	next.Playlist = &pl
	completedAt := o.now()
	next.CompletedAt = &completedAt
	if err := o.transition(ctx, next, domain.StateComplete); err != nil {
		return Outcome{Session: current}, err
	}
	next.Append(o.message(domain.RoleAssistant, fmt.Sprintf("Your playlist %q is ready.", pl.Name)))
	if err := o.commit(ctx, next); err != nil {
		return Outcome{}, err
	}

	logging.Ctx(ctx).Info().Str("playlist_id", pl.ID).Int("entries", pl.Result.Len()).Msg("session complete")
	return Outcome{Session: next, Playlist: &pl}, nil
}

// commit stores next unless its session was dropped while the agent call was
// in flight. A dropped session stays dropped.
func (o *SessionOrchestrator) commit(ctx context.Context, next *domain.Session) error {
	if !o.sessions.Replace(next) {
		logging.Ctx(ctx).Info().Msg("session dropped during agent call, result discarded")
		return fmt.Errorf("orchestrator: commit %s: %w", next.ID, domain.ErrNotFound)
	}
	return nil
}

func (o *SessionOrchestrator) acquire(id string) (func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.busy[id]; ok {
		return nil, domain.ErrSessionBusy
	}
	o.busy[id] = struct{}{}
	return func() {
		o.mu.Lock()
		delete(o.busy, id)
		o.mu.Unlock()
	}, nil
}

func (o *SessionOrchestrator) transition(ctx context.Context, s *domain.Session, to domain.SessionState) error {
	from := s.State
	if err := s.Transition(to); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("illegal session transition")
		return err
	}
	metrics.RecordTransition(string(from), string(to))
	return nil
}

// fail moves s to failed, or refreshes the recorded error if it already is.
func (o *SessionOrchestrator) fail(ctx context.Context, s *domain.Session, cause error) {
	logging.Ctx(ctx).Warn().Err(cause).Str("state", string(s.State)).Msg("agent call failed")
	if s.State == domain.StateFailed {
		s.LastError = cause.Error()
		return
	}
	from := s.State
	if err := s.Fail(cause); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("illegal session transition")
		return
	}
	metrics.RecordTransition(string(from), string(domain.StateFailed))
}

func (o *SessionOrchestrator) illegal(ctx context.Context, op string, state domain.SessionState) error {
	err := &domain.IllegalTransitionError{Op: op, From: state}
	logging.Ctx(ctx).Error().Err(err).Msg("illegal session operation")
	return err
}

func (o *SessionOrchestrator) message(role domain.Role, content string) domain.Message {
	return domain.Message{ID: o.newID(), Role: role, Content: content, Timestamp: o.now()}
}
