package domain

import (
	"time"
)

// SessionState is a node in the conversation state machine.
type SessionState string

const (
	StateIdle             SessionState = "idle"
	StateAwaitingEmotion  SessionState = "awaiting_emotion"
	StateEmotionResolved  SessionState = "emotion_resolved"
	StateCuratingPlaylist SessionState = "curating_playlist"
	StateComplete         SessionState = "complete"
	StateFailed           SessionState = "failed"
)

// legalTransitions lists every edge the machine may take.
// Failed can only be left toward the state it failed from.
var legalTransitions = map[SessionState][]SessionState{
	StateIdle:             {StateAwaitingEmotion},
	StateAwaitingEmotion:  {StateAwaitingEmotion, StateEmotionResolved, StateFailed},
	StateEmotionResolved:  {StateCuratingPlaylist},
	StateCuratingPlaylist: {StateComplete, StateFailed},
	StateFailed:           {StateAwaitingEmotion, StateCuratingPlaylist},
	StateComplete:         {},
}

// CanTransition reports whether from -> to is an edge of the machine.
func CanTransition(from, to SessionState) bool {
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one user interaction from first greeting to finished playlist.
type Session struct {
	ID           string           `json:"id"`
	Messages     []Message        `json:"messages"`
	State        SessionState     `json:"state"`
	PriorState   SessionState     `json:"priorState,omitempty"`
	LastError    string           `json:"lastError,omitempty"`
	ThreadID     string           `json:"threadId,omitempty"`
	FinalEmotion *EmotionAnalysis `json:"finalEmotion,omitempty"`
	Analysis     *AnalysisResult  `json:"analysis,omitempty"`
	Playlist     *Playlist        `json:"playlist,omitempty"`
	StartedAt    time.Time        `json:"startedAt"`
	ResolvedAt   *time.Time       `json:"resolvedAt,omitempty"`
	CompletedAt  *time.Time       `json:"completedAt,omitempty"`
}

// NewSession returns an idle session with no messages.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Messages:  []Message{},
		State:     StateIdle,
		StartedAt: now,
	}
}

// Transition moves the session along a legal edge.
func (s *Session) Transition(to SessionState) error {
	if !CanTransition(s.State, to) {
		return &IllegalTransitionError{From: s.State, To: to}
	}
	if s.State == StateFailed && to != s.PriorState {
		return &IllegalTransitionError{From: s.State, To: to}
	}
	if to == StateFailed {
		s.PriorState = s.State
	} else {
		s.PriorState = ""
		s.LastError = ""
	}
	s.State = to
	return nil
}

// Fail records err and moves to StateFailed.
func (s *Session) Fail(cause error) error {
	if err := s.Transition(StateFailed); err != nil {
		return err
	}
	if cause != nil {
		s.LastError = cause.Error()
	}
	return nil
}

// Append adds a message to the transcript.
func (s *Session) Append(m Message) {
	s.Messages = append(s.Messages, m)
}

// Clone returns a copy that can be mutated without touching s.
func (s *Session) Clone() *Session {
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	return &c
}

// IsComplete reports whether a playlist has been delivered.
func (s *Session) IsComplete() bool {
	return s.State == StateComplete
}

// UserMessages counts messages written by the user.
func (s *Session) UserMessages() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// SessionStatus is a read-only projection for polling clients.
type SessionStatus struct {
	State        SessionState     `json:"state"`
	IsComplete   bool             `json:"isComplete"`
	MessageCount int              `json:"messageCount"`
	DurationMs   int64            `json:"duration"`
	FinalEmotion *EmotionAnalysis `json:"finalEmotion,omitempty"`
}

// SessionSummary is a read-only projection for analytics.
type SessionSummary struct {
	SessionID    string  `json:"sessionId"`
	DurationMs   int64   `json:"duration"`
	MessageCount int     `json:"messageCount"`
	UserMessages int     `json:"userMessages"`
	FinalEmotion Emotion `json:"finalEmotion,omitempty"`
	Completed    bool    `json:"completed"`
}

// Status projects the session at time now.
func (s *Session) Status(now time.Time) SessionStatus {
	return SessionStatus{
		State:        s.State,
		IsComplete:   s.IsComplete(),
		MessageCount: len(s.Messages),
		DurationMs:   now.Sub(s.StartedAt).Milliseconds(),
		FinalEmotion: s.FinalEmotion,
	}
}

// Summary projects the session at time now; finished sessions use CompletedAt.
func (s *Session) Summary(now time.Time) SessionSummary {
	end := now
	if s.CompletedAt != nil {
		end = *s.CompletedAt
	}
	sum := SessionSummary{
		SessionID:    s.ID,
		DurationMs:   end.Sub(s.StartedAt).Milliseconds(),
		MessageCount: len(s.Messages),
		UserMessages: s.UserMessages(),
		Completed:    s.IsComplete(),
	}
	if s.FinalEmotion != nil {
		sum.FinalEmotion = s.FinalEmotion.PrimaryEmotion
	}
	return sum
}
