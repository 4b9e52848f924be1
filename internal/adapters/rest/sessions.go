package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/services"
)

type startSessionRequest struct {
	// PreviousID is dropped before the new session starts.
	PreviousID string `json:"previousId" validate:"omitempty,max=64"`
}

type postMessageRequest struct {
	Message string `json:"message" validate:"required,min=1,max=2000"`
}

type sessionResponse struct {
	Session *domain.Session      `json:"session"`
	Status  domain.SessionStatus `json:"status"`
}

type turnResponse struct {
	Session  *domain.Session      `json:"session"`
	Status   domain.SessionStatus `json:"status"`
	Resolved bool                 `json:"resolved"`
	Playlist *domain.Playlist     `json:"playlist,omitempty"`
}

// StartSession handles POST /sessions
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}

	session := h.deps.Sessions.Reset(r.Context(), req.PreviousID)
	writeJSON(w, http.StatusCreated, h.sessionView(session))
}

// GetSession handles GET /sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.deps.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionView(session))
}

// GetSessionSummary handles GET /sessions/{id}/summary
func (h *Handler) GetSessionSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.deps.Sessions.Summary(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// DeleteSession handles DELETE /sessions/{id}
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Sessions.Drop(chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostMessage handles POST /sessions/{id}/messages
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	// 1. Decode Request
	var req postMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// 2. Call Service
	out, err := h.deps.Sessions.ProcessUserMessage(r.Context(), chi.URLParam(r, "id"), req.Message)

	// 3. Respond
	h.writeTurn(w, r, out, err)
}

// RetrySession handles POST /sessions/{id}/retry
func (h *Handler) RetrySession(w http.ResponseWriter, r *http.Request) {
	out, err := h.deps.Sessions.Retry(r.Context(), chi.URLParam(r, "id"))
	h.writeTurn(w, r, out, err)
}

func (h *Handler) writeTurn(w http.ResponseWriter, r *http.Request, out services.Outcome, err error) {
	if err != nil {
		// A failed agent call leaves a failed session with an apology in it.
		var failed *domain.Session
		if out.Session != nil && out.Session.State == domain.StateFailed {
			failed = out.Session
		}
		writeError(w, r, err, failed)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{
		Session:  out.Session,
		Status:   out.Session.Status(time.Now().UTC()),
		Resolved: out.Resolved,
		Playlist: out.Playlist,
	})
}

func (h *Handler) sessionView(s *domain.Session) sessionResponse {
	return sessionResponse{Session: s, Status: s.Status(time.Now().UTC())}
}
