package rest

import (
	"errors"
	"io"
	"mime"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/ports"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/services"
	"github.com/ewilliams-labs/tunnetilasi/internal/logging"
	"github.com/ewilliams-labs/tunnetilasi/internal/validation"
	"github.com/ewilliams-labs/tunnetilasi/internal/worker"
)

// maxJSONBody bounds every JSON request body.
const maxJSONBody = 1 << 20

type errorResponse struct {
	Error   string                  `json:"error"`
	Code    string                  `json:"code"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
	Session *domain.Session         `json:"session,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("encode response failed")
	}
}

func writeErrorWithCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeError maps err onto a status code and writes it. session, when set, is
// the snapshot left behind by a failed agent call.
func writeError(w http.ResponseWriter, r *http.Request, err error, session *domain.Session) {
	resp := errorResponse{Error: err.Error(), Session: session}
	status := http.StatusInternalServerError
	resp.Code = "internal"

	var reqErr *validation.RequestValidationError
	var providerErr *ports.ProviderError
	switch {
	case errors.As(err, &reqErr):
		status, resp.Code = http.StatusBadRequest, "validation_failed"
		resp.Fields = reqErr.Fields
	case errors.Is(err, domain.ErrValidation):
		status, resp.Code = http.StatusBadRequest, "validation_failed"
	case errors.Is(err, domain.ErrSessionBusy):
		status, resp.Code = http.StatusConflict, "session_busy"
	case errors.Is(err, domain.ErrIllegalTransition):
		status, resp.Code = http.StatusConflict, "illegal_transition"
	case errors.Is(err, domain.ErrNotFound):
		status, resp.Code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrExtractionExhausted):
		status, resp.Code = http.StatusUnprocessableEntity, "extraction_exhausted"
	case errors.As(err, &providerErr):
		status, resp.Code = http.StatusBadGateway, "provider_"+string(providerErr.Reason)
		resp.Error = providerMessage(session)
	case errors.Is(err, worker.ErrQueueFull):
		status, resp.Code = http.StatusServiceUnavailable, "queue_full"
	}

	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).Int("status", status).Msg("request failed")
		if status == http.StatusInternalServerError {
			resp.Error = "internal server error"
		}
	}
	writeJSON(w, status, resp)
}

// providerMessage is the text shown for a failed agent call: the apology the
// failed session already carries, or the generic retry prompt.
func providerMessage(session *domain.Session) string {
	if session != nil {
		for i := len(session.Messages) - 1; i >= 0; i-- {
			if session.Messages[i].Role == domain.RoleAssistant {
				return session.Messages[i].Content
			}
		}
	}
	return services.ErrorMessage
}

// writeFailed logs a failure that happened after the status line was sent.
func writeFailed(r *http.Request, err error) {
	logging.Ctx(r.Context()).Error().Err(err).Msg("write response failed")
}

func isJSONContentType(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// decodeJSON reads a JSON body into dst and runs the request validator. It
// writes the error response itself and reports whether the caller may go on.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !isJSONContentType(r) {
		writeErrorWithCode(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "Content-Type must be application/json")
		return false
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		writeErrorWithCode(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeErrorWithCode(w, http.StatusBadRequest, "invalid_json", "Invalid request body")
		return false
	}
	if err := validation.ValidateStruct(dst); err != nil {
		writeError(w, r, err, nil)
		return false
	}
	return true
}
