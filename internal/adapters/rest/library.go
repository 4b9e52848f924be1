package rest

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ewilliams-labs/tunnetilasi/internal/adapters/applemusic"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
	"github.com/ewilliams-labs/tunnetilasi/internal/worker"
)

// libraryFormField is the multipart field carrying the exported XML.
const libraryFormField = "library"

type importResponse struct {
	JobID  string       `json:"jobId"`
	State  worker.State `json:"state"`
	Status string       `json:"statusUrl"`
}

// ImportLibrary handles POST /library/import. The body is either a multipart
// form with a "library" file or the raw XML export.
func (h *Handler) ImportLibrary(w http.ResponseWriter, r *http.Request) {
	if h.deps.Imports == nil {
		writeErrorWithCode(w, http.StatusServiceUnavailable, "imports_disabled", "library import is not available")
		return
	}

	// 1. Read Upload
	data, err := h.readLibraryUpload(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorWithCode(w, http.StatusRequestEntityTooLarge, "body_too_large", "library export too large")
			return
		}
		writeErrorWithCode(w, http.StatusBadRequest, "invalid_upload", err.Error())
		return
	}
	if len(data) == 0 {
		writeErrorWithCode(w, http.StatusBadRequest, "invalid_upload", "library export is empty")
		return
	}

	metalOnly, _ := strconv.ParseBool(r.URL.Query().Get("metalOnly"))

	// 2. Queue Job
	id, err := h.deps.Imports.Submit(worker.Job{
		Kind:      worker.KindLibraryImport,
		Library:   data,
		MetalOnly: metalOnly,
	})
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	// 3. Respond
	writeJSON(w, http.StatusAccepted, importResponse{
		JobID:  id,
		State:  worker.StateQueued,
		Status: "/library/import/" + id,
	})
}

func (h *Handler) readLibraryUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		file, _, err := r.FormFile(libraryFormField)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, err
			}
			return nil, errors.New(`multipart field "library" is required`)
		}
		defer file.Close()
		return io.ReadAll(file)
	case "application/xml", "text/xml", "application/x-plist":
		return io.ReadAll(r.Body)
	default:
		return nil, errors.New("content type must be multipart/form-data or application/xml")
	}
}

// GetImport handles GET /library/import/{id}
func (h *Handler) GetImport(w http.ResponseWriter, r *http.Request) {
	if h.deps.Imports == nil {
		writeError(w, r, domain.ErrNotFound, nil)
		return
	}
	status, ok := h.deps.Imports.Status(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, r, domain.ErrNotFound, nil)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// ExportLibrary handles GET /library/export?format=csv|json
func (h *Handler) ExportLibrary(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		writeErrorWithCode(w, http.StatusBadRequest, "validation_failed", "format must be one of: csv json")
		return
	}

	tracks, err := h.deps.Library.ListLibraryTracks(r.Context())
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="apple-music-library.csv"`)
		w.WriteHeader(http.StatusOK)
		err = applemusic.WriteCSV(w, tracks)
	} else {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="apple-music-library.json"`)
		w.WriteHeader(http.StatusOK)
		err = applemusic.WriteJSON(w, applemusic.Summarize(tracks))
	}
	if err != nil {
		// Headers are gone; all that is left is to log.
		writeFailed(r, err)
	}
}

// LibraryStats handles GET /library/stats
func (h *Handler) LibraryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.Library.LibraryStats(r.Context())
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
