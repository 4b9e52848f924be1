package rest

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
)

const (
	defaultPlaylistLimit = 50
	maxPlaylistLimit     = 200
)

type playlistsResponse struct {
	Playlists []domain.Playlist `json:"playlists"`
	Count     int               `json:"count"`
}

// ListPlaylists handles GET /playlists?limit=N
func (h *Handler) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	limit := defaultPlaylistLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPlaylistLimit {
			writeError(w, r, &domain.ValidationError{Field: "limit", Message: "limit must be between 1 and 200"}, nil)
			return
		}
		limit = n
	}

	playlists, err := h.deps.Archive.ListPlaylists(r.Context(), limit)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	if playlists == nil {
		playlists = []domain.Playlist{}
	}
	writeJSON(w, http.StatusOK, playlistsResponse{Playlists: playlists, Count: len(playlists)})
}

// GetPlaylist handles GET /playlists/{id}
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.deps.Archive.GetPlaylist(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}
