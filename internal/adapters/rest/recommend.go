package rest

import (
	"net/http"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/genre"
)

type matcherRequest struct {
	EmotionData domain.EmotionInput `json:"emotionData" validate:"required"`
}

type matcherResponse struct {
	Analysis domain.AnalysisResult `json:"analysis"`
	Raw      string                `json:"raw"`
}

type curatorRequest struct {
	Analysis    domain.AnalysisResult `json:"analysis"`
	EmotionData domain.EmotionInput   `json:"emotionData" validate:"required"`
}

type curatorResponse struct {
	Playlist domain.Playlist `json:"playlist"`
}

type genresRequest struct {
	PrimaryEmotion     domain.Emotion `json:"primaryEmotion" validate:"required,emotion"`
	PrimaryIntensity   int            `json:"primaryIntensity" validate:"gte=0,lte=100"`
	SecondaryEmotion   domain.Emotion `json:"secondaryEmotion" validate:"omitempty,emotion"`
	SecondaryIntensity int            `json:"secondaryIntensity" validate:"gte=0,lte=100"`
}

type extractAnalysisRequest struct {
	Text        string               `json:"text" validate:"required"`
	EmotionData *domain.EmotionInput `json:"emotionData,omitempty"`
}

type extractPlaylistRequest struct {
	Text     string `json:"text" validate:"required"`
	Subgenre string `json:"subgenre" validate:"omitempty,max=64"`
}

// Match handles POST /matcher
func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	var req matcherRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	analysis, raw, err := h.deps.Recommender.Analyze(r.Context(), normalizeInput(req.EmotionData))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, matcherResponse{Analysis: analysis, Raw: raw})
}

// Curate handles POST /curator
func (h *Handler) Curate(w http.ResponseWriter, r *http.Request) {
	var req curatorRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	playlist, err := h.deps.Recommender.Curate(r.Context(), normalizeInput(req.EmotionData), req.Analysis)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, curatorResponse{Playlist: playlist})
}

// SelectGenres handles POST /genres
func (h *Handler) SelectGenres(w http.ResponseWriter, r *http.Request) {
	var req genresRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	primary, _ := domain.ParseEmotion(string(req.PrimaryEmotion))
	secondary, _ := domain.ParseEmotion(string(req.SecondaryEmotion))
	writeJSON(w, http.StatusOK, genre.Select(primary, req.PrimaryIntensity, secondary, req.SecondaryIntensity))
}

// ExtractAnalysis handles POST /extract/analysis
func (h *Handler) ExtractAnalysis(w http.ResponseWriter, r *http.Request) {
	var req extractAnalysisRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var hint domain.EmotionInput
	if req.EmotionData != nil {
		hint = normalizeInput(*req.EmotionData)
	}
	result, err := h.deps.Extractor.Analysis(req.Text, hint)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ExtractPlaylist handles POST /extract/playlist
func (h *Handler) ExtractPlaylist(w http.ResponseWriter, r *http.Request) {
	var req extractPlaylistRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.deps.Extractor.Playlist(req.Text, req.Subgenre)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// normalizeInput maps detector labels such as "happy" onto the wheel tags.
func normalizeInput(in domain.EmotionInput) domain.EmotionInput {
	if e, ok := domain.ParseEmotion(string(in.Primary)); ok {
		in.Primary = e
	}
	return in
}
