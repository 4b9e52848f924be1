package applemusic

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
)

var csvHeader = []string{"id", "artist", "track", "genre", "album", "year", "playCount", "duration"}

// WriteCSV writes tracks with a header row. Zero numbers are left empty.
func WriteCSV(w io.Writer, tracks []domain.LibraryTrack) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("applemusic: write csv: %w", err)
	}
	for _, t := range tracks {
		row := []string{t.ID, t.Artist, t.Name, t.Genre, t.Album, optional(t.Year), optional(t.PlayCount), optional(t.DurationMs)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("applemusic: write csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("applemusic: write csv: %w", err)
	}
	return nil
}

func optional(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// WriteJSON writes the library as indented JSON.
func WriteJSON(w io.Writer, lib ParsedLibrary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(lib); err != nil {
		return fmt.Errorf("applemusic: write json: %w", err)
	}
	return nil
}

// Summarize builds the library summary for tracks. Genres and artists keep
// first-seen order.
func Summarize(tracks []domain.LibraryTrack) ParsedLibrary {
	if tracks == nil {
		tracks = []domain.LibraryTrack{}
	}
	lib := ParsedLibrary{Tracks: tracks, TotalTracks: len(tracks), Genres: []string{}, Artists: []string{}}
	genres := make(map[string]struct{})
	artists := make(map[string]struct{})
	for _, t := range tracks {
		if _, ok := genres[t.Genre]; !ok {
			genres[t.Genre] = struct{}{}
			lib.Genres = append(lib.Genres, t.Genre)
		}
		if _, ok := artists[t.Artist]; !ok {
			artists[t.Artist] = struct{}{}
			lib.Artists = append(lib.Artists, t.Artist)
		}
	}
	return lib
}
