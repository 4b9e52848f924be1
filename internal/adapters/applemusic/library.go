// Package applemusic reads Apple Music (iTunes) library exports and writes
// the imported tracks back out as CSV or JSON.
package applemusic

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
)

// ErrInvalidLibrary is returned when the document is not a library export.
var ErrInvalidLibrary = errors.New("applemusic: invalid Apple Music library XML format")

const unknownGenre = "Unknown"

// ParsedLibrary is the result of reading one export.
type ParsedLibrary struct {
	Tracks      []domain.LibraryTrack `json:"tracks"`
	TotalTracks int                   `json:"totalTracks"`
	// Genres and Artists are unique, in first-seen order.
	Genres  []string `json:"genres"`
	Artists []string `json:"artists"`
}

// ParseLibrary reads an XML plist library export. Tracks without a name or an
// artist are skipped and a missing genre becomes "Unknown".
func ParseLibrary(r io.Reader) (ParsedLibrary, error) {
	root, err := decodePlist(r)
	if err != nil {
		return ParsedLibrary{}, fmt.Errorf("%w: %v", ErrInvalidLibrary, err)
	}
	top, ok := root.(*dict)
	if !ok {
		return ParsedLibrary{}, ErrInvalidLibrary
	}
	rawTracks, ok := top.get("Tracks")
	if !ok {
		return ParsedLibrary{}, ErrInvalidLibrary
	}
	tracksDict, ok := rawTracks.(*dict)
	if !ok {
		return ParsedLibrary{}, ErrInvalidLibrary
	}

	tracks := make([]domain.LibraryTrack, 0, len(tracksDict.values))
	for i, v := range tracksDict.values {
		entry, ok := v.(*dict)
		if !ok {
			continue
		}
		if track, ok := trackFrom(entry, tracksDict.keys[i]); ok {
			tracks = append(tracks, track)
		}
	}
	return Summarize(tracks), nil
}

func trackFrom(d *dict, fallbackID string) (domain.LibraryTrack, bool) {
	t := domain.LibraryTrack{ID: fallbackID}
	for i, key := range d.keys {
		v := d.values[i]
		switch key {
		case "Track ID":
			if id := text(v); id != "" {
				t.ID = id
			}
		case "Name":
			t.Name = text(v)
		case "Artist":
			t.Artist = text(v)
		case "Album":
			t.Album = text(v)
		case "Genre":
			t.Genre = text(v)
		case "Year":
			t.Year = number(v)
		case "Play Count":
			t.PlayCount = number(v)
		case "Total Time":
			t.DurationMs = number(v)
		case "Rating":
			t.Rating = number(v)
		}
	}
	if t.Name == "" || t.Artist == "" {
		return domain.LibraryTrack{}, false
	}
	if t.Genre == "" {
		t.Genre = unknownGenre
	}
	return t, true
}

func text(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return ""
	}
}

func number(v any) int {
	switch x := v.(type) {
	case int64:
		return int(x)
	case float64:
		return int(x)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(x))
		return n
	default:
		return 0
	}
}

// metalGenres are matched as case-insensitive substrings of a track genre.
var metalGenres = []string{
	"metal", "heavy metal", "death metal", "black metal", "thrash metal",
	"progressive metal", "power metal", "doom metal", "gothic metal",
	"symphonic metal", "folk metal", "viking metal", "melodic death metal",
	"metalcore", "deathcore", "hardcore", "post-hardcore", "mathcore",
	"grindcore", "sludge metal", "stoner metal", "nu metal", "industrial metal",
	"alternative metal", "groove metal", "speed metal", "glam metal",
}

// IsMetal reports whether genre names a metal style.
func IsMetal(genre string) bool {
	g := strings.ToLower(genre)
	for _, m := range metalGenres {
		if strings.Contains(g, m) {
			return true
		}
	}
	return false
}

// FilterMetal keeps the tracks whose genre is a metal style.
func FilterMetal(tracks []domain.LibraryTrack) []domain.LibraryTrack {
	out := make([]domain.LibraryTrack, 0, len(tracks))
	for _, t := range tracks {
		if IsMetal(t.Genre) {
			out = append(out, t)
		}
	}
	return out
}
