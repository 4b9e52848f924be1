package domain

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

var (
	ErrDuplicateArtist = errors.New("domain: duplicate artist")
	ErrInvalidName     = errors.New("domain: name length must be between 3 and 49 characters")
	ErrPlaylistFull    = errors.New("domain: playlist is full")
)

const (
	MaxArtists = 15
	// names must be strictly longer than MinNameLen and shorter than MaxNameLen
	MinNameLen = 2
	MaxNameLen = 50
)

// PlaylistKind tags which list a PlaylistResult carries.
type PlaylistKind string

const (
	KindArtists PlaylistKind = "artists"
	KindTracks  PlaylistKind = "tracks"
)

type ArtistEntry struct {
	Artist string `json:"artist"`
	Link   string `json:"link"`
}

type TrackEntry struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// PlaylistResult is the typed output of the curation stage.
// Exactly one of Artists or Tracks is populated, selected by Kind.
type PlaylistResult struct {
	Kind        PlaylistKind  `json:"type"`
	Artists     []ArtistEntry `json:"artists,omitempty"`
	Tracks      []TrackEntry  `json:"playlist,omitempty"`
	// Subgenre is set on synthesized results to the genre the placeholders stand for.
	Subgenre    string        `json:"subgenre,omitempty"`
	Synthesized bool          `json:"synthesized,omitempty"`
	Strategy    string        `json:"strategy,omitempty"`
}

// NewArtistList returns an empty artist-kind result.
func NewArtistList() *PlaylistResult {
	return &PlaylistResult{Kind: KindArtists, Artists: []ArtistEntry{}}
}

// ValidName reports whether a name fits the (2, 50) length window.
func ValidName(name string) bool {
	n := len([]rune(strings.TrimSpace(name)))
	return n > MinNameLen && n < MaxNameLen
}

// AddArtist appends an artist while preventing case-insensitive duplicates.
// A missing link is replaced by an Apple Music search link.
func (p *PlaylistResult) AddArtist(e ArtistEntry) error {
	e.Artist = strings.TrimSpace(e.Artist)
	if !ValidName(e.Artist) {
		return ErrInvalidName
	}
	if len(p.Artists) >= MaxArtists {
		return ErrPlaylistFull
	}
	for _, ex := range p.Artists {
		if strings.EqualFold(ex.Artist, e.Artist) {
			return ErrDuplicateArtist
		}
	}
	if strings.TrimSpace(e.Link) == "" {
		e.Link = SearchLink(e.Artist)
	}
	p.Artists = append(p.Artists, e)
	return nil
}

// AddTrack appends a legacy title/artist entry.
func (p *PlaylistResult) AddTrack(t TrackEntry) error {
	t.Title = strings.TrimSpace(t.Title)
	t.Artist = strings.TrimSpace(t.Artist)
	if t.Title == "" || !ValidName(t.Artist) {
		return ErrInvalidName
	}
	p.Tracks = append(p.Tracks, t)
	return nil
}

// Len returns the number of entries of the active kind.
func (p PlaylistResult) Len() int {
	if p.Kind == KindTracks {
		return len(p.Tracks)
	}
	return len(p.Artists)
}

// ArtistNames returns the artist of every entry in order.
func (p PlaylistResult) ArtistNames() []string {
	if p.Kind == KindTracks {
		names := make([]string, 0, len(p.Tracks))
		for _, t := range p.Tracks {
			names = append(names, t.Artist)
		}
		return names
	}
	names := make([]string, 0, len(p.Artists))
	for _, a := range p.Artists {
		names = append(names, a.Artist)
	}
	return names
}

// SearchLink builds an Apple Music search URL for term.
func SearchLink(term string) string {
	return "https://music.apple.com/search?term=" + url.QueryEscape(term)
}

// Playlist is a finished recommendation ready to be shown or archived.
type Playlist struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Emotion       Emotion        `json:"emotion"`
	Subgenres     []Subgenre     `json:"metalSubgenres"`
	Reasoning     string         `json:"reasoning,omitempty"`
	Result        PlaylistResult `json:"result"`
	LibraryTracks []LibraryTrack `json:"libraryTracks,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// PlaylistName titles a playlist after the emotions it was built for.
func PlaylistName(primary, secondary Emotion) string {
	if secondary != "" {
		return primary.Title() + " & " + secondary.Title() + " Metal Mix"
	}
	return primary.Title() + " Metal Mix"
}

// NewPlaylist validates the identity fields and returns an empty playlist.
func NewPlaylist(id string, primary, secondary Emotion) (*Playlist, error) {
	if id == "" || primary == "" {
		return nil, errors.New("domain: invalid argument")
	}
	return &Playlist{
		ID:        id,
		Name:      PlaylistName(primary, secondary),
		Emotion:   primary,
		Result:    PlaylistResult{Kind: KindArtists, Artists: []ArtistEntry{}},
		CreatedAt: time.Now().UTC(),
	}, nil
}
