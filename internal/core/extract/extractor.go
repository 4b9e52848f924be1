// Package extract turns free-form or semi-structured agent replies into typed
// analysis and playlist results.
//
// Both entry points run an ordered cascade: direct JSON, alternate JSON shapes,
// entity/line heuristics (playlists) or paragraph classification (analyses), and
// finally a deterministic synthetic result. The first rung that yields a valid
// candidate wins. Only empty input is an error.
package extract

import (
	"strings"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
)

// Strategy names reported on results and to observers.
const (
	StrategyDirectJSON    = "direct_json"
	StrategyAlternateJSON = "alternate_json"
	StrategyEntityRegex   = "entity_regex"
	StrategyParagraph     = "paragraph_split"
	StrategySynthetic     = "synthetic"
)

const (
	TargetAnalysis = "analysis"
	TargetPlaylist = "playlist"
)

var (
	subgenreKeys = []string{"subgenre", "genre", "subGenre", "metal_subgenre"}
	stressKeys   = []string{"stress_level", "stressLevel", "stress"}
	causeKeys    = []string{"cause", "context", "reason_for_emotion"}
	choiceKeys   = []string{"choice", "reasoning", "rationale", "genre_rationale"}

	artistNameKeys = []string{"artist", "Artist", "name", "band"}
	artistLinkKeys = []string{"link", "Link", "url"}
	trackTitleKeys = []string{"title", "Title", "song", "track", "name"}
)

// Observer is told which strategy produced each result.
type Observer func(target, strategy string)

// Extractor runs the cascades. The zero value is ready to use.
type Extractor struct {
	observe Observer
}

type Option func(*Extractor)

// WithObserver registers a callback invoked after every successful extraction.
func WithObserver(o Observer) Option {
	return func(x *Extractor) { x.observe = o }
}

func New(opts ...Option) *Extractor {
	x := &Extractor{}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

var defaultExtractor = New()

// ExtractAnalysis runs the analysis cascade with no observer.
func ExtractAnalysis(text string, hint domain.EmotionInput) (domain.AnalysisResult, error) {
	return defaultExtractor.Analysis(text, hint)
}

// ExtractPlaylist runs the playlist cascade with no observer.
func ExtractPlaylist(text, subgenreHint string) (domain.PlaylistResult, error) {
	return defaultExtractor.Playlist(text, subgenreHint)
}

// Analysis converts an analysis reply into an AnalysisResult. hint supplies the
// emotion and stress the caller already knows; its zero value is allowed.
func (x *Extractor) Analysis(text string, hint domain.EmotionInput) (domain.AnalysisResult, error) {
	if strings.TrimSpace(text) == "" {
		return domain.AnalysisResult{}, domain.ErrExtractionExhausted
	}

	var result domain.AnalysisResult
	if obj, ok := Classify(text).(AnalysisObject); ok && isAnalysisObject(obj.Fields) {
		result = analysisFromObject(obj.Fields, text, hint)
	} else {
		result = analysisFromText(text, hint)
	}
	x.record(TargetAnalysis, result.Strategy)
	return result, nil
}

// Playlist converts a curation reply into a PlaylistResult. subgenreHint names
// the genre placeholder entries stand for if nothing can be salvaged.
func (x *Extractor) Playlist(text, subgenreHint string) (domain.PlaylistResult, error) {
	if strings.TrimSpace(text) == "" {
		return domain.PlaylistResult{}, domain.ErrExtractionExhausted
	}
	result := playlistFrom(text, subgenreHint)
	x.record(TargetPlaylist, result.Strategy)
	return result, nil
}

func (x *Extractor) record(target, strategy string) {
	if x != nil && x.observe != nil {
		x.observe(target, strategy)
	}
}

func playlistFrom(text, subgenreHint string) domain.PlaylistResult {
	switch s := Classify(text).(type) {
	case ArtistSelection:
		strategy := StrategyAlternateJSON
		if s.Canonical {
			strategy = StrategyDirectJSON
		}
		if r, ok := artistsFromEntries(s.Entries, strategy); ok {
			return r
		}
	case DirectArray:
		if r, ok := artistsFromEntries(s.Entries, StrategyAlternateJSON); ok {
			return r
		}
	case LegacyPlaylist:
		if r, ok := tracksFromEntries(s.Entries); ok {
			return r
		}
	case AnalysisObject, FreeText:
		// no list shape; fall through to the heuristics
	}

	if names := artistsFromText(text); len(names) > 0 {
		r := domain.NewArtistList()
		for _, name := range names {
			_ = r.AddArtist(domain.ArtistEntry{Artist: name})
		}
		if r.Len() > 0 {
			r.Strategy = StrategyEntityRegex
			return *r
		}
	}

	subgenre := strings.TrimSpace(subgenreHint)
	if subgenre == "" {
		subgenre = DetectSubgenre(text)
	}
	return syntheticPlaylist(subgenre)
}

func artistsFromEntries(entries []any, strategy string) (domain.PlaylistResult, bool) {
	r := domain.NewArtistList()
	for _, entry := range entries {
		var e domain.ArtistEntry
		switch v := entry.(type) {
		case map[string]any:
			e = domain.ArtistEntry{Artist: lookup(v, artistNameKeys...), Link: lookup(v, artistLinkKeys...)}
		case string:
			e = domain.ArtistEntry{Artist: v}
		default:
			continue
		}
		// invalid, duplicate and overflow entries are skipped
		_ = r.AddArtist(e)
	}
	if r.Len() == 0 {
		return domain.PlaylistResult{}, false
	}
	r.Strategy = strategy
	return *r, true
}

func tracksFromEntries(entries []any) (domain.PlaylistResult, bool) {
	r := domain.PlaylistResult{Kind: domain.KindTracks, Tracks: []domain.TrackEntry{}}
	for _, entry := range entries {
		v, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		_ = r.AddTrack(domain.TrackEntry{Title: lookup(v, trackTitleKeys...), Artist: lookup(v, artistNameKeys...)})
	}
	if r.Len() == 0 {
		return domain.PlaylistResult{}, false
	}
	r.Strategy = StrategyAlternateJSON
	return r, true
}

func isAnalysisObject(fields map[string]any) bool {
	return hasAny(fields, subgenreKeys...) ||
		hasAny(fields, emotionKeys...) ||
		hasAny(fields, causeKeys...) ||
		hasAny(fields, choiceKeys...)
}

func analysisFromObject(fields map[string]any, text string, hint domain.EmotionInput) domain.AnalysisResult {
	canonical := hasAny(fields, "subgenre") && hasAny(fields, "cause", "choice")

	subgenre := lookup(fields, subgenreKeys...)
	if subgenre == "" {
		subgenre = DetectSubgenre(text)
	}
	stress := lookup(fields, stressKeys...)
	if stress == "" {
		stress = hint.StressLabel()
	}
	emotion, ok := domain.ParseEmotion(lookup(fields, emotionKeys...))
	if !ok {
		emotion = resolveEmotion(text, hint)
	}

	result := domain.AnalysisResult{
		Subgenre:       subgenre,
		PrimaryEmotion: emotion,
		StressLevel:    stress,
		Cause:          lookup(fields, causeKeys...),
		Choice:         lookup(fields, choiceKeys...),
		Strategy:       StrategyAlternateJSON,
	}
	if canonical {
		result.Strategy = StrategyDirectJSON
	}
	fillDefaults(&result)
	return result
}

func analysisFromText(text string, hint domain.EmotionInput) domain.AnalysisResult {
	cause, choice := causeAndChoice(text)
	result := domain.AnalysisResult{
		Subgenre:       DetectSubgenre(text),
		PrimaryEmotion: resolveEmotion(text, hint),
		StressLevel:    hint.StressLabel(),
		Cause:          cause,
		Choice:         choice,
		Strategy:       StrategyParagraph,
	}
	if cause == "" && choice == "" {
		result.Strategy = StrategySynthetic
	}
	fillDefaults(&result)
	return result
}

func resolveEmotion(text string, hint domain.EmotionInput) domain.Emotion {
	if hint.Primary.Valid() {
		return hint.Primary
	}
	if e, ok := DetectEmotion(text); ok {
		return e
	}
	return domain.DefaultEmotion
}

func fillDefaults(r *domain.AnalysisResult) {
	if r.Subgenre == "" {
		r.Subgenre = domain.BaselineSubgenre
	}
	if r.StressLevel == "" {
		r.StressLevel = "none"
	}
	if r.Cause == "" {
		r.Cause = domain.DefaultCause
		r.Synthesized = true
	}
	if r.Choice == "" {
		r.Choice = domain.DefaultChoice(r.Subgenre)
		r.Synthesized = true
	}
}
