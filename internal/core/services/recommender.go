package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/extract"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/genre"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/ports"
	"github.com/ewilliams-labs/tunnetilasi/internal/logging"
)

const (
	PromptMatcher = "matcher"
	PromptCurator = "curator"

	// maxLibraryTracks bounds how many imported tracks are attached to a playlist.
	maxLibraryTracks = 10
	// libraryCandidates is how many matching tracks are drawn before shuffling.
	libraryCandidates = 200
)

// PromptIDs are the provider-side ids of the two stored prompts.
type PromptIDs struct {
	Matcher string
	Curator string
}

// Recommender runs the two single-shot stages: analysis by the matcher prompt
// and curation by the curator prompt.
type Recommender struct {
	agent     ports.PromptSubmitter
	prompts   PromptIDs
	library   ports.LibraryRepository
	archive   ports.PlaylistArchive
	extractor *extract.Extractor
	now       func() time.Time
	newID     func() string
}

type RecommenderOption func(*Recommender)

// WithLibrary enables enrichment from imported library tracks.
func WithLibrary(repo ports.LibraryRepository) RecommenderOption {
	return func(r *Recommender) { r.library = repo }
}

// WithArchive stores every curated playlist.
func WithArchive(a ports.PlaylistArchive) RecommenderOption {
	return func(r *Recommender) { r.archive = a }
}

func WithExtractor(x *extract.Extractor) RecommenderOption {
	return func(r *Recommender) { r.extractor = x }
}

func WithRecommenderClock(now func() time.Time) RecommenderOption {
	return func(r *Recommender) { r.now = now }
}

func WithPlaylistIDs(newID func() string) RecommenderOption {
	return func(r *Recommender) { r.newID = newID }
}

// NewRecommender constructs a Recommender.
func NewRecommender(agent ports.PromptSubmitter, prompts PromptIDs, opts ...RecommenderOption) *Recommender {
	r := &Recommender{
		agent:     agent,
		prompts:   prompts,
		extractor: extract.New(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Analyze asks the matcher prompt to explain the emotional state and returns
// the extracted analysis together with the raw reply.
func (r *Recommender) Analyze(ctx context.Context, in domain.EmotionInput) (domain.AnalysisResult, string, error) {
	if err := in.Validate(); err != nil {
		return domain.AnalysisResult{}, "", err
	}

	input := fmt.Sprintf("Analyze emotional state: %s, stress level: %s", in.Primary, in.StressLabel())
	if in.EventLabel() != "none" {
		input += ", event: " + in.Event
	}
	raw, err := r.agent.SubmitPrompt(ctx, ports.PromptRequest{
		ID:    r.prompts.Matcher,
		Name:  PromptMatcher,
		Input: input,
		Variables: map[string]string{
			"emotion":      string(in.Primary),
			"stress_level": in.StressLabel(),
			"event":        in.EventLabel(),
		},
	})
	if err != nil {
		return domain.AnalysisResult{}, "", fmt.Errorf("recommender: analyze: %w", err)
	}

	result, err := r.extractor.Analysis(raw, in)
	if err != nil {
		return domain.AnalysisResult{}, raw, fmt.Errorf("recommender: analyze: %w", err)
	}
	return result, raw, nil
}

// Curate asks the curator prompt for a playlist matching the input and a
// previous analysis. A zero analysis is allowed.
func (r *Recommender) Curate(ctx context.Context, in domain.EmotionInput, analysis domain.AnalysisResult) (domain.Playlist, error) {
	if err := in.Validate(); err != nil {
		return domain.Playlist{}, err
	}
	return r.curate(ctx, curation{
		emotion: domain.EmotionAnalysis{
			PrimaryEmotion:   in.Primary,
			PrimaryIntensity: stressIntensity(in.StressLevel),
			Timestamp:        r.now(),
		},
		stress:   in.StressLabel(),
		event:    in.EventLabel(),
		subgenre: analysis.Subgenre,
	})
}

// Recommend runs Analyze then Curate.
func (r *Recommender) Recommend(ctx context.Context, in domain.EmotionInput) (domain.AnalysisResult, domain.Playlist, error) {
	analysis, _, err := r.Analyze(ctx, in)
	if err != nil {
		return domain.AnalysisResult{}, domain.Playlist{}, err
	}
	pl, err := r.Curate(ctx, in, analysis)
	if err != nil {
		return analysis, domain.Playlist{}, err
	}
	return analysis, pl, nil
}

// curation is what the curator prompt needs regardless of which flow resolved
// the emotion.
type curation struct {
	emotion  domain.EmotionAnalysis
	stress   string
	event    string
	subgenre string
}

func (r *Recommender) curate(ctx context.Context, c curation) (domain.Playlist, error) {
	weighting := genre.SelectFor(c.emotion)
	subgenre := c.subgenre
	if subgenre == "" || subgenre == domain.BaselineSubgenre {
		subgenre = weighting.Lead()
	}

	input := fmt.Sprintf("Create playlist for emotion: %s, stress: %s, subgenre: %s", c.emotion.PrimaryEmotion, c.stress, subgenre)
	if c.event != "" && c.event != "none" {
		input += ", event: " + c.event
	}
	raw, err := r.agent.SubmitPrompt(ctx, ports.PromptRequest{
		ID:    r.prompts.Curator,
		Name:  PromptCurator,
		Input: input,
		Variables: map[string]string{
			"subgenre":        subgenre,
			"primary_emotion": string(c.emotion.PrimaryEmotion),
			"stress_level":    c.stress,
			"event":           c.event,
		},
	})
	if err != nil {
		return domain.Playlist{}, fmt.Errorf("recommender: curate: %w", err)
	}

	result, err := r.extractor.Playlist(raw, subgenre)
	if err != nil {
		return domain.Playlist{}, fmt.Errorf("recommender: curate: %w", err)
	}

	pl, err := domain.NewPlaylist(r.newID(), c.emotion.PrimaryEmotion, secondaryFor(c.emotion))
	if err != nil {
		return domain.Playlist{}, fmt.Errorf("recommender: curate: %w", err)
	}
	pl.Subgenres = weighting.All()
	pl.Reasoning = weighting.Reasoning
	pl.Result = result
	pl.CreatedAt = r.now()
	pl.LibraryTracks = r.libraryTracks(ctx, pl.ID, weighting)

	if r.archive != nil {
		if err := r.archive.SavePlaylist(ctx, *pl); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("playlist_id", pl.ID).Msg("archive playlist failed")
		}
	}
	return *pl, nil
}

// libraryTracks picks up to maxLibraryTracks imported tracks in the weighted
// genres. The pick is shuffled with a seed derived from the playlist id so the
// same playlist always gets the same tracks.
func (r *Recommender) libraryTracks(ctx context.Context, playlistID string, w domain.GenreWeighting) []domain.LibraryTrack {
	if r.library == nil {
		return nil
	}
	genres := make([]string, 0, len(w.All()))
	for _, g := range w.All() {
		genres = append(genres, g.Phrase())
	}
	candidates, err := r.library.TracksByGenres(ctx, genres, libraryCandidates)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("library lookup failed")
		return nil
	}
	return shuffleTracks(candidates, playlistID, maxLibraryTracks)
}

func shuffleTracks(tracks []domain.LibraryTrack, seedKey string, limit int) []domain.LibraryTrack {
	if len(tracks) == 0 {
		return nil
	}
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(seedKey))
	// #nosec G404 -- reproducible shuffle, not security-sensitive
	rng := rand.New(rand.NewSource(int64(hasher.Sum32())))

	out := append([]domain.LibraryTrack(nil), tracks...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// secondaryFor names the secondary emotion in the playlist title only when it
// was strong enough to influence the genres.
func secondaryFor(a domain.EmotionAnalysis) domain.Emotion {
	if a.SecondaryEmotion.Valid() && a.SecondaryIntensity > 30 && a.SecondaryEmotion != a.PrimaryEmotion {
		return a.SecondaryEmotion
	}
	return ""
}

// stressIntensity maps the 0..7 stress selector onto the 0..100 intensity scale.
func stressIntensity(level *int) int {
	if level == nil {
		return 50
	}
	return *level * 100 / domain.MaxStressLevel
}
