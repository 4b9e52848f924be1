package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
)

type mockLibrary struct {
	tracks    []domain.LibraryTrack
	err       error
	gotGenres []string
}

func (m *mockLibrary) SaveLibraryTracks(ctx context.Context, tracks []domain.LibraryTrack) error {
	return nil
}

func (m *mockLibrary) TracksByGenres(ctx context.Context, genres []string, limit int) ([]domain.LibraryTrack, error) {
	m.gotGenres = genres
	return m.tracks, m.err
}

func (m *mockLibrary) ListLibraryTracks(ctx context.Context) ([]domain.LibraryTrack, error) {
	return m.tracks, nil
}

func (m *mockLibrary) LibraryStats(ctx context.Context) (domain.LibraryStats, error) {
	return domain.LibraryStats{Tracks: len(m.tracks)}, nil
}

type mockArchive struct {
	saved []domain.Playlist
	err   error
}

func (m *mockArchive) SavePlaylist(ctx context.Context, p domain.Playlist) error {
	m.saved = append(m.saved, p)
	return m.err
}

func (m *mockArchive) GetPlaylist(ctx context.Context, id string) (domain.Playlist, error) {
	return domain.Playlist{}, domain.ErrNotFound
}

func (m *mockArchive) ListPlaylists(ctx context.Context, limit int) ([]domain.Playlist, error) {
	return m.saved, nil
}

func intPtr(v int) *int { return &v }

func TestRecommender_Analyze(t *testing.T) {
	prompts := &mockPrompts{reply: "The IT reorg keeps piling on.\n\nBlack metal gives that pressure somewhere to go."}
	r := NewRecommender(prompts, PromptIDs{Matcher: "pmpt_m", Curator: "pmpt_c"})

	in := domain.EmotionInput{Primary: domain.EmotionHysterical, StressLevel: intPtr(6), Event: "layoffs"}
	got, raw, err := r.Analyze(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, prompts.reply, raw)
	assert.Equal(t, "black metal", got.Subgenre)
	assert.Equal(t, domain.EmotionHysterical, got.PrimaryEmotion)
	assert.Equal(t, "6", got.StressLevel)
	assert.Equal(t, "The IT reorg keeps piling on.", got.Cause)

	require.Len(t, prompts.requests, 1)
	req := prompts.requests[0]
	assert.Equal(t, "pmpt_m", req.ID)
	assert.Equal(t, PromptMatcher, req.Name)
	assert.Equal(t, "Analyze emotional state: hysterical, stress level: 6, event: layoffs", req.Input)
	assert.Equal(t, map[string]string{"emotion": "hysterical", "stress_level": "6", "event": "layoffs"}, req.Variables)
}

func TestRecommender_AnalyzeRejectsInvalidInput(t *testing.T) {
	prompts := &mockPrompts{reply: "unused"}
	r := NewRecommender(prompts, PromptIDs{})

	tests := []domain.EmotionInput{
		{Primary: "melancholic"},
		{Primary: domain.EmotionSad, StressLevel: intPtr(8)},
		{Primary: domain.EmotionSad, StressLevel: intPtr(-1)},
	}
	for _, in := range tests {
		_, _, err := r.Analyze(context.Background(), in)
		assert.ErrorIs(t, err, domain.ErrValidation)
	}
	assert.Empty(t, prompts.requests)
}

func TestRecommender_AnalyzeProviderError(t *testing.T) {
	r := NewRecommender(&mockPrompts{err: errors.New("boom")}, PromptIDs{})
	_, _, err := r.Analyze(context.Background(), domain.EmotionInput{Primary: domain.EmotionCalm})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recommender: analyze")
}

func TestRecommender_Curate(t *testing.T) {
	prompts := &mockPrompts{reply: selectionJSON}
	archive := &mockArchive{}
	now := time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC)
	r := NewRecommender(prompts, PromptIDs{Curator: "pmpt_c"},
		WithArchive(archive),
		WithRecommenderClock(func() time.Time { return now }),
		WithPlaylistIDs(func() string { return "pl-fixed" }),
	)

	in := domain.EmotionInput{Primary: domain.EmotionSad, StressLevel: intPtr(7), Event: "moving away"}
	pl, err := r.Curate(context.Background(), in, domain.AnalysisResult{Subgenre: "black metal"})
	require.NoError(t, err)

	assert.Equal(t, "pl-fixed", pl.ID)
	assert.Equal(t, "Sad Metal Mix", pl.Name)
	assert.Equal(t, now, pl.CreatedAt)
	assert.Equal(t, []string{"Mayhem", "Gorgoroth"}, pl.Result.ArtistNames())
	assert.Contains(t, pl.Reasoning, "high intensity sad")
	assert.NotEmpty(t, pl.Subgenres)

	req := prompts.requests[0]
	assert.Equal(t, "Create playlist for emotion: sad, stress: 7, subgenre: black metal, event: moving away", req.Input)
	assert.Equal(t, "black metal", req.Variables["subgenre"])

	require.Len(t, archive.saved, 1)
	assert.Equal(t, "pl-fixed", archive.saved[0].ID)
}

func TestRecommender_CurateDefaultsSubgenreToWeighting(t *testing.T) {
	prompts := &mockPrompts{reply: "nothing useful here."}
	r := NewRecommender(prompts, PromptIDs{})

	pl, err := r.Curate(context.Background(), domain.EmotionInput{Primary: domain.EmotionTired}, domain.AnalysisResult{})
	require.NoError(t, err)

	assert.Equal(t, "doom metal", prompts.requests[0].Variables["subgenre"])
	assert.True(t, pl.Result.Synthesized)
	assert.Equal(t, "doom metal Artist 1", pl.Result.Artists[0].Artist)
}

func TestRecommender_ArchiveFailureIsNotFatal(t *testing.T) {
	r := NewRecommender(&mockPrompts{reply: selectionJSON}, PromptIDs{}, WithArchive(&mockArchive{err: errors.New("disk full")}))
	_, err := r.Curate(context.Background(), domain.EmotionInput{Primary: domain.EmotionCalm}, domain.AnalysisResult{})
	assert.NoError(t, err)
}

func TestRecommender_LibraryEnrichment(t *testing.T) {
	var tracks []domain.LibraryTrack
	for i := 0; i < 25; i++ {
		tracks = append(tracks, domain.LibraryTrack{ID: fmt.Sprint(i), Name: fmt.Sprintf("Song %d", i), Artist: "Band", Genre: "Doom Metal"})
	}
	lib := &mockLibrary{tracks: tracks}
	r := NewRecommender(&mockPrompts{reply: selectionJSON}, PromptIDs{},
		WithLibrary(lib),
		WithPlaylistIDs(func() string { return "same-id" }),
	)

	first, err := r.Curate(context.Background(), domain.EmotionInput{Primary: domain.EmotionTired}, domain.AnalysisResult{})
	require.NoError(t, err)
	second, err := r.Curate(context.Background(), domain.EmotionInput{Primary: domain.EmotionTired}, domain.AnalysisResult{})
	require.NoError(t, err)

	assert.Len(t, first.LibraryTracks, maxLibraryTracks)
	assert.Equal(t, first.LibraryTracks, second.LibraryTracks)
	assert.Contains(t, lib.gotGenres, "doom metal")
}

func TestRecommender_LibraryErrorIsNotFatal(t *testing.T) {
	r := NewRecommender(&mockPrompts{reply: selectionJSON}, PromptIDs{}, WithLibrary(&mockLibrary{err: errors.New("locked")}))
	pl, err := r.Curate(context.Background(), domain.EmotionInput{Primary: domain.EmotionHappy}, domain.AnalysisResult{})
	require.NoError(t, err)
	assert.Empty(t, pl.LibraryTracks)
}

func TestRecommender_Recommend(t *testing.T) {
	prompts := &mockPrompts{reply: selectionJSON}
	r := NewRecommender(prompts, PromptIDs{Matcher: "m", Curator: "c"})

	analysis, pl, err := r.Recommend(context.Background(), domain.EmotionInput{Primary: domain.EmotionEnraged})
	require.NoError(t, err)

	assert.True(t, analysis.Complete())
	assert.Equal(t, "Enraged Metal Mix", pl.Name)
	require.Len(t, prompts.requests, 2)
	assert.Equal(t, "m", prompts.requests[0].ID)
	assert.Equal(t, "c", prompts.requests[1].ID)
}

func TestShuffleTracks(t *testing.T) {
	tracks := []domain.LibraryTrack{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}

	assert.Nil(t, shuffleTracks(nil, "x", 10))
	assert.Equal(t, shuffleTracks(tracks, "seed", 10), shuffleTracks(tracks, "seed", 10))
	assert.Len(t, shuffleTracks(tracks, "seed", 2), 2)
	assert.Equal(t, "a", tracks[0].ID, "input must not be reordered")
}

func TestStressIntensity(t *testing.T) {
	assert.Equal(t, 50, stressIntensity(nil))
	assert.Equal(t, 0, stressIntensity(intPtr(0)))
	assert.Equal(t, 100, stressIntensity(intPtr(7)))
}
