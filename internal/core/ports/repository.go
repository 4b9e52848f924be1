package ports

import (
	"context"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
)

// PlaylistArchive stores finished playlists.
type PlaylistArchive interface {
	SavePlaylist(ctx context.Context, p domain.Playlist) error
	GetPlaylist(ctx context.Context, id string) (domain.Playlist, error)
	ListPlaylists(ctx context.Context, limit int) ([]domain.Playlist, error)
}

// LibraryRepository stores tracks imported from a music library export.
type LibraryRepository interface {
	SaveLibraryTracks(ctx context.Context, tracks []domain.LibraryTrack) error
	TracksByGenres(ctx context.Context, genres []string, limit int) ([]domain.LibraryTrack, error)
	ListLibraryTracks(ctx context.Context) ([]domain.LibraryTrack, error)
	LibraryStats(ctx context.Context) (domain.LibraryStats, error)
}
