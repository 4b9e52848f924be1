package worker

import (
	"context"
	"fmt"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
	"github.com/ewilliams-labs/tunnetilasi/internal/core/ports"
)

var _ ports.PlaylistArchive = (*AsyncArchive)(nil)

// AsyncArchive queues playlist writes on the pool and reads straight from
// the underlying archive.
type AsyncArchive struct {
	pool *Pool
}

// Archive returns a PlaylistArchive whose writes go through the pool.
func (p *Pool) Archive() *AsyncArchive {
	return &AsyncArchive{pool: p}
}

func (a *AsyncArchive) SavePlaylist(_ context.Context, pl domain.Playlist) error {
	if _, err := a.pool.Submit(Job{Kind: KindArchivePlaylist, Playlist: &pl}); err != nil {
		return fmt.Errorf("worker: archive playlist %s: %w", pl.ID, err)
	}
	return nil
}

func (a *AsyncArchive) GetPlaylist(ctx context.Context, id string) (domain.Playlist, error) {
	return a.pool.archive.GetPlaylist(ctx, id)
}

func (a *AsyncArchive) ListPlaylists(ctx context.Context, limit int) ([]domain.Playlist, error) {
	return a.pool.archive.ListPlaylists(ctx, limit)
}
