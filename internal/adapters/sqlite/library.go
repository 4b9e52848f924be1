package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
)

const libraryColumns = `id, name, artist, IFNULL(album, ''), genre, IFNULL(year, 0), IFNULL(play_count, 0), IFNULL(duration_ms, 0), IFNULL(rating, 0)`

// SaveLibraryTracks upserts tracks in one transaction.
func (a *Adapter) SaveLibraryTracks(ctx context.Context, tracks []domain.LibraryTrack) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO library_tracks (id, name, artist, album, genre, year, play_count, duration_ms, rating)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			artist=excluded.artist,
			album=excluded.album,
			genre=excluded.genre,
			year=excluded.year,
			play_count=excluded.play_count,
			duration_ms=excluded.duration_ms,
			rating=excluded.rating;
	`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare track upsert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tracks {
		if _, err := stmt.ExecContext(ctx, t.ID, t.Name, t.Artist, t.Album, t.Genre, t.Year, t.PlayCount, t.DurationMs, t.Rating); err != nil {
			return fmt.Errorf("sqlite: save track %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit tracks: %w", err)
	}
	return nil
}

// TracksByGenres returns up to limit tracks whose genre contains any of the
// given phrases, most played first.
func (a *Adapter) TracksByGenres(ctx context.Context, genres []string, limit int) ([]domain.LibraryTrack, error) {
	if len(genres) == 0 || limit <= 0 {
		return nil, nil
	}

	clauses := make([]string, 0, len(genres))
	args := make([]any, 0, len(genres)+1)
	for _, g := range genres {
		clauses = append(clauses, "LOWER(genre) LIKE ?")
		args = append(args, "%"+strings.ToLower(g)+"%")
	}
	args = append(args, limit)

	// #nosec G202 -- only placeholders are concatenated
	query := "SELECT " + libraryColumns + " FROM library_tracks WHERE " + strings.Join(clauses, " OR ") +
		" ORDER BY IFNULL(play_count, 0) DESC, id ASC LIMIT ?"
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query tracks by genre: %w", err)
	}
	return scanTracks(rows)
}

// ListLibraryTracks returns every stored track ordered by artist and name.
func (a *Adapter) ListLibraryTracks(ctx context.Context) ([]domain.LibraryTrack, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT "+libraryColumns+" FROM library_tracks ORDER BY artist, name, id")
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tracks: %w", err)
	}
	return scanTracks(rows)
}

func (a *Adapter) LibraryStats(ctx context.Context) (domain.LibraryStats, error) {
	var stats domain.LibraryStats
	if err := a.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT artist), COUNT(DISTINCT genre) FROM library_tracks",
	).Scan(&stats.Tracks, &stats.Artists, &stats.Genres); err != nil {
		return domain.LibraryStats{}, fmt.Errorf("sqlite: library stats: %w", err)
	}
	return stats, nil
}

func scanTracks(rows *sql.Rows) ([]domain.LibraryTrack, error) {
	defer rows.Close()

	tracks := []domain.LibraryTrack{}
	for rows.Next() {
		var t domain.LibraryTrack
		if err := rows.Scan(&t.ID, &t.Name, &t.Artist, &t.Album, &t.Genre, &t.Year, &t.PlayCount, &t.DurationMs, &t.Rating); err != nil {
			return nil, fmt.Errorf("sqlite: scan track: %w", err)
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate tracks: %w", err)
	}
	return tracks, nil
}
