package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
)

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SavePlaylist upserts the playlist and relinks its library tracks.
func (a *Adapter) SavePlaylist(ctx context.Context, p domain.Playlist) error {
	subgenres, err := json.Marshal(p.Subgenres)
	if err != nil {
		return fmt.Errorf("sqlite: encode subgenres: %w", err)
	}
	result, err := json.Marshal(p.Result)
	if err != nil {
		return fmt.Errorf("sqlite: encode result: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO playlists (id, name, emotion, subgenres, reasoning, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			emotion=excluded.emotion,
			subgenres=excluded.subgenres,
			reasoning=excluded.reasoning,
			result=excluded.result;
	`, p.ID, p.Name, string(p.Emotion), string(subgenres), p.Reasoning, string(result), p.CreatedAt.UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("sqlite: save playlist: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM playlist_tracks WHERE playlist_id = ?", p.ID); err != nil {
		return fmt.Errorf("sqlite: clear playlist tracks: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO playlist_tracks (playlist_id, track_id, position)
		VALUES (?, ?, ?)
		ON CONFLICT(playlist_id, track_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare link: %w", err)
	}
	defer stmt.Close()

	for i, t := range p.LibraryTracks {
		if _, err := stmt.ExecContext(ctx, p.ID, t.ID, i); err != nil {
			return fmt.Errorf("sqlite: link track %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit playlist: %w", err)
	}
	return nil
}

// GetPlaylist loads one playlist with its linked library tracks.
func (a *Adapter) GetPlaylist(ctx context.Context, id string) (domain.Playlist, error) {
	row := a.db.QueryRowContext(ctx, "SELECT id, name, emotion, subgenres, IFNULL(reasoning, ''), result, created_at FROM playlists WHERE id = ?", id)
	p, err := scanPlaylist(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Playlist{}, domain.ErrNotFound
		}
		return domain.Playlist{}, err
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.artist, IFNULL(t.album, ''), t.genre, IFNULL(t.year, 0),
			IFNULL(t.play_count, 0), IFNULL(t.duration_ms, 0), IFNULL(t.rating, 0)
		FROM library_tracks t
		JOIN playlist_tracks pt ON pt.track_id = t.id
		WHERE pt.playlist_id = ?
		ORDER BY pt.position ASC
	`, id)
	if err != nil {
		return domain.Playlist{}, fmt.Errorf("sqlite: load playlist tracks: %w", err)
	}
	tracks, err := scanTracks(rows)
	if err != nil {
		return domain.Playlist{}, err
	}
	if len(tracks) > 0 {
		p.LibraryTracks = tracks
	}
	return p, nil
}

// ListPlaylists returns the newest playlists first. Linked library tracks are
// not loaded.
func (a *Adapter) ListPlaylists(ctx context.Context, limit int) ([]domain.Playlist, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx,
		"SELECT id, name, emotion, subgenres, IFNULL(reasoning, ''), result, created_at FROM playlists ORDER BY created_at DESC, id ASC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list playlists: %w", err)
	}
	defer rows.Close()

	playlists := []domain.Playlist{}
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate playlists: %w", err)
	}
	return playlists, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlaylist(s scanner) (domain.Playlist, error) {
	var (
		p         domain.Playlist
		emotion   string
		subgenres string
		result    string
		createdAt string
	)
	if err := s.Scan(&p.ID, &p.Name, &emotion, &subgenres, &p.Reasoning, &result, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Playlist{}, err
		}
		return domain.Playlist{}, fmt.Errorf("sqlite: scan playlist: %w", err)
	}
	p.Emotion = domain.Emotion(emotion)
	if err := json.Unmarshal([]byte(subgenres), &p.Subgenres); err != nil {
		return domain.Playlist{}, fmt.Errorf("sqlite: decode subgenres: %w", err)
	}
	if err := json.Unmarshal([]byte(result), &p.Result); err != nil {
		return domain.Playlist{}, fmt.Errorf("sqlite: decode result: %w", err)
	}
	created, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return domain.Playlist{}, fmt.Errorf("sqlite: parse created_at: %w", err)
	}
	p.CreatedAt = created
	return p, nil
}
