// Package sqlite stores imported library tracks and the archive of finished
// playlists. Sessions are not persisted here.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/tunnetilasi/internal/core/ports"
)

var (
	_ ports.LibraryRepository = (*Adapter)(nil)
	_ ports.PlaylistArchive   = (*Adapter)(nil)
)

// Adapter implements the library and archive ports for SQLite.
type Adapter struct {
	db *sql.DB
}

// NewAdapter opens the database and runs the schema migration.
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	// An in-memory database lives and dies with its only connection.
	if storagePath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping db: %w", err)
	}

	adapter := &Adapter{db: db}
	if err := adapter.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return adapter, nil
}

func (a *Adapter) Close() error {
	return a.db.Close()
}

// Ping reports whether the database is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS library_tracks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		artist TEXT NOT NULL,
		album TEXT,
		genre TEXT NOT NULL,
		year INTEGER,
		play_count INTEGER,
		duration_ms INTEGER,
		rating INTEGER,
		imported_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_library_tracks_genre ON library_tracks (genre);

	CREATE TABLE IF NOT EXISTS playlists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		emotion TEXT NOT NULL,
		subgenres TEXT NOT NULL,
		reasoning TEXT,
		result TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS playlist_tracks (
		playlist_id TEXT,
		track_id TEXT,
		position INTEGER NOT NULL,
		PRIMARY KEY (playlist_id, track_id),
		FOREIGN KEY(playlist_id) REFERENCES playlists(id) ON DELETE CASCADE,
		FOREIGN KEY(track_id) REFERENCES library_tracks(id) ON DELETE CASCADE
	);
	`
	if _, err := a.db.Exec(query); err != nil {
		return err
	}

	// Columns added after the first release.
	if _, err := a.db.Exec("ALTER TABLE library_tracks ADD COLUMN rating INTEGER"); err != nil {
		if !isDuplicateColumnError(err) {
			return err
		}
	}
	return nil
}

func isDuplicateColumnError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "duplicate column") || strings.Contains(err.Error(), "already exists"))
}
