// Package db persists the download history of the command-line client:
// one row per completed download, keyed by output path.
package db

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// HistoryRecord is one completed download.
type HistoryRecord struct {
	ID           int64
	ContentID    string
	Title        string
	Artist       string
	Album        string
	DurationSec  int
	MediaType    string
	Quality      string
	FilePath     string
	SourceURL    string
	ThumbnailURL string
	FileSize     int64
	CreatedAt    time.Time
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS history (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    content_id      TEXT NOT NULL DEFAULT '',
    title           TEXT NOT NULL DEFAULT '',
    artist          TEXT NOT NULL DEFAULT '',
    album           TEXT NOT NULL DEFAULT '',
    duration        INTEGER NOT NULL DEFAULT 0,
    media_type      TEXT NOT NULL DEFAULT 'video',
    quality         TEXT NOT NULL DEFAULT '',
    file_path       TEXT NOT NULL UNIQUE,
    source_url      TEXT NOT NULL DEFAULT '',
    thumbnail_url   TEXT NOT NULL DEFAULT '',
    file_size       INTEGER NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_history_content_id ON history(content_id);
CREATE INDEX IF NOT EXISTS idx_history_artist ON history(artist);
CREATE INDEX IF NOT EXISTS idx_history_created_at ON history(created_at);
`

// DB wraps an SQLite connection for the download history.
type DB struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the history database at the given path.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database at %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	if _, err := sqlDB.Exec(createTableSQL); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: sqlDB}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Record inserts or updates a history row by file path and returns its
// id.
func (d *DB) Record(record HistoryRecord) (int64, error) {
	if d == nil || d.db == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`
		INSERT INTO history (
			content_id, title, artist, album, duration, media_type,
			quality, file_path, source_url, thumbnail_url, file_size
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			content_id=excluded.content_id, title=excluded.title,
			artist=excluded.artist, album=excluded.album,
			duration=excluded.duration, media_type=excluded.media_type,
			quality=excluded.quality, source_url=excluded.source_url,
			thumbnail_url=excluded.thumbnail_url, file_size=excluded.file_size
	`,
		record.ContentID, record.Title, record.Artist, record.Album,
		record.DurationSec, record.MediaType, record.Quality,
		record.FilePath, record.SourceURL, record.ThumbnailURL, record.FileSize,
	)
	if err != nil {
		return 0, fmt.Errorf("recording download: %w", err)
	}

	// LastInsertId is unreliable for ON CONFLICT DO UPDATE; query the actual row ID.
	var id int64
	if err := d.db.QueryRow("SELECT id FROM history WHERE file_path = ?", record.FilePath).Scan(&id); err != nil {
		return 0, fmt.Errorf("querying recorded id: %w", err)
	}
	return id, nil
}

// Recent returns the newest history rows, most recent first.
func (d *DB) Recent(limit, offset int) ([]HistoryRecord, error) {
	if d == nil || d.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := d.db.Query(`
		SELECT id, content_id, title, artist, album, duration, media_type,
			quality, file_path, source_url, thumbnail_url, file_size, created_at
		FROM history
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var records []HistoryRecord
	for rows.Next() {
		var r HistoryRecord
		if err := rows.Scan(
			&r.ID, &r.ContentID, &r.Title, &r.Artist, &r.Album, &r.DurationSec,
			&r.MediaType, &r.Quality, &r.FilePath, &r.SourceURL, &r.ThumbnailURL,
			&r.FileSize, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Seen reports whether a content id already has a history row.
func (d *DB) Seen(contentID string) (bool, error) {
	if d == nil || d.db == nil {
		return false, fmt.Errorf("database not initialized")
	}

	var count int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM history WHERE content_id = ?", contentID).Scan(&count); err != nil {
		return false, fmt.Errorf("checking history: %w", err)
	}
	return count > 0, nil
}

// Count returns the total number of history rows.
func (d *DB) Count() (int, error) {
	if d == nil || d.db == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	var count int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM history").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting history: %w", err)
	}
	return count, nil
}
