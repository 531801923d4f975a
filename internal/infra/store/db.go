// Package store provides the SQLite-backed local library store.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	zlog "github.com/rs/zerolog/log"

	"github.com/vivizzz007/vivi-music-sub008/internal/domain/album"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/artist"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/playlist"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/track"
)

// SchemaVersion is the current database schema version.
const SchemaVersion = "1"

// Queries is the set of reads and writes available both on the DB and inside a transaction.
// Lookups of a missing row return (nil, nil).
type Queries interface {
	Song(ctx context.Context, id string) (*track.Track, error)
	InsertSong(ctx context.Context, t *track.Track) error
	UpdateSong(ctx context.Context, t *track.Track) error
	LikedSongs(ctx context.Context) ([]*track.Track, error)
	LibrarySongs(ctx context.Context) ([]*track.Track, error)
	UploadedSongs(ctx context.Context) ([]*track.Track, error)

	Album(ctx context.Context, id string) (*album.Album, error)
	InsertAlbum(ctx context.Context, a *album.Album) error
	UpdateAlbum(ctx context.Context, a *album.Album) error
	BookmarkedAlbums(ctx context.Context) ([]*album.Album, error)
	UploadedAlbums(ctx context.Context) ([]*album.Album, error)

	Artist(ctx context.Context, id string) (*artist.Artist, error)
	InsertArtist(ctx context.Context, a *artist.Artist) error
	UpdateArtist(ctx context.Context, a *artist.Artist) error
	BookmarkedArtists(ctx context.Context) ([]*artist.Artist, error)

	Playlist(ctx context.Context, id string) (*playlist.Playlist, error)
	PlaylistByBrowseID(ctx context.Context, browseID string) (*playlist.Playlist, error)
	InsertPlaylist(ctx context.Context, p *playlist.Playlist) error
	UpdatePlaylist(ctx context.Context, p *playlist.Playlist) error
	DeletePlaylist(ctx context.Context, id string) error
	RemotePlaylists(ctx context.Context) ([]*playlist.Playlist, error)
	PlaylistSongs(ctx context.Context, playlistID string) ([]playlist.Membership, error)
	ClearPlaylistSongs(ctx context.Context, playlistID string) error
	InsertPlaylistSong(ctx context.Context, m playlist.Membership) error
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements Queries over a querier.
type queries struct {
	q querier
}

// DB represents the local library database.
type DB struct {
	queries

	mu   sync.Mutex
	db   *sql.DB
	path string
}

var _ Queries = (*DB)(nil)

// Open opens (creating if needed) the database at path and initializes the schema.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create store directory")
		}
	}

	sqlDB, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open store database")
	}

	// A single connection serializes writers and keeps transactions invisible
	// to readers until commit.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	d := &DB{
		queries: queries{q: sqlDB},
		db:      sqlDB,
		path:    path,
	}
	if err := d.initSchema(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	zlog.Info().Str("path", path).Msg("Store opened")
	return d, nil
}

// Close closes the database.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// Transaction runs fn inside a transaction. It commits when fn returns nil
// and rolls back otherwise.
func (d *DB) Transaction(ctx context.Context, fn func(q Queries) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	if err := fn(&queries{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			zlog.Warn().Err(rbErr).Msg("Rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

func (d *DB) initSchema(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to create schema")
	}

	var version string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = d.db.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES ('schema_version', ?)`, SchemaVersion)
		return errors.Wrap(err, "failed to write schema version")
	case err != nil:
		return errors.Wrap(err, "failed to read schema version")
	case version != SchemaVersion:
		return errors.Newf("unsupported schema version %q (want %q)", version, SchemaVersion)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS songs (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	artists TEXT NOT NULL DEFAULT '[]',
	album_id TEXT NOT NULL DEFAULT '',
	album_name TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	thumbnail_url TEXT NOT NULL DEFAULT '',
	liked INTEGER NOT NULL DEFAULT 0,
	liked_at INTEGER,
	in_library INTEGER,
	is_uploaded INTEGER NOT NULL DEFAULT 0,
	is_video INTEGER NOT NULL DEFAULT 0,
	library_add_token TEXT NOT NULL DEFAULT '',
	library_remove_token TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_songs_liked ON songs(liked);
CREATE INDEX IF NOT EXISTS idx_songs_in_library ON songs(in_library);
CREATE INDEX IF NOT EXISTS idx_songs_uploaded ON songs(is_uploaded);

CREATE TABLE IF NOT EXISTS albums (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	thumbnail_url TEXT NOT NULL DEFAULT '',
	year INTEGER NOT NULL DEFAULT 0,
	song_count INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	bookmarked_at INTEGER,
	is_uploaded INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS artists (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	thumbnail_url TEXT NOT NULL DEFAULT '',
	channel_id TEXT NOT NULL DEFAULT '',
	bookmarked_at INTEGER
);

CREATE TABLE IF NOT EXISTS playlists (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	browse_id TEXT,
	thumbnail_url TEXT NOT NULL DEFAULT '',
	is_editable INTEGER NOT NULL DEFAULT 0,
	bookmarked_at INTEGER,
	remote_song_count INTEGER,
	play_params TEXT NOT NULL DEFAULT '',
	shuffle_params TEXT NOT NULL DEFAULT '',
	radio_params TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_playlists_browse_id ON playlists(browse_id);

CREATE TABLE IF NOT EXISTS playlist_songs (
	playlist_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	song_id TEXT NOT NULL,
	set_video_id TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (playlist_id, position)
);
`

// nullTime converts an optional time to a nullable unix-millisecond column value.
func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

// timePtr converts a nullable unix-millisecond column value to an optional time.
func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
