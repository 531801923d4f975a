package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/vivizzz007/vivi-music-sub008/internal/domain/album"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/artist"
)

const albumColumns = `id, title, thumbnail_url, year, song_count, duration_ms, bookmarked_at, is_uploaded`

func scanAlbum(r rowScanner) (*album.Album, error) {
	var (
		a          album.Album
		durationMs int64
		bookmarked sql.NullInt64
	)
	if err := r.Scan(&a.ID, &a.Title, &a.ThumbnailURL, &a.Year, &a.SongCount, &durationMs, &bookmarked, &a.IsUploaded); err != nil {
		return nil, err
	}
	a.Duration = time.Duration(durationMs) * time.Millisecond
	a.BookmarkedAt = timePtr(bookmarked)
	return &a, nil
}

// Album returns the album with the given ID.
func (q *queries) Album(ctx context.Context, id string) (*album.Album, error) {
	a, err := scanAlbum(q.q.QueryRowContext(ctx, `SELECT `+albumColumns+` FROM albums WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, errors.Wrapf(err, "failed to get album %s", id)
}

// InsertAlbum inserts an album. It fails if the ID already exists.
func (q *queries) InsertAlbum(ctx context.Context, a *album.Album) error {
	_, err := q.q.ExecContext(ctx, `INSERT INTO albums (`+albumColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.ThumbnailURL, a.Year, a.SongCount, a.Duration.Milliseconds(), nullTime(a.BookmarkedAt), a.IsUploaded)
	return errors.Wrapf(err, "failed to insert album %s", a.ID)
}

// UpdateAlbum overwrites every column of an existing album.
func (q *queries) UpdateAlbum(ctx context.Context, a *album.Album) error {
	_, err := q.q.ExecContext(ctx, `UPDATE albums SET title = ?, thumbnail_url = ?, year = ?, song_count = ?,
		duration_ms = ?, bookmarked_at = ?, is_uploaded = ? WHERE id = ?`,
		a.Title, a.ThumbnailURL, a.Year, a.SongCount, a.Duration.Milliseconds(), nullTime(a.BookmarkedAt), a.IsUploaded, a.ID)
	return errors.Wrapf(err, "failed to update album %s", a.ID)
}

// BookmarkedAlbums returns saved albums, most recently saved first.
func (q *queries) BookmarkedAlbums(ctx context.Context) ([]*album.Album, error) {
	return q.albums(ctx, `WHERE bookmarked_at IS NOT NULL ORDER BY bookmarked_at DESC`)
}

// UploadedAlbums returns albums uploaded by the user, by title.
func (q *queries) UploadedAlbums(ctx context.Context) ([]*album.Album, error) {
	return q.albums(ctx, `WHERE is_uploaded = 1 ORDER BY title, id`)
}

func (q *queries) albums(ctx context.Context, where string) ([]*album.Album, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+albumColumns+` FROM albums `+where)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query albums")
	}
	defer rows.Close()

	var out []*album.Album
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan album")
		}
		out = append(out, a)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate albums")
}

const artistColumns = `id, name, thumbnail_url, channel_id, bookmarked_at`

func scanArtist(r rowScanner) (*artist.Artist, error) {
	var (
		a          artist.Artist
		bookmarked sql.NullInt64
	)
	if err := r.Scan(&a.ID, &a.Name, &a.ThumbnailURL, &a.ChannelID, &bookmarked); err != nil {
		return nil, err
	}
	a.BookmarkedAt = timePtr(bookmarked)
	return &a, nil
}

// Artist returns the artist with the given ID.
func (q *queries) Artist(ctx context.Context, id string) (*artist.Artist, error) {
	a, err := scanArtist(q.q.QueryRowContext(ctx, `SELECT `+artistColumns+` FROM artists WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, errors.Wrapf(err, "failed to get artist %s", id)
}

// InsertArtist inserts an artist. It fails if the ID already exists.
func (q *queries) InsertArtist(ctx context.Context, a *artist.Artist) error {
	_, err := q.q.ExecContext(ctx, `INSERT INTO artists (`+artistColumns+`) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.ThumbnailURL, a.ChannelID, nullTime(a.BookmarkedAt))
	return errors.Wrapf(err, "failed to insert artist %s", a.ID)
}

// UpdateArtist overwrites every column of an existing artist.
func (q *queries) UpdateArtist(ctx context.Context, a *artist.Artist) error {
	_, err := q.q.ExecContext(ctx, `UPDATE artists SET name = ?, thumbnail_url = ?, channel_id = ?, bookmarked_at = ? WHERE id = ?`,
		a.Name, a.ThumbnailURL, a.ChannelID, nullTime(a.BookmarkedAt), a.ID)
	return errors.Wrapf(err, "failed to update artist %s", a.ID)
}

// BookmarkedArtists returns followed artists, most recently followed first.
func (q *queries) BookmarkedArtists(ctx context.Context) ([]*artist.Artist, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+artistColumns+` FROM artists
		WHERE bookmarked_at IS NOT NULL ORDER BY bookmarked_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query artists")
	}
	defer rows.Close()

	var out []*artist.Artist
	for rows.Next() {
		a, err := scanArtist(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan artist")
		}
		out = append(out, a)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate artists")
}
