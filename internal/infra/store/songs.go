package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/vivizzz007/vivi-music-sub008/internal/domain/track"
)

const songColumns = `id, title, artists, album_id, album_name, duration_ms, thumbnail_url,
	liked, liked_at, in_library, is_uploaded, is_video, library_add_token, library_remove_token`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSong(r rowScanner) (*track.Track, error) {
	var (
		t                  track.Track
		artists            string
		durationMs         int64
		likedAt, inLibrary sql.NullInt64
		addToken, rmToken  string
	)
	if err := r.Scan(&t.ID, &t.Title, &artists, &t.AlbumID, &t.AlbumName, &durationMs, &t.ThumbnailURL,
		&t.Liked, &likedAt, &inLibrary, &t.IsUploaded, &t.IsVideo, &addToken, &rmToken); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(artists), &t.Artists); err != nil {
		return nil, errors.Wrapf(err, "song %s: bad artists column", t.ID)
	}
	t.Duration = time.Duration(durationMs) * time.Millisecond
	t.LikedAt = timePtr(likedAt)
	t.InLibrary = timePtr(inLibrary)
	t.LibraryAddToken = track.Token(addToken)
	t.LibraryRemoveToken = track.Token(rmToken)
	return &t, nil
}

func songArgs(t *track.Track) ([]any, error) {
	artists := t.Artists
	if artists == nil {
		artists = []track.ArtistRef{}
	}
	data, err := json.Marshal(artists)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode artists")
	}
	return []any{
		t.Title, string(data), t.AlbumID, t.AlbumName, t.Duration.Milliseconds(), t.ThumbnailURL,
		t.Liked, nullTime(t.LikedAt), nullTime(t.InLibrary), t.IsUploaded, t.IsVideo,
		string(t.LibraryAddToken), string(t.LibraryRemoveToken),
	}, nil
}

// Song returns the song with the given ID.
func (q *queries) Song(ctx context.Context, id string) (*track.Track, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+songColumns+` FROM songs WHERE id = ?`, id)
	t, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get song %s", id)
	}
	return t, nil
}

// InsertSong inserts a song. It fails if the ID already exists.
func (q *queries) InsertSong(ctx context.Context, t *track.Track) error {
	args, err := songArgs(t)
	if err != nil {
		return err
	}
	_, err = q.q.ExecContext(ctx, `INSERT INTO songs (`+songColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, append([]any{t.ID}, args...)...)
	return errors.Wrapf(err, "failed to insert song %s", t.ID)
}

// UpdateSong overwrites every column of an existing song.
func (q *queries) UpdateSong(ctx context.Context, t *track.Track) error {
	args, err := songArgs(t)
	if err != nil {
		return err
	}
	_, err = q.q.ExecContext(ctx, `UPDATE songs SET
		title = ?, artists = ?, album_id = ?, album_name = ?, duration_ms = ?, thumbnail_url = ?,
		liked = ?, liked_at = ?, in_library = ?, is_uploaded = ?, is_video = ?,
		library_add_token = ?, library_remove_token = ?
		WHERE id = ?`, append(args, t.ID)...)
	return errors.Wrapf(err, "failed to update song %s", t.ID)
}

// LikedSongs returns liked songs, most recently liked first.
func (q *queries) LikedSongs(ctx context.Context) ([]*track.Track, error) {
	return q.songs(ctx, `WHERE liked = 1 ORDER BY liked_at DESC`)
}

// LibrarySongs returns songs in the library, most recently added first.
func (q *queries) LibrarySongs(ctx context.Context) ([]*track.Track, error) {
	return q.songs(ctx, `WHERE in_library IS NOT NULL ORDER BY in_library DESC`)
}

// UploadedSongs returns songs uploaded by the user, by title.
func (q *queries) UploadedSongs(ctx context.Context) ([]*track.Track, error) {
	return q.songs(ctx, `WHERE is_uploaded = 1 ORDER BY title, id`)
}

func (q *queries) songs(ctx context.Context, where string) ([]*track.Track, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+songColumns+` FROM songs `+where)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query songs")
	}
	defer rows.Close()

	var out []*track.Track
	for rows.Next() {
		t, err := scanSong(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan song")
		}
		out = append(out, t)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate songs")
}
