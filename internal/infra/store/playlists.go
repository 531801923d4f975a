package store

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"github.com/vivizzz007/vivi-music-sub008/internal/domain/playlist"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/track"
)

const playlistColumns = `id, name, browse_id, thumbnail_url, is_editable, bookmarked_at, remote_song_count,
	play_params, shuffle_params, radio_params`

func scanPlaylist(r rowScanner) (*playlist.Playlist, error) {
	var (
		p                     playlist.Playlist
		browseID              sql.NullString
		bookmarked, songCount sql.NullInt64
		play, shuffle, radio  string
	)
	if err := r.Scan(&p.ID, &p.Name, &browseID, &p.ThumbnailURL, &p.IsEditable, &bookmarked, &songCount,
		&play, &shuffle, &radio); err != nil {
		return nil, err
	}
	p.BrowseID = browseID.String
	p.BookmarkedAt = timePtr(bookmarked)
	p.RemoteSongCount = intPtr(songCount)
	p.PlayParams = track.Token(play)
	p.ShuffleParams = track.Token(shuffle)
	p.RadioParams = track.Token(radio)
	return &p, nil
}

func playlistArgs(p *playlist.Playlist) []any {
	return []any{
		p.Name, nullString(p.BrowseID), p.ThumbnailURL, p.IsEditable, nullTime(p.BookmarkedAt), nullInt(p.RemoteSongCount),
		string(p.PlayParams), string(p.ShuffleParams), string(p.RadioParams),
	}
}

// Playlist returns the playlist with the given local ID.
func (q *queries) Playlist(ctx context.Context, id string) (*playlist.Playlist, error) {
	p, err := scanPlaylist(q.q.QueryRowContext(ctx, `SELECT `+playlistColumns+` FROM playlists WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, errors.Wrapf(err, "failed to get playlist %s", id)
}

// PlaylistByBrowseID returns the playlist mirroring the given remote playlist.
func (q *queries) PlaylistByBrowseID(ctx context.Context, browseID string) (*playlist.Playlist, error) {
	p, err := scanPlaylist(q.q.QueryRowContext(ctx, `SELECT `+playlistColumns+` FROM playlists WHERE browse_id = ?`, browseID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, errors.Wrapf(err, "failed to get playlist by browse id %s", browseID)
}

// InsertPlaylist inserts a playlist. It fails if the ID or browse ID already exists.
func (q *queries) InsertPlaylist(ctx context.Context, p *playlist.Playlist) error {
	_, err := q.q.ExecContext(ctx, `INSERT INTO playlists (`+playlistColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		append([]any{p.ID}, playlistArgs(p)...)...)
	return errors.Wrapf(err, "failed to insert playlist %s", p.ID)
}

// UpdatePlaylist overwrites every column of an existing playlist.
func (q *queries) UpdatePlaylist(ctx context.Context, p *playlist.Playlist) error {
	_, err := q.q.ExecContext(ctx, `UPDATE playlists SET name = ?, browse_id = ?, thumbnail_url = ?, is_editable = ?,
		bookmarked_at = ?, remote_song_count = ?, play_params = ?, shuffle_params = ?, radio_params = ?
		WHERE id = ?`, append(playlistArgs(p), p.ID)...)
	return errors.Wrapf(err, "failed to update playlist %s", p.ID)
}

// DeletePlaylist deletes a playlist and its memberships.
func (q *queries) DeletePlaylist(ctx context.Context, id string) error {
	if err := q.ClearPlaylistSongs(ctx, id); err != nil {
		return err
	}
	_, err := q.q.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id)
	return errors.Wrapf(err, "failed to delete playlist %s", id)
}

// RemotePlaylists returns playlists that mirror a remote playlist.
func (q *queries) RemotePlaylists(ctx context.Context) ([]*playlist.Playlist, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+playlistColumns+` FROM playlists
		WHERE browse_id IS NOT NULL ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query playlists")
	}
	defer rows.Close()

	var out []*playlist.Playlist
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan playlist")
		}
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate playlists")
}

// PlaylistSongs returns the memberships of a playlist ordered by position.
func (q *queries) PlaylistSongs(ctx context.Context, playlistID string) ([]playlist.Membership, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT playlist_id, song_id, position, set_video_id FROM playlist_songs
		WHERE playlist_id = ? ORDER BY position`, playlistID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query playlist %s songs", playlistID)
	}
	defer rows.Close()

	var out []playlist.Membership
	for rows.Next() {
		var (
			m   playlist.Membership
			svi string
		)
		if err := rows.Scan(&m.PlaylistID, &m.SongID, &m.Position, &svi); err != nil {
			return nil, errors.Wrap(err, "failed to scan playlist song")
		}
		m.SetVideoID = track.Token(svi)
		out = append(out, m)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate playlist songs")
}

// ClearPlaylistSongs removes every membership of a playlist.
func (q *queries) ClearPlaylistSongs(ctx context.Context, playlistID string) error {
	_, err := q.q.ExecContext(ctx, `DELETE FROM playlist_songs WHERE playlist_id = ?`, playlistID)
	return errors.Wrapf(err, "failed to clear playlist %s songs", playlistID)
}

// InsertPlaylistSong inserts one membership. The position must be free.
func (q *queries) InsertPlaylistSong(ctx context.Context, m playlist.Membership) error {
	_, err := q.q.ExecContext(ctx, `INSERT INTO playlist_songs (playlist_id, position, song_id, set_video_id)
		VALUES (?, ?, ?, ?)`, m.PlaylistID, m.Position, m.SongID, string(m.SetVideoID))
	return errors.Wrapf(err, "failed to insert song %s into playlist %s", m.SongID, m.PlaylistID)
}

var (
	// ErrPlaylistNotFound is returned when an edit targets an unknown playlist.
	ErrPlaylistNotFound = errors.New("playlist not found")
	// ErrRemotePlaylist is returned when an edit targets a playlist mirrored
	// from the remote account. Its members are owned by sync.
	ErrRemotePlaylist = errors.New("playlist is mirrored from the remote account")
	// ErrInvalidPosition is returned for a position outside the playlist.
	ErrInvalidPosition = errors.New("invalid playlist position")
)

// MovePlaylistSong moves the song at position from to position to of a
// local playlist.
func (d *DB) MovePlaylistSong(ctx context.Context, playlistID string, from, to int) error {
	return d.editPlaylistSongs(ctx, playlistID, func(members []playlist.Membership) ([]playlist.Membership, error) {
		if !playlist.Move(members, from, to) {
			return nil, errors.Wrapf(ErrInvalidPosition, "move %d -> %d in %d songs", from, to, len(members))
		}
		return members, nil
	})
}

// RemovePlaylistSong removes the song at position of a local playlist and
// closes the gap.
func (d *DB) RemovePlaylistSong(ctx context.Context, playlistID string, position int) error {
	return d.editPlaylistSongs(ctx, playlistID, func(members []playlist.Membership) ([]playlist.Membership, error) {
		if position < 0 || position >= len(members) {
			return nil, errors.Wrapf(ErrInvalidPosition, "position %d in %d songs", position, len(members))
		}
		return append(members[:position], members[position+1:]...), nil
	})
}

func (d *DB) editPlaylistSongs(ctx context.Context, playlistID string, edit func([]playlist.Membership) ([]playlist.Membership, error)) error {
	return d.Transaction(ctx, func(q Queries) error {
		p, err := q.Playlist(ctx, playlistID)
		if err != nil {
			return err
		}
		if p == nil {
			return errors.Wrap(ErrPlaylistNotFound, playlistID)
		}
		if p.IsRemote() {
			return errors.Wrap(ErrRemotePlaylist, playlistID)
		}
		members, err := q.PlaylistSongs(ctx, playlistID)
		if err != nil {
			return err
		}
		members, err = edit(members)
		if err != nil {
			return err
		}
		return replacePlaylistSongs(ctx, q, playlistID, members)
	})
}

func replacePlaylistSongs(ctx context.Context, q Queries, playlistID string, members []playlist.Membership) error {
	if err := q.ClearPlaylistSongs(ctx, playlistID); err != nil {
		return err
	}
	for i, m := range members {
		m.PlaylistID = playlistID
		m.Position = i
		if err := q.InsertPlaylistSong(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
