package libsync

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/vivizzz007/vivi-music-sub008/internal/domain/album"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/track"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/store"
)

var (
	// ErrSongNotFound is returned when a local toggle targets an unknown song.
	ErrSongNotFound = errors.New("song not found")
	// ErrPushFailed marks a local change that could not be pushed to the remote.
	ErrPushFailed = errors.New("remote push failed")
)

// ClearSummary counts what ClearAllSyncedContent changed.
type ClearSummary struct {
	Songs     int
	Albums    int
	Artists   int
	Playlists int
	Failed    int
}

// ClearAllSyncedContent removes every remotely synced mark from the local
// store: liked, in-library and uploaded flags on songs, album bookmarks and
// upload flags, artist bookmarks, and playlists that mirror remote ones.
// Songs and albums stay in the store. A failing item is logged and skipped.
func (e *Engine) ClearAllSyncedContent(ctx context.Context) (ClearSummary, error) {
	var sum ClearSummary

	var songs []*track.Track
	for _, list := range []func(context.Context) ([]*track.Track, error){
		e.store.LikedSongs, e.store.LibrarySongs, e.store.UploadedSongs,
	} {
		got, err := list(ctx)
		if err != nil {
			return sum, errors.Wrap(err, "failed to list songs")
		}
		songs = append(songs, got...)
	}
	// a song listed twice is unchanged the second time and counted once
	changed, failed := songRows.clear(ctx, e, songs, func(t *track.Track) bool {
		liked := clearLiked(t)
		library := clearInLibrary(t)
		uploaded := clearSongUploaded(t)
		return liked || library || uploaded
	})
	sum.Songs += changed
	sum.Failed += failed

	var albums []*album.Album
	for _, list := range []func(context.Context) ([]*album.Album, error){
		e.store.BookmarkedAlbums, e.store.UploadedAlbums,
	} {
		got, err := list(ctx)
		if err != nil {
			return sum, errors.Wrap(err, "failed to list albums")
		}
		albums = append(albums, got...)
	}
	changed, failed = albumRows.clear(ctx, e, albums, func(a *album.Album) bool {
		bookmarked := unbookmarkAlbum(a)
		uploaded := clearAlbumUploaded(a)
		return bookmarked || uploaded
	})
	sum.Albums += changed
	sum.Failed += failed

	artists, err := e.store.BookmarkedArtists(ctx)
	if err != nil {
		return sum, errors.Wrap(err, "failed to list artists")
	}
	changed, failed = artistRows.clear(ctx, e, artists, unbookmarkArtist)
	sum.Artists += changed
	sum.Failed += failed

	playlists, err := e.store.RemotePlaylists(ctx)
	if err != nil {
		return sum, errors.Wrap(err, "failed to list playlists")
	}
	for _, p := range playlists {
		err := e.store.Transaction(ctx, func(q store.Queries) error {
			return q.DeletePlaylist(ctx, p.ID)
		})
		if err != nil {
			e.log.Warn().Err(err).Str("playlist_id", p.ID).Msg("Failed to delete playlist")
			sum.Failed++
			continue
		}
		sum.Playlists++
	}

	e.log.Info().
		Int("songs", sum.Songs).
		Int("albums", sum.Albums).
		Int("artists", sum.Artists).
		Int("playlists", sum.Playlists).
		Int("failed", sum.Failed).
		Msg("Cleared synced content")
	return sum, nil
}

// LikeSong sets the liked flag of a local song and pushes the change to the
// remote account. The local change is kept when the push fails.
func (e *Engine) LikeSong(ctx context.Context, songID string, liked bool) error {
	err := e.store.Transaction(ctx, func(q store.Queries) error {
		s, err := q.Song(ctx, songID)
		if err != nil {
			return err
		}
		if s == nil {
			return errors.Wrap(ErrSongNotFound, songID)
		}
		if s.Liked == liked {
			return nil
		}
		if liked {
			s.Like(e.now())
		} else {
			s.Unlike()
		}
		return q.UpdateSong(ctx, s)
	})
	if err != nil {
		return err
	}

	if err := e.remote.LikeVideo(ctx, songID, liked); err != nil {
		return errors.Mark(errors.Wrap(err, "failed to push like"), ErrPushFailed)
	}
	return nil
}
