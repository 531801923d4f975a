package libsync

import (
	"context"

	"github.com/vivizzz007/vivi-music-sub008/internal/domain/album"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/artist"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/playlist"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/track"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/store"
)

// table binds the row accessors of one kind of local entity.
type table[T any] struct {
	key string // log field naming the row ID
	id  func(*T) string
	get func(store.Queries, context.Context, string) (*T, error)
	put func(store.Queries, context.Context, *T) error
}

var (
	songRows = table[track.Track]{
		key: "song_id", id: songID,
		get: store.Queries.Song, put: store.Queries.UpdateSong,
	}
	albumRows = table[album.Album]{
		key: "album_id", id: func(a *album.Album) string { return a.ID },
		get: store.Queries.Album, put: store.Queries.UpdateAlbum,
	}
	artistRows = table[artist.Artist]{
		key: "artist_id", id: func(a *artist.Artist) string { return a.ID },
		get: store.Queries.Artist, put: store.Queries.UpdateArtist,
	}
	playlistRows = table[playlist.Playlist]{
		key: "playlist_id", id: func(p *playlist.Playlist) string { return p.ID },
		get: store.Queries.Playlist, put: store.Queries.UpdatePlaylist,
	}
)

// clear re-reads each listed row in its own transaction and writes it back
// when apply reports a change, so only the fields apply touches differ from
// the stored row. Rows deleted since listing are skipped. Failures are logged
// and counted.
func (tb table[T]) clear(ctx context.Context, e *Engine, rows []*T, apply func(*T) bool) (changed, failed int) {
	for _, r := range rows {
		id := tb.id(r)
		var did bool
		err := e.store.Transaction(ctx, func(q store.Queries) error {
			cur, err := tb.get(q, ctx, id)
			if err != nil || cur == nil {
				return err
			}
			if did = apply(cur); !did {
				return nil
			}
			return tb.put(q, ctx, cur)
		})
		if err != nil {
			e.log.Warn().Err(err).Str(tb.key, id).Msg("Failed to clear local row")
			failed++
			continue
		}
		if did {
			changed++
		}
	}
	return changed, failed
}

// Each clear function resets one category column and reports whether it was set.

func clearLiked(t *track.Track) bool {
	if !t.Liked && t.LikedAt == nil {
		return false
	}
	t.Unlike()
	return true
}

func clearInLibrary(t *track.Track) bool {
	if t.InLibrary == nil {
		return false
	}
	t.InLibrary = nil
	return true
}

func clearSongUploaded(t *track.Track) bool {
	if !t.IsUploaded {
		return false
	}
	t.IsUploaded = false
	return true
}

func unbookmarkAlbum(a *album.Album) bool {
	if a.BookmarkedAt == nil {
		return false
	}
	a.BookmarkedAt = nil
	return true
}

func clearAlbumUploaded(a *album.Album) bool {
	if !a.IsUploaded {
		return false
	}
	a.IsUploaded = false
	return true
}

func unbookmarkArtist(a *artist.Artist) bool {
	if a.BookmarkedAt == nil {
		return false
	}
	a.BookmarkedAt = nil
	return true
}

func unbookmarkPlaylist(p *playlist.Playlist) bool {
	if p.BookmarkedAt == nil {
		return false
	}
	p.BookmarkedAt = nil
	return true
}
