package libsync

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vivizzz007/vivi-music-sub008/internal/domain/playlist"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/innertube"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/store"
)

// playlistSources are merged in this order; the first occurrence of a browse ID wins.
var playlistSources = []string{
	innertube.BrowseLikedPlaylists,
	innertube.BrowseCreatedPlaylists,
	innertube.BrowseSubscribedPlaylists,
}

func (e *Engine) syncSavedPlaylists(ctx context.Context, fast bool) (result, error) {
	var res result

	pages := make([]*innertube.LibraryPage, len(playlistSources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range playlistSources {
		g.Go(func() error {
			page, err := e.fetchLibrary(gctx, src, 0, fast)
			if err != nil {
				return errors.Wrapf(err, "failed to fetch %s", src)
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	complete := !fast
	seen := make(map[string]struct{})
	var remote []*playlist.Playlist
	for _, page := range pages {
		if page.Continuation != "" {
			complete = false
		}
		for _, p := range innertube.Playlists(page.Items) {
			if p.BrowseID == "" || playlist.IsSentinel(p.BrowseID) {
				continue
			}
			if _, dup := seen[p.BrowseID]; dup {
				continue
			}
			seen[p.BrowseID] = struct{}{}
			remote = append(remote, p)
		}
	}

	if complete {
		local, err := e.store.RemotePlaylists(ctx)
		if err != nil {
			return res, errors.Wrap(err, "failed to list local playlists")
		}
		var missing []*playlist.Playlist
		for _, p := range local {
			if _, ok := seen[p.BrowseID]; !ok {
				missing = append(missing, p)
			}
		}
		res.removed, _ = playlistRows.clear(ctx, e, missing, unbookmarkPlaylist)
	}

	now := e.now()
	for i, rp := range remote {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		id, changed, err := e.upsertPlaylist(ctx, rp, pullTime(now, i))
		if err != nil {
			e.log.Warn().Err(err).Str("browse_id", rp.BrowseID).Msg("Failed to apply remote playlist")
			continue
		}
		if changed {
			res.pulled++
		}
		if err := e.SyncPlaylist(ctx, rp.BrowseID, id, fast); err != nil {
			e.log.Warn().Err(err).Str("browse_id", rp.BrowseID).Msg("Failed to sync playlist songs")
		}
	}
	return res, nil
}

// upsertPlaylist creates the local row for a remote playlist or refreshes the
// existing one. It returns the local playlist ID.
func (e *Engine) upsertPlaylist(ctx context.Context, remote *playlist.Playlist, ts time.Time) (string, bool, error) {
	var id string
	var changed bool
	err := e.store.Transaction(ctx, func(q store.Queries) error {
		local, err := q.PlaylistByBrowseID(ctx, remote.BrowseID)
		if err != nil {
			return err
		}
		if local == nil {
			fresh := *remote
			fresh.ID = uuid.NewString()
			fresh.BookmarkedAt = &ts
			id, changed = fresh.ID, true
			return q.InsertPlaylist(ctx, &fresh)
		}

		id = local.ID
		if local.BookmarkedAt == nil {
			local.BookmarkedAt = &ts
			changed = true
		}
		if !samePlaylistDisplay(local, remote) {
			local.Name = remote.Name
			local.ThumbnailURL = remote.ThumbnailURL
			local.IsEditable = remote.IsEditable
			local.RemoteSongCount = remote.RemoteSongCount
			local.PlayParams = remote.PlayParams
			local.ShuffleParams = remote.ShuffleParams
			local.RadioParams = remote.RadioParams
			changed = true
		}
		if !changed {
			return nil
		}
		return q.UpdatePlaylist(ctx, local)
	})
	return id, changed, err
}

func samePlaylistDisplay(a, b *playlist.Playlist) bool {
	if a.Name != b.Name || a.ThumbnailURL != b.ThumbnailURL || a.IsEditable != b.IsEditable ||
		a.PlayParams != b.PlayParams || a.ShuffleParams != b.ShuffleParams || a.RadioParams != b.RadioParams {
		return false
	}
	if (a.RemoteSongCount == nil) != (b.RemoteSongCount == nil) {
		return false
	}
	return a.RemoteSongCount == nil || *a.RemoteSongCount == *b.RemoteSongCount
}

// SyncPlaylist mirrors the songs of remote playlist browseID into local
// playlist playlistID. Members are only replaced when the whole remote list
// was fetched and its order differs from the local one; the replacement is
// atomic.
func (e *Engine) SyncPlaylist(ctx context.Context, browseID, playlistID string, fast bool) error {
	page, err := e.fetchPlaylist(ctx, browseID, fast)
	if err != nil {
		return errors.Wrapf(err, "failed to fetch playlist %s", browseID)
	}
	if page.Continuation != "" {
		e.log.Debug().Str("browse_id", browseID).Int("fetched", len(page.Songs)).Msg("Playlist only partially fetched, keeping local songs")
		return nil
	}

	current, err := e.store.PlaylistSongs(ctx, playlistID)
	if err != nil {
		return errors.Wrap(err, "failed to list local playlist songs")
	}
	if playlist.SameOrder(current, playlist.TrackIDs(page.Songs)) {
		return nil
	}

	return e.store.Transaction(ctx, func(q store.Queries) error {
		if err := q.ClearPlaylistSongs(ctx, playlistID); err != nil {
			return err
		}
		for _, m := range playlist.FromTracks(playlistID, page.Songs) {
			existing, err := q.Song(ctx, m.SongID)
			if err != nil {
				return err
			}
			if existing == nil {
				s := *page.Songs[m.Position]
				s.SetVideoID = ""
				if err := q.InsertSong(ctx, &s); err != nil {
					return err
				}
			}
			if err := q.InsertPlaylistSong(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
}
