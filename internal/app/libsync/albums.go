package libsync

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/vivizzz007/vivi-music-sub008/internal/domain/album"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/artist"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/innertube"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/store"
)

func (e *Engine) syncLikedAlbums(ctx context.Context, fast bool) (result, error) {
	return e.syncAlbums(ctx, fast, innertube.BrowseLikedAlbums, 0, false)
}

func (e *Engine) syncUploadedAlbums(ctx context.Context, fast bool) (result, error) {
	return e.syncAlbums(ctx, fast, innertube.BrowseUploadedReleases, 1, true)
}

func (e *Engine) syncAlbums(ctx context.Context, fast bool, browseID string, tabIndex int, uploaded bool) (result, error) {
	var res result
	page, err := e.fetchLibrary(ctx, browseID, tabIndex, fast)
	if err != nil {
		return res, errors.Wrapf(err, "failed to fetch %s", browseID)
	}
	remote := innertube.Albums(page.Items)

	if reconcilable(fast, page.Continuation) {
		var local []*album.Album
		if uploaded {
			local, err = e.store.UploadedAlbums(ctx)
		} else {
			local, err = e.store.BookmarkedAlbums(ctx)
		}
		if err != nil {
			return res, errors.Wrap(err, "failed to list local albums")
		}

		ids := idSet(remote, func(a *album.Album) string { return a.ID })
		var missing []*album.Album
		for _, a := range local {
			if _, ok := ids[a.ID]; !ok {
				missing = append(missing, a)
			}
		}
		unmark := unbookmarkAlbum
		if uploaded {
			unmark = clearAlbumUploaded
		}
		res.removed, _ = albumRows.clear(ctx, e, missing, unmark)
	}

	now := e.now()
	for i, a := range remote {
		ts := pullTime(now, i)
		var changed bool
		err := e.store.Transaction(ctx, func(q store.Queries) error {
			var err error
			changed, err = upsertAlbum(ctx, q, a, ts, uploaded)
			return err
		})
		if err != nil {
			e.log.Warn().Err(err).Str("album_id", a.ID).Msg("Failed to apply remote album")
			continue
		}
		if changed {
			res.pulled++
		}
	}
	return res, nil
}

// upsertAlbum inserts a stub for an unseen album or marks the existing row.
// Liked albums are marked by bookmarked_at and uploaded ones by is_uploaded.
// Song count and duration of existing rows are never touched.
func upsertAlbum(ctx context.Context, q store.Queries, remote *album.Album, ts time.Time, uploaded bool) (bool, error) {
	local, err := q.Album(ctx, remote.ID)
	if err != nil {
		return false, err
	}
	if local == nil {
		stub := album.Stub(remote.ID, remote.Title, remote.ThumbnailURL, remote.Year)
		if uploaded {
			stub.IsUploaded = true
		} else {
			stub.BookmarkedAt = &ts
		}
		return true, q.InsertAlbum(ctx, stub)
	}

	changed := false
	switch {
	case uploaded && !local.IsUploaded:
		local.IsUploaded = true
		changed = true
	case !uploaded && local.BookmarkedAt == nil:
		local.BookmarkedAt = &ts
		changed = true
	}
	if local.Title != remote.Title || local.ThumbnailURL != remote.ThumbnailURL ||
		(remote.Year != 0 && local.Year != remote.Year) {
		local.Title = remote.Title
		local.ThumbnailURL = remote.ThumbnailURL
		if remote.Year != 0 {
			local.Year = remote.Year
		}
		changed = true
	}
	if !changed {
		return false, nil
	}
	return true, q.UpdateAlbum(ctx, local)
}

func (e *Engine) syncArtists(ctx context.Context, fast bool) (result, error) {
	var res result
	page, err := e.fetchLibrary(ctx, innertube.BrowseLibraryArtists, 0, fast)
	if err != nil {
		return res, errors.Wrap(err, "failed to fetch followed artists")
	}
	remote := innertube.Artists(page.Items)

	if reconcilable(fast, page.Continuation) {
		local, err := e.store.BookmarkedArtists(ctx)
		if err != nil {
			return res, errors.Wrap(err, "failed to list local artists")
		}
		ids := idSet(remote, func(a *artist.Artist) string { return a.ID })
		var missing []*artist.Artist
		for _, a := range local {
			if _, ok := ids[a.ID]; !ok {
				missing = append(missing, a)
			}
		}
		res.removed, _ = artistRows.clear(ctx, e, missing, unbookmarkArtist)
	}

	now := e.now()
	for i, a := range remote {
		ts := pullTime(now, i)
		var changed bool
		err := e.store.Transaction(ctx, func(q store.Queries) error {
			local, err := q.Artist(ctx, a.ID)
			if err != nil {
				return err
			}
			if local == nil {
				fresh := *a
				fresh.BookmarkedAt = &ts
				changed = true
				return q.InsertArtist(ctx, &fresh)
			}
			if local.BookmarkedAt == nil {
				local.BookmarkedAt = &ts
				changed = true
			}
			if local.Name != a.Name || local.ThumbnailURL != a.ThumbnailURL {
				local.Name = a.Name
				local.ThumbnailURL = a.ThumbnailURL
				changed = true
			}
			if a.ChannelID != "" && local.ChannelID != a.ChannelID {
				local.ChannelID = a.ChannelID
				changed = true
			}
			if !changed {
				return nil
			}
			return q.UpdateArtist(ctx, local)
		})
		if err != nil {
			e.log.Warn().Err(err).Str("artist_id", a.ID).Msg("Failed to apply remote artist")
			continue
		}
		if changed {
			res.pulled++
		}
	}
	return res, nil
}
