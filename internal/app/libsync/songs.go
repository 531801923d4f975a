package libsync

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/vivizzz007/vivi-music-sub008/internal/domain/playlist"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/track"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/innertube"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/store"
)

func songID(t *track.Track) string { return t.ID }

// markFunc sets the category flag on a local song at ts and reports whether
// anything changed. It must leave an already set flag and its timestamp alone.
type markFunc func(t *track.Track, ts time.Time) bool

func markLiked(t *track.Track, ts time.Time) bool {
	if t.Liked {
		return false
	}
	t.Like(ts)
	return true
}

func markInLibrary(t *track.Track, ts time.Time) bool {
	if t.InLibrary != nil {
		return false
	}
	t.InLibrary = &ts
	return true
}

// markUploaded only sets is_uploaded. in_library belongs to library songs.
func markUploaded(t *track.Track, _ time.Time) bool {
	if t.IsUploaded {
		return false
	}
	t.IsUploaded = true
	return true
}

// upsertSong inserts the remote song with its flag set, or sets the flag on
// the existing row and refreshes its display fields when they changed.
func upsertSong(ctx context.Context, q store.Queries, remote *track.Track, ts time.Time, mark markFunc) (bool, error) {
	local, err := q.Song(ctx, remote.ID)
	if err != nil {
		return false, err
	}
	if local == nil {
		fresh := *remote
		fresh.SetVideoID = ""
		mark(&fresh, ts)
		return true, q.InsertSong(ctx, &fresh)
	}

	changed := mark(local, ts)
	if !local.SameDisplay(remote) || local.TokensDiffer(remote) {
		local.MergeDisplay(remote)
		changed = true
	}
	if !changed {
		return false, nil
	}
	return true, q.UpdateSong(ctx, local)
}

// pullSongs applies remote songs in order, isolating per-song failures.
func (e *Engine) pullSongs(ctx context.Context, remote []*track.Track, mark markFunc) int {
	now := e.now()
	pulled := 0
	for i, s := range remote {
		if err := ctx.Err(); err != nil {
			return pulled
		}
		ts := pullTime(now, i)
		var changed bool
		err := e.store.Transaction(ctx, func(q store.Queries) error {
			var err error
			changed, err = upsertSong(ctx, q, s, ts, mark)
			return err
		})
		if err != nil {
			e.log.Warn().Err(err).Str("song_id", s.ID).Msg("Failed to apply remote song")
			continue
		}
		if changed {
			pulled++
		}
	}
	return pulled
}

func missingSongs(local, remote []*track.Track) []*track.Track {
	ids := idSet(remote, songID)
	var out []*track.Track
	for _, s := range local {
		if _, ok := ids[s.ID]; !ok {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) syncLikedSongs(ctx context.Context, fast bool) (result, error) {
	var res result
	page, err := e.fetchPlaylist(ctx, playlist.LikedSongsID, fast)
	if err != nil {
		return res, errors.Wrap(err, "failed to fetch liked songs")
	}

	if reconcilable(fast, page.Continuation) {
		local, err := e.store.LikedSongs(ctx)
		if err != nil {
			return res, errors.Wrap(err, "failed to list local liked songs")
		}
		res.removed, _ = songRows.clear(ctx, e, missingSongs(local, page.Songs), clearLiked)
	}

	res.pulled = e.pullSongs(ctx, page.Songs, markLiked)
	return res, nil
}

func (e *Engine) syncLibrarySongs(ctx context.Context, fast bool) (result, error) {
	var res result
	page, err := e.fetchLibrary(ctx, innertube.BrowseLikedVideos, 0, fast)
	if err != nil {
		return res, errors.Wrap(err, "failed to fetch library songs")
	}
	remote := innertube.Songs(page.Items)

	if reconcilable(fast, page.Continuation) {
		local, err := e.store.LibrarySongs(ctx)
		if err != nil {
			return res, errors.Wrap(err, "failed to list local library songs")
		}

		// Songs still carrying both feedback tokens were added locally and are
		// pushed back to the remote library instead of being dropped.
		var push []string
		var drop []*track.Track
		for _, s := range missingSongs(local, remote) {
			if s.HasLibraryTokens() {
				push = append(push, string(s.LibraryAddToken))
			} else {
				drop = append(drop, s)
			}
		}
		res.removed, _ = songRows.clear(ctx, e, drop, func(t *track.Track) bool {
			return !t.HasLibraryTokens() && clearInLibrary(t)
		})
		res.pushed = e.pushFeedback(ctx, push)
	}

	res.pulled = e.pullSongs(ctx, remote, markInLibrary)
	return res, nil
}

func (e *Engine) syncUploadedSongs(ctx context.Context, fast bool) (result, error) {
	var res result
	page, err := e.fetchLibrary(ctx, innertube.BrowseUploadedTracks, 1, fast)
	if err != nil {
		return res, errors.Wrap(err, "failed to fetch uploaded songs")
	}
	remote := innertube.Songs(page.Items)

	if reconcilable(fast, page.Continuation) {
		local, err := e.store.UploadedSongs(ctx)
		if err != nil {
			return res, errors.Wrap(err, "failed to list local uploaded songs")
		}
		res.removed, _ = songRows.clear(ctx, e, missingSongs(local, remote), clearSongUploaded)
	}

	res.pulled = e.pullSongs(ctx, remote, markUploaded)
	return res, nil
}

// pushFeedback sends tokens in batches the remote accepts. A failed batch is
// logged and the rest still go out. It returns the number of tokens accepted.
func (e *Engine) pushFeedback(ctx context.Context, tokens []string) int {
	pushed := 0
	for start := 0; start < len(tokens); start += innertube.MaxFeedbackTokens {
		end := min(start+innertube.MaxFeedbackTokens, len(tokens))
		batch := tokens[start:end]
		if err := e.remote.Feedback(ctx, batch); err != nil {
			e.log.Warn().Err(err).Int("tokens", len(batch)).Msg("Failed to push library feedback")
			continue
		}
		pushed += len(batch)
	}
	return pushed
}
