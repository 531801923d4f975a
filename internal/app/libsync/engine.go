// Package libsync reconciles the local library with the remote account library.
package libsync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/vivizzz007/vivi-music-sub008/internal/app/notification"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/innertube"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/logger"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/store"
)

// Category is one independently synced slice of the library.
type Category string

const (
	LikedSongs     Category = "liked_songs"
	LibrarySongs   Category = "library_songs"
	UploadedSongs  Category = "uploaded_songs"
	LikedAlbums    Category = "liked_albums"
	UploadedAlbums Category = "uploaded_albums"
	Artists        Category = "artists"
	Playlists      Category = "playlists"
)

// AllCategories lists every category in RunAllSyncs order.
var AllCategories = []Category{LikedSongs, LibrarySongs, UploadedSongs, LikedAlbums, UploadedAlbums, Artists, Playlists}

// ParseCategory parses a category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range AllCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", errors.Newf("unknown sync category %q", s)
}

// Remote is the subset of the remote catalog client used by the engine.
type Remote interface {
	Library(ctx context.Context, browseID string, tabIndex int) (*innertube.LibraryPage, error)
	LibraryCompleted(ctx context.Context, browseID string, tabIndex, maxPages int) (*innertube.LibraryPage, error)
	Playlist(ctx context.Context, playlistID string) (*innertube.PlaylistPage, error)
	PlaylistCompleted(ctx context.Context, playlistID string, maxPages int) (*innertube.PlaylistPage, error)
	Feedback(ctx context.Context, tokens []string) error
	LikeVideo(ctx context.Context, videoID string, liked bool) error
}

// LocalStore is the local library store.
type LocalStore interface {
	store.Queries
	Transaction(ctx context.Context, fn func(q store.Queries) error) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier broadcasts sync progress events to n.
func WithNotifier(n *notification.Manager) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithClock overrides the time source used for pull timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMaxPages caps the number of pages fetched per listing in full syncs.
func WithMaxPages(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPages = n
		}
	}
}

// WithAccount tags sync logs with the account identity.
func WithAccount(identity string) Option {
	return func(e *Engine) {
		if identity != "" {
			e.log = e.log.With().Str("account", identity).Logger()
		}
	}
}

// Engine runs category syncs. At most one sync per category runs at a time;
// a sync requested while its category is busy returns immediately.
type Engine struct {
	remote   Remote
	store    LocalStore
	notifier *notification.Manager
	now      func() time.Time
	maxPages int
	log      zerolog.Logger

	busy map[Category]*atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a sync engine.
func NewEngine(remote Remote, st LocalStore, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		remote:   remote,
		store:    st,
		now:      time.Now,
		maxPages: 50,
		log:      logger.Component("sync"),
		busy:     make(map[Category]*atomic.Bool, len(AllCategories)),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, c := range AllCategories {
		e.busy[c] = &atomic.Bool{}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunAllSyncs starts every category sync in the background and returns immediately.
func (e *Engine) RunAllSyncs(fast bool) {
	e.Start(fast)
}

// Start syncs the given categories (all when none given) in the background
// and returns the run ID stamped on their notifications.
func (e *Engine) Start(fast bool, categories ...Category) string {
	if len(categories) == 0 {
		categories = AllCategories
	}
	runID := notification.NewRunID()
	for _, c := range categories {
		e.wg.Add(1)
		go func(c Category) {
			defer e.wg.Done()
			e.syncCategory(e.ctx, c, fast, runID)
		}(c)
	}
	return runID
}

// Run syncs the given categories (all when none given) concurrently and
// blocks until they finish.
func (e *Engine) Run(ctx context.Context, fast bool, categories ...Category) {
	if len(categories) == 0 {
		categories = AllCategories
	}
	runID := notification.NewRunID()

	var wg sync.WaitGroup
	for _, c := range categories {
		wg.Add(1)
		go func(c Category) {
			defer wg.Done()
			e.syncCategory(ctx, c, fast, runID)
		}(c)
	}
	wg.Wait()
}

// Wait blocks until background syncs started by RunAllSyncs finish.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close cancels background syncs and waits for them to return.
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

// Busy reports whether a sync of the category is running.
func (e *Engine) Busy(c Category) bool {
	flag, ok := e.busy[c]
	return ok && flag.Load()
}

// SyncLikedSongs mirrors the remote liked-songs list.
func (e *Engine) SyncLikedSongs(ctx context.Context, fast bool) {
	e.syncCategory(ctx, LikedSongs, fast, notification.NewRunID())
}

// SyncLibrarySongs mirrors the remote library songs.
func (e *Engine) SyncLibrarySongs(ctx context.Context, fast bool) {
	e.syncCategory(ctx, LibrarySongs, fast, notification.NewRunID())
}

// SyncUploadedSongs mirrors the remote uploaded songs.
func (e *Engine) SyncUploadedSongs(ctx context.Context, fast bool) {
	e.syncCategory(ctx, UploadedSongs, fast, notification.NewRunID())
}

// SyncLikedAlbums mirrors the remote saved albums.
func (e *Engine) SyncLikedAlbums(ctx context.Context, fast bool) {
	e.syncCategory(ctx, LikedAlbums, fast, notification.NewRunID())
}

// SyncUploadedAlbums mirrors the remote uploaded albums.
func (e *Engine) SyncUploadedAlbums(ctx context.Context, fast bool) {
	e.syncCategory(ctx, UploadedAlbums, fast, notification.NewRunID())
}

// SyncArtistsSubscriptions mirrors the remote followed artists.
func (e *Engine) SyncArtistsSubscriptions(ctx context.Context, fast bool) {
	e.syncCategory(ctx, Artists, fast, notification.NewRunID())
}

// SyncSavedPlaylists mirrors the remote saved and owned playlists and their songs.
func (e *Engine) SyncSavedPlaylists(ctx context.Context, fast bool) {
	e.syncCategory(ctx, Playlists, fast, notification.NewRunID())
}

// result counts what a category sync changed.
type result struct {
	pulled  int
	removed int
	pushed  int
}

func (e *Engine) syncFunc(c Category) func(context.Context, bool) (result, error) {
	switch c {
	case LikedSongs:
		return e.syncLikedSongs
	case LibrarySongs:
		return e.syncLibrarySongs
	case UploadedSongs:
		return e.syncUploadedSongs
	case LikedAlbums:
		return e.syncLikedAlbums
	case UploadedAlbums:
		return e.syncUploadedAlbums
	case Artists:
		return e.syncArtists
	case Playlists:
		return e.syncSavedPlaylists
	}
	return nil
}

// syncCategory runs one category under its busy flag. Failures are logged
// and broadcast, never returned.
func (e *Engine) syncCategory(ctx context.Context, c Category, fast bool, runID string) {
	flag, ok := e.busy[c]
	fn := e.syncFunc(c)
	if !ok || fn == nil {
		e.log.Error().Str("category", string(c)).Msg("Unknown sync category")
		return
	}

	if !flag.CompareAndSwap(false, true) {
		e.log.Debug().Str("category", string(c)).Msg("Sync already running, skipped")
		e.notifier.Broadcast(notification.Event{RunID: runID, Kind: notification.SyncSkipped, Category: string(c)})
		return
	}
	defer flag.Store(false)

	e.notifier.Broadcast(notification.Event{RunID: runID, Kind: notification.SyncStarted, Category: string(c)})
	start := time.Now()

	res, err := fn(ctx, fast)
	if err != nil {
		e.log.Warn().Err(err).Str("category", string(c)).Bool("fast", fast).Msg("Sync failed")
		e.notifier.Broadcast(notification.Event{RunID: runID, Kind: notification.SyncFailed, Category: string(c), Err: err.Error()})
		return
	}

	e.log.Info().
		Str("category", string(c)).
		Bool("fast", fast).
		Int("pulled", res.pulled).
		Int("removed", res.removed).
		Int("pushed", res.pushed).
		Dur("took", time.Since(start)).
		Msg("Sync finished")
	e.notifier.Broadcast(notification.Event{
		RunID:    runID,
		Kind:     notification.SyncFinished,
		Category: string(c),
		Pulled:   res.pulled,
		Removed:  res.removed,
		Pushed:   res.pushed,
	})
}

// fetchLibrary returns the first page when fast, else the listing up to the page cap.
func (e *Engine) fetchLibrary(ctx context.Context, browseID string, tabIndex int, fast bool) (*innertube.LibraryPage, error) {
	if fast {
		return e.remote.Library(ctx, browseID, tabIndex)
	}
	return e.remote.LibraryCompleted(ctx, browseID, tabIndex, e.maxPages)
}

func (e *Engine) fetchPlaylist(ctx context.Context, playlistID string, fast bool) (*innertube.PlaylistPage, error) {
	if fast {
		return e.remote.Playlist(ctx, playlistID)
	}
	return e.remote.PlaylistCompleted(ctx, playlistID, e.maxPages)
}

// pullTime returns the timestamp for the i-th entry of a remote listing.
// Entry 0 is the newest so local ordering by timestamp matches remote order.
func pullTime(now time.Time, i int) time.Time {
	return now.Add(-time.Duration(i) * time.Second)
}

// reconcilable reports whether a fetched listing is complete enough to
// delete local entries missing from it.
func reconcilable(fast bool, continuation string) bool {
	return !fast && continuation == ""
}

func idSet[T any](items []T, id func(T) string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[id(it)] = struct{}{}
	}
	return set
}
