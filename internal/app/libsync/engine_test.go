package libsync

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivizzz007/vivi-music-sub008/internal/app/notification"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/album"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/artist"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/playlist"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/track"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/innertube"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/store"
)

// fakeRemote serves in-memory listings. When pageSize is set, first pages
// hold at most pageSize entries and carry a continuation.
type fakeRemote struct {
	mu        sync.Mutex
	library   map[string][]innertube.Item
	playlists map[string][]*track.Track
	pageSize  int
	truncated bool // completed listings stop at the page cap
	errs      map[string]error
	feedback  [][]string
	likes     map[string]bool
	likeErr   error
	calls     map[string]int

	gate    chan struct{} // when set, playlist fetches block until it is closed
	entered chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		library:   make(map[string][]innertube.Item),
		playlists: make(map[string][]*track.Track),
		errs:      make(map[string]error),
		likes:     make(map[string]bool),
		calls:     make(map[string]int),
	}
}

func (f *fakeRemote) Library(_ context.Context, browseID string, _ int) (*innertube.LibraryPage, error) {
	return f.libraryPage(browseID, false)
}

func (f *fakeRemote) LibraryCompleted(_ context.Context, browseID string, _, _ int) (*innertube.LibraryPage, error) {
	return f.libraryPage(browseID, true)
}

func (f *fakeRemote) libraryPage(browseID string, full bool) (*innertube.LibraryPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[browseID]++
	if err := f.errs[browseID]; err != nil {
		return nil, err
	}
	items := f.library[browseID]
	if (!full || f.truncated) && f.pageSize > 0 && len(items) > f.pageSize {
		return &innertube.LibraryPage{Items: items[:f.pageSize], Continuation: "more"}, nil
	}
	return &innertube.LibraryPage{Items: items}, nil
}

func (f *fakeRemote) Playlist(_ context.Context, id string) (*innertube.PlaylistPage, error) {
	return f.playlistPage(id, false)
}

func (f *fakeRemote) PlaylistCompleted(_ context.Context, id string, _ int) (*innertube.PlaylistPage, error) {
	return f.playlistPage(id, true)
}

func (f *fakeRemote) playlistPage(id string, full bool) (*innertube.PlaylistPage, error) {
	if f.gate != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	songs := f.playlists[id]
	if (!full || f.truncated) && f.pageSize > 0 && len(songs) > f.pageSize {
		return &innertube.PlaylistPage{Songs: songs[:f.pageSize], Continuation: "more"}, nil
	}
	return &innertube.PlaylistPage{Songs: songs}, nil
}

func (f *fakeRemote) Feedback(_ context.Context, tokens []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback = append(f.feedback, append([]string(nil), tokens...))
	return nil
}

func (f *fakeRemote) LikeVideo(_ context.Context, videoID string, liked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.likeErr != nil {
		return f.likeErr
	}
	f.likes[videoID] = liked
	return nil
}

func (f *fakeRemote) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

var testNow = time.UnixMilli(1_700_000_000_000)

func openStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "vivi.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestEngine(t *testing.T, remote Remote, st LocalStore, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	e := NewEngine(remote, st, opts...)
	t.Cleanup(e.Close)
	return e
}

func song(id string) *track.Track {
	return &track.Track{
		ID:       id,
		Title:    "Title " + id,
		Artists:  []track.ArtistRef{{ID: "UC" + id, Name: "Artist " + id}},
		Duration: 3 * time.Minute,
	}
}

func songItems(songs ...*track.Track) []innertube.Item {
	items := make([]innertube.Item, len(songs))
	for i, s := range songs {
		items[i] = innertube.Item{Kind: innertube.KindSong, Song: s}
	}
	return items
}

func ids(songs []*track.Track) []string {
	out := make([]string, len(songs))
	for i, s := range songs {
		out[i] = s.ID
	}
	return out
}

func TestSyncLikedSongs_PreservesRemoteOrder(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.playlists[playlist.LikedSongsID] = []*track.Track{song("a"), song("b"), song("c")}
	db := openStore(t)
	e := newTestEngine(t, remote, db)

	e.SyncLikedSongs(ctx, false)

	liked, err := db.LikedSongs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(liked))
	require.NotNil(t, liked[0].LikedAt)
	assert.True(t, liked[0].LikedAt.Equal(testNow))
	assert.True(t, liked[2].LikedAt.Equal(testNow.Add(-2*time.Second)))
}

func TestSyncLikedSongs_Idempotent(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.playlists[playlist.LikedSongsID] = []*track.Track{song("a"), song("b")}
	db := openStore(t)

	e := newTestEngine(t, remote, db)
	e.SyncLikedSongs(ctx, false)
	first, err := db.LikedSongs(ctx)
	require.NoError(t, err)

	// a later run with a different clock must not move existing timestamps
	later := NewEngine(remote, db, WithClock(func() time.Time { return testNow.Add(time.Hour) }))
	defer later.Close()
	later.SyncLikedSongs(ctx, false)
	second, err := db.LikedSongs(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSyncLikedSongs_RefreshesDisplayFields(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	liked := testNow.Add(-time.Hour)
	old := song("a")
	old.Title = "Old title"
	old.Liked, old.LikedAt = true, &liked
	require.NoError(t, db.InsertSong(ctx, old))

	remote := newFakeRemote()
	fresh := song("a")
	fresh.LibraryAddToken = "add-a"
	remote.playlists[playlist.LikedSongsID] = []*track.Track{fresh}
	newTestEngine(t, remote, db).SyncLikedSongs(ctx, false)

	got, err := db.Song(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Title a", got.Title)
	assert.Equal(t, track.Token("add-a"), got.LibraryAddToken)
	assert.True(t, got.LikedAt.Equal(liked))
}

func TestSyncLikedSongs_Reconcile(t *testing.T) {
	tests := []struct {
		name        string
		fast        bool
		truncated   bool
		wantRemoved bool
	}{
		{name: "full listing removes", wantRemoved: true},
		{name: "fast sync keeps", fast: true},
		{name: "page cap keeps", truncated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			db := openStore(t)
			stale := song("stale")
			stale.Like(testNow.Add(-time.Hour))
			require.NoError(t, db.InsertSong(ctx, stale))

			remote := newFakeRemote()
			remote.pageSize = 1
			remote.truncated = tt.truncated
			remote.playlists[playlist.LikedSongsID] = []*track.Track{song("a"), song("b")}
			newTestEngine(t, remote, db).SyncLikedSongs(ctx, tt.fast)

			got, err := db.Song(ctx, "stale")
			require.NoError(t, err)
			assert.Equal(t, !tt.wantRemoved, got.Liked)
			if tt.wantRemoved {
				assert.Nil(t, got.LikedAt)
			}
		})
	}
}

func TestSyncLikedSongs_FastPullsFirstPageOnly(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.pageSize = 2
	remote.playlists[playlist.LikedSongsID] = []*track.Track{song("a"), song("b"), song("c")}
	db := openStore(t)

	newTestEngine(t, remote, db).SyncLikedSongs(ctx, true)

	liked, err := db.LikedSongs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(liked))
}

func TestSyncLibrarySongs_PushesLocalAdditions(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	added := testNow.Add(-time.Hour)

	var want []string
	for i := range 25 {
		s := song(fmt.Sprintf("local%02d", i))
		s.InLibrary = &added
		s.LibraryAddToken = track.Token("add-" + s.ID)
		s.LibraryRemoveToken = track.Token("rm-" + s.ID)
		require.NoError(t, db.InsertSong(ctx, s))
		want = append(want, string(s.LibraryAddToken))
	}
	orphan := song("orphan")
	orphan.InLibrary = &added
	require.NoError(t, db.InsertSong(ctx, orphan))

	remote := newFakeRemote()
	remote.library[innertube.BrowseLikedVideos] = songItems(song("r1"))
	newTestEngine(t, remote, db).SyncLibrarySongs(ctx, false)

	require.Len(t, remote.feedback, 2)
	assert.Len(t, remote.feedback[0], 20)
	assert.Len(t, remote.feedback[1], 5)
	var pushed []string
	for _, batch := range remote.feedback {
		pushed = append(pushed, batch...)
	}
	assert.ElementsMatch(t, want, pushed)

	got, err := db.Song(ctx, "orphan")
	require.NoError(t, err)
	assert.Nil(t, got.InLibrary)

	got, err = db.Song(ctx, "local00")
	require.NoError(t, err)
	assert.NotNil(t, got.InLibrary)

	got, err = db.Song(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got.InLibrary)
	assert.True(t, got.InLibrary.Equal(testNow))
}

func TestSyncUploadedSongs(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	gone := song("gone")
	gone.IsUploaded = true
	gone.InLibrary = &testNow
	require.NoError(t, db.InsertSong(ctx, gone))

	remote := newFakeRemote()
	remote.library[innertube.BrowseUploadedTracks] = songItems(song("up1"))
	newTestEngine(t, remote, db).SyncUploadedSongs(ctx, false)

	uploaded, err := db.UploadedSongs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"up1"}, ids(uploaded))
	assert.Nil(t, uploaded[0].InLibrary)

	// in_library is owned by library songs
	got, err := db.Song(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, got.IsUploaded)
	assert.NotNil(t, got.InLibrary)
}

func TestSyncLikedAlbums(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	known := &album.Album{ID: "MPREb_known", Title: "Known", SongCount: 12, Duration: 40 * time.Minute}
	require.NoError(t, db.InsertAlbum(ctx, known))
	stale := &album.Album{ID: "MPREb_stale", Title: "Stale", BookmarkedAt: &testNow}
	require.NoError(t, db.InsertAlbum(ctx, stale))

	remote := newFakeRemote()
	remote.library[innertube.BrowseLikedAlbums] = []innertube.Item{
		{Kind: innertube.KindAlbum, Album: &album.Album{ID: "MPREb_new", Title: "New", Year: 2020, SongCount: 9}},
		{Kind: innertube.KindAlbum, Album: &album.Album{ID: "MPREb_known", Title: "Known (Deluxe)"}},
	}
	newTestEngine(t, remote, db).SyncLikedAlbums(ctx, false)

	got, err := db.Album(ctx, "MPREb_new")
	require.NoError(t, err)
	assert.Equal(t, 0, got.SongCount)
	assert.Zero(t, got.Duration)
	assert.Equal(t, 2020, got.Year)
	assert.True(t, got.IsBookmarked())

	got, err = db.Album(ctx, "MPREb_known")
	require.NoError(t, err)
	assert.Equal(t, "Known (Deluxe)", got.Title)
	assert.Equal(t, 12, got.SongCount)
	assert.Equal(t, 40*time.Minute, got.Duration)
	assert.True(t, got.BookmarkedAt.Equal(testNow.Add(-time.Second)))

	got, err = db.Album(ctx, "MPREb_stale")
	require.NoError(t, err)
	assert.False(t, got.IsBookmarked())
}

func TestSyncUploadedAlbums(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	remote := newFakeRemote()
	remote.library[innertube.BrowseUploadedReleases] = []innertube.Item{
		{Kind: innertube.KindAlbum, Album: &album.Album{ID: "FEmusic_library_privately_owned_release_detailb_1", Title: "Demo"}},
	}
	newTestEngine(t, remote, db).SyncUploadedAlbums(ctx, false)

	uploaded, err := db.UploadedAlbums(ctx)
	require.NoError(t, err)
	require.Len(t, uploaded, 1)
	assert.True(t, uploaded[0].IsUploaded)
	assert.False(t, uploaded[0].IsBookmarked())
}

func TestSyncArtists(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	require.NoError(t, db.InsertArtist(ctx, &artist.Artist{ID: "UCold", Name: "Old", BookmarkedAt: &testNow}))

	remote := newFakeRemote()
	remote.library[innertube.BrowseLibraryArtists] = []innertube.Item{
		{Kind: innertube.KindArtist, Artist: &artist.Artist{ID: "UCnew", Name: "New"}},
	}
	newTestEngine(t, remote, db).SyncArtistsSubscriptions(ctx, false)

	followed, err := db.BookmarkedArtists(ctx)
	require.NoError(t, err)
	require.Len(t, followed, 1)
	assert.Equal(t, "UCnew", followed[0].ID)
}

func remotePlaylist(browseID, name string) innertube.Item {
	return innertube.Item{Kind: innertube.KindPlaylist, Playlist: &playlist.Playlist{BrowseID: browseID, Name: name}}
}

func TestSyncSavedPlaylists_MergesSources(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.library[innertube.BrowseLikedPlaylists] = []innertube.Item{
		remotePlaylist(playlist.LikedSongsID, "Liked music"),
		remotePlaylist("PL1", "Road trip"),
	}
	remote.library[innertube.BrowseCreatedPlaylists] = []innertube.Item{
		remotePlaylist("PL1", "Road trip"),
		remotePlaylist("PL2", "Focus"),
	}
	remote.library[innertube.BrowseSubscribedPlaylists] = []innertube.Item{
		remotePlaylist(playlist.EpisodesID, "Episodes"),
	}
	remote.playlists["PL1"] = []*track.Track{song("a"), song("b")}
	remote.playlists["PL2"] = []*track.Track{song("b")}
	db := openStore(t)

	newTestEngine(t, remote, db).SyncSavedPlaylists(ctx, false)

	stored, err := db.RemotePlaylists(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, p := range stored {
		assert.False(t, playlist.IsSentinel(p.BrowseID))
		assert.Len(t, p.ID, 36)
		assert.NotNil(t, p.BookmarkedAt)
	}

	pl1, err := db.PlaylistByBrowseID(ctx, "PL1")
	require.NoError(t, err)
	members, err := db.PlaylistSongs(ctx, pl1.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, playlist.SongIDs(members))

	s, err := db.Song(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.False(t, s.Liked)
	assert.Nil(t, s.InLibrary)
}

func TestSyncSavedPlaylists_KeepsLocalIDAndUnbookmarksRemoved(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.library[innertube.BrowseLikedPlaylists] = []innertube.Item{remotePlaylist("PL1", "One"), remotePlaylist("PL2", "Two")}
	db := openStore(t)
	e := newTestEngine(t, remote, db)

	e.SyncSavedPlaylists(ctx, false)
	before, err := db.PlaylistByBrowseID(ctx, "PL1")
	require.NoError(t, err)

	remote.library[innertube.BrowseLikedPlaylists] = []innertube.Item{remotePlaylist("PL1", "One renamed")}
	e.SyncSavedPlaylists(ctx, false)

	after, err := db.PlaylistByBrowseID(ctx, "PL1")
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, "One renamed", after.Name)

	removed, err := db.PlaylistByBrowseID(ctx, "PL2")
	require.NoError(t, err)
	assert.Nil(t, removed.BookmarkedAt)
}

func TestSyncSavedPlaylists_SourceFailureAborts(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.library[innertube.BrowseLikedPlaylists] = []innertube.Item{remotePlaylist("PL1", "One")}
	remote.errs[innertube.BrowseSubscribedPlaylists] = errors.New("boom")
	db := openStore(t)

	newTestEngine(t, remote, db).SyncSavedPlaylists(ctx, false)

	stored, err := db.RemotePlaylists(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestSyncPlaylist_PartialFetchKeepsMembers(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.playlists["PL1"] = []*track.Track{song("a"), song("b")}
	db := openStore(t)
	require.NoError(t, db.InsertPlaylist(ctx, &playlist.Playlist{ID: "local", Name: "L", BrowseID: "PL1"}))
	e := newTestEngine(t, remote, db)

	require.NoError(t, e.SyncPlaylist(ctx, "PL1", "local", false))

	remote.playlists["PL1"] = []*track.Track{song("c"), song("a"), song("b")}
	remote.pageSize = 1
	require.NoError(t, e.SyncPlaylist(ctx, "PL1", "local", true))

	members, err := db.PlaylistSongs(ctx, "local")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, playlist.SongIDs(members))
}

// failingStore fails the n-th membership insert inside a transaction.
type failingStore struct {
	*store.DB
	inserts int
	failAt  int
}

func (s *failingStore) Transaction(ctx context.Context, fn func(q store.Queries) error) error {
	return s.DB.Transaction(ctx, func(q store.Queries) error {
		return fn(&failingQueries{Queries: q, s: s})
	})
}

type failingQueries struct {
	store.Queries
	s *failingStore
}

func (q *failingQueries) InsertPlaylistSong(ctx context.Context, m playlist.Membership) error {
	q.s.inserts++
	if q.s.inserts == q.s.failAt {
		return errors.New("disk full")
	}
	return q.Queries.InsertPlaylistSong(ctx, m)
}

func TestSyncPlaylist_ReplacementIsAtomic(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.playlists["PL1"] = []*track.Track{song("a"), song("b")}
	db := openStore(t)
	require.NoError(t, db.InsertPlaylist(ctx, &playlist.Playlist{ID: "local", Name: "L", BrowseID: "PL1"}))
	require.NoError(t, newTestEngine(t, remote, db).SyncPlaylist(ctx, "PL1", "local", false))

	remote.playlists["PL1"] = []*track.Track{song("c"), song("a"), song("b")}
	fs := &failingStore{DB: db, failAt: 2}
	err := newTestEngine(t, remote, fs).SyncPlaylist(ctx, "PL1", "local", false)
	require.Error(t, err)

	members, err := db.PlaylistSongs(ctx, "local")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, playlist.SongIDs(members))
	c, err := db.Song(ctx, "c")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestEngine_CategoryMutualExclusion(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.playlists[playlist.LikedSongsID] = []*track.Track{song("a")}
	remote.gate = make(chan struct{})
	remote.entered = make(chan struct{}, 1)
	e := newTestEngine(t, remote, openStore(t))

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.SyncLikedSongs(ctx, false)
	}()
	<-remote.entered
	assert.True(t, e.Busy(LikedSongs))

	e.SyncLikedSongs(ctx, false)

	close(remote.gate)
	<-done
	assert.Equal(t, 1, remote.callCount(playlist.LikedSongsID))
	assert.False(t, e.Busy(LikedSongs))
}

func TestEngine_RunAllSyncsNotifies(t *testing.T) {
	remote := newFakeRemote()
	remote.playlists[playlist.LikedSongsID] = []*track.Track{song("a")}
	remote.errs[innertube.BrowseLibraryArtists] = errors.New("boom")

	notifier := notification.NewManager()
	var mu sync.Mutex
	got := make(map[string][]notification.Kind)
	notifier.Subscribe(notification.StreamFunc(func(ev notification.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got[ev.Category] = append(got[ev.Category], ev.Kind)
		return nil
	}))

	e := newTestEngine(t, remote, openStore(t), WithNotifier(notifier))
	e.RunAllSyncs(true)
	e.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, got, len(AllCategories))
	assert.Equal(t, []notification.Kind{notification.SyncStarted, notification.SyncFinished}, got[string(LikedSongs)])
	assert.Equal(t, []notification.Kind{notification.SyncStarted, notification.SyncFailed}, got[string(Artists)])
}

func TestEngine_StartSelectedCategories(t *testing.T) {
	remote := newFakeRemote()
	remote.playlists[playlist.LikedSongsID] = []*track.Track{song("a")}

	notifier := notification.NewManager()
	var mu sync.Mutex
	var runIDs []string
	categories := make(map[string]bool)
	notifier.Subscribe(notification.StreamFunc(func(ev notification.Event) error {
		mu.Lock()
		defer mu.Unlock()
		runIDs = append(runIDs, ev.RunID)
		categories[ev.Category] = true
		return nil
	}))

	e := newTestEngine(t, remote, openStore(t), WithNotifier(notifier))
	runID := e.Start(false, LikedSongs)
	e.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]bool{string(LikedSongs): true}, categories)
	for _, id := range runIDs {
		assert.Equal(t, runID, id)
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("artists")
	require.NoError(t, err)
	assert.Equal(t, Artists, c)

	_, err = ParseCategory("podcasts")
	assert.Error(t, err)
}

func TestClearAllSyncedContent(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	s := song("a")
	s.Like(testNow)
	s.InLibrary = &testNow
	require.NoError(t, db.InsertSong(ctx, s))
	up := song("u")
	up.IsUploaded = true
	require.NoError(t, db.InsertSong(ctx, up))
	require.NoError(t, db.InsertAlbum(ctx, &album.Album{ID: "MPREb_1", Title: "A", BookmarkedAt: &testNow, IsUploaded: true}))
	require.NoError(t, db.InsertAlbum(ctx, &album.Album{ID: "MPREb_2", Title: "B", IsUploaded: true}))
	require.NoError(t, db.InsertArtist(ctx, &artist.Artist{ID: "UC1", Name: "A", BookmarkedAt: &testNow}))
	require.NoError(t, db.InsertPlaylist(ctx, &playlist.Playlist{ID: "remote", Name: "R", BrowseID: "PL1"}))
	require.NoError(t, db.InsertPlaylistSong(ctx, playlist.Membership{PlaylistID: "remote", SongID: "a"}))
	require.NoError(t, db.InsertPlaylist(ctx, &playlist.Playlist{ID: "local", Name: "Mine"}))

	sum, err := newTestEngine(t, newFakeRemote(), db).ClearAllSyncedContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, ClearSummary{Songs: 2, Albums: 2, Artists: 1, Playlists: 1}, sum)

	got, err := db.Song(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Liked)
	assert.Nil(t, got.InLibrary)

	p, err := db.Playlist(ctx, "remote")
	require.NoError(t, err)
	assert.Nil(t, p)
	p, err = db.Playlist(ctx, "local")
	require.NoError(t, err)
	assert.NotNil(t, p)

	uploadedSongs, err := db.UploadedSongs(ctx)
	require.NoError(t, err)
	assert.Empty(t, uploadedSongs)
	got, err = db.Song(ctx, "u")
	require.NoError(t, err)
	assert.NotNil(t, got)

	albums, err := db.BookmarkedAlbums(ctx)
	require.NoError(t, err)
	assert.Empty(t, albums)
	albums, err = db.UploadedAlbums(ctx)
	require.NoError(t, err)
	assert.Empty(t, albums)
	artists, err := db.BookmarkedArtists(ctx)
	require.NoError(t, err)
	assert.Empty(t, artists)
}

func TestLikeSong(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	require.NoError(t, db.InsertSong(ctx, song("a")))
	remote := newFakeRemote()
	e := newTestEngine(t, remote, db)

	require.NoError(t, e.LikeSong(ctx, "a", true))
	got, err := db.Song(ctx, "a")
	require.NoError(t, err)
	assert.True(t, got.Liked)
	assert.True(t, remote.likes["a"])

	remote.likeErr = errors.New("offline")
	err = e.LikeSong(ctx, "a", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPushFailed)
	got, err = db.Song(ctx, "a")
	require.NoError(t, err)
	assert.False(t, got.Liked)

	err = e.LikeSong(ctx, "missing", true)
	assert.ErrorIs(t, err, ErrSongNotFound)
}

func songStates(t *testing.T, db *store.DB, songIDs ...string) map[string]track.Track {
	t.Helper()
	out := make(map[string]track.Track, len(songIDs))
	for _, id := range songIDs {
		s, err := db.Song(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, s, id)
		out[id] = *s
	}
	return out
}

func albumStates(t *testing.T, db *store.DB, albumIDs ...string) map[string]album.Album {
	t.Helper()
	out := make(map[string]album.Album, len(albumIDs))
	for _, id := range albumIDs {
		a, err := db.Album(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, a, id)
		out[id] = *a
	}
	return out
}

func albumItems(albumIDs ...string) []innertube.Item {
	items := make([]innertube.Item, len(albumIDs))
	for i, id := range albumIDs {
		items[i] = innertube.Item{Kind: innertube.KindAlbum, Album: &album.Album{ID: id, Title: "Album " + id}}
	}
	return items
}

type syncStep func(e *Engine, ctx context.Context, fast bool)

func TestSync_SongCategoriesKeepTheirColumns(t *testing.T) {
	remote := newFakeRemote()
	remote.library[innertube.BrowseLikedVideos] = songItems(song("lib"), song("both"))
	remote.library[innertube.BrowseUploadedTracks] = songItems(song("up"), song("both"))

	library, uploaded := (*Engine).SyncLibrarySongs, (*Engine).SyncUploadedSongs
	tests := []struct {
		name  string
		order []syncStep
	}{
		{name: "library first", order: []syncStep{library, uploaded}},
		{name: "uploaded first", order: []syncStep{uploaded, library}},
	}

	finals := make([]map[string]track.Track, len(tests))
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			db := openStore(t)
			e := newTestEngine(t, remote, db)

			var rounds []map[string]track.Track
			for range 2 {
				for _, run := range tt.order {
					run(e, ctx, false)
				}
				rounds = append(rounds, songStates(t, db, "lib", "up", "both"))
			}
			assert.Equal(t, rounds[0], rounds[1], "flags changed on an unchanged remote")

			final := rounds[1]
			assert.NotNil(t, final["lib"].InLibrary)
			assert.False(t, final["lib"].IsUploaded)
			assert.Nil(t, final["up"].InLibrary)
			assert.True(t, final["up"].IsUploaded)
			assert.NotNil(t, final["both"].InLibrary)
			assert.True(t, final["both"].IsUploaded)
			finals[i] = final
		})
	}
	assert.Equal(t, finals[0], finals[1])
}

func TestSync_AlbumCategoriesKeepTheirColumns(t *testing.T) {
	remote := newFakeRemote()
	remote.library[innertube.BrowseLikedAlbums] = albumItems("MPREb_liked", "MPREb_both")
	remote.library[innertube.BrowseUploadedReleases] = albumItems("MPREb_up", "MPREb_both")

	liked, uploaded := (*Engine).SyncLikedAlbums, (*Engine).SyncUploadedAlbums
	tests := []struct {
		name  string
		order []syncStep
	}{
		{name: "liked first", order: []syncStep{liked, uploaded}},
		{name: "uploaded first", order: []syncStep{uploaded, liked}},
	}

	finals := make([]map[string]album.Album, len(tests))
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			db := openStore(t)
			e := newTestEngine(t, remote, db)

			var rounds []map[string]album.Album
			for range 2 {
				for _, run := range tt.order {
					run(e, ctx, false)
				}
				rounds = append(rounds, albumStates(t, db, "MPREb_liked", "MPREb_up", "MPREb_both"))
			}
			assert.Equal(t, rounds[0], rounds[1], "flags changed on an unchanged remote")

			final := rounds[1]
			liked, up, both := final["MPREb_liked"], final["MPREb_up"], final["MPREb_both"]
			assert.True(t, liked.IsBookmarked())
			assert.False(t, liked.IsUploaded)
			assert.False(t, up.IsBookmarked())
			assert.True(t, up.IsUploaded)
			assert.True(t, both.IsBookmarked())
			assert.True(t, both.IsUploaded)
			finals[i] = final
		})
	}
	assert.Equal(t, finals[0], finals[1])
}

// racingStore calls race right after a reconciliation listing is read, the
// way a concurrent category sync or user action would write.
type racingStore struct {
	*store.DB
	race func(ctx context.Context)
}

func (s *racingStore) LikedSongs(ctx context.Context) ([]*track.Track, error) {
	songs, err := s.DB.LikedSongs(ctx)
	s.race(ctx)
	return songs, err
}

func (s *racingStore) BookmarkedAlbums(ctx context.Context) ([]*album.Album, error) {
	albums, err := s.DB.BookmarkedAlbums(ctx)
	s.race(ctx)
	return albums, err
}

func TestReconcile_KeepsWritesMadeAfterListing(t *testing.T) {
	t.Run("liked songs", func(t *testing.T) {
		ctx := context.Background()
		db := openStore(t)
		gone := song("gone")
		gone.Like(testNow)
		require.NoError(t, db.InsertSong(ctx, gone))

		rs := &racingStore{DB: db, race: func(ctx context.Context) {
			s, err := db.Song(ctx, "gone")
			require.NoError(t, err)
			s.InLibrary = &testNow
			require.NoError(t, db.UpdateSong(ctx, s))
		}}
		newTestEngine(t, newFakeRemote(), rs).SyncLikedSongs(ctx, false)

		got, err := db.Song(ctx, "gone")
		require.NoError(t, err)
		assert.False(t, got.Liked)
		require.NotNil(t, got.InLibrary)
		assert.True(t, got.InLibrary.Equal(testNow))
	})

	t.Run("liked albums", func(t *testing.T) {
		ctx := context.Background()
		db := openStore(t)
		require.NoError(t, db.InsertAlbum(ctx, &album.Album{ID: "MPREb_gone", Title: "Gone", BookmarkedAt: &testNow}))

		rs := &racingStore{DB: db, race: func(ctx context.Context) {
			a, err := db.Album(ctx, "MPREb_gone")
			require.NoError(t, err)
			a.IsUploaded = true
			require.NoError(t, db.UpdateAlbum(ctx, a))
		}}
		newTestEngine(t, newFakeRemote(), rs).SyncLikedAlbums(ctx, false)

		got, err := db.Album(ctx, "MPREb_gone")
		require.NoError(t, err)
		assert.False(t, got.IsBookmarked())
		assert.True(t, got.IsUploaded)
	})
}

func TestReconcile_SkipsRowsAlreadyCleared(t *testing.T) {
	ctx := context.Background()
	db := openStore(t)
	gone := song("gone")
	gone.Like(testNow)
	require.NoError(t, db.InsertSong(ctx, gone))

	notifier := notification.NewManager()
	var mu sync.Mutex
	var removed []int
	notifier.Subscribe(notification.StreamFunc(func(ev notification.Event) error {
		mu.Lock()
		defer mu.Unlock()
		if ev.Kind == notification.SyncFinished {
			removed = append(removed, ev.Removed)
		}
		return nil
	}))

	rs := &racingStore{DB: db, race: func(ctx context.Context) {
		s, err := db.Song(ctx, "gone")
		require.NoError(t, err)
		s.Unlike()
		require.NoError(t, db.UpdateSong(ctx, s))
	}}
	newTestEngine(t, newFakeRemote(), rs, WithNotifier(notifier)).SyncLikedSongs(ctx, false)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0}, removed)
}

func TestWithAccount_TagsSyncLogs(t *testing.T) {
	var buf bytes.Buffer
	prev := zlog.Logger
	zlog.Logger = zerolog.New(&buf)
	t.Cleanup(func() { zlog.Logger = prev })

	e := newTestEngine(t, newFakeRemote(), openStore(t), WithAccount("acct-1"))
	e.SyncLikedSongs(context.Background(), true)

	assert.Contains(t, buf.String(), `"component":"sync"`)
	assert.Contains(t, buf.String(), `"account":"acct-1"`)
}
