package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivizzz007/vivi-music-sub008/internal/domain/album"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/artist"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/playlist"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/track"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "vivi.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vivi.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.InsertSong(context.Background(), &track.Track{ID: "v1", Title: "Song"}))
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.Song(context.Background(), "v1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Song", got.Title)
}

func TestSongs_RoundTripAndCategories(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	now := time.UnixMilli(time.Now().UnixMilli())
	older := now.Add(-time.Second)
	songs := []*track.Track{
		{ID: "a", Title: "A", Artists: []track.ArtistRef{{ID: "UC1", Name: "Artist"}}, Duration: 3 * time.Minute,
			Liked: true, LikedAt: &older, LibraryAddToken: "add-a", LibraryRemoveToken: "rm-a"},
		{ID: "b", Title: "B", Liked: true, LikedAt: &now, InLibrary: &now},
		{ID: "c", Title: "C", IsUploaded: true, InLibrary: &older, IsVideo: true},
	}
	for _, s := range songs {
		require.NoError(t, db.InsertSong(ctx, s))
	}
	assert.Error(t, db.InsertSong(ctx, songs[0]), "duplicate insert")

	got, err := db.Song(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, songs[0].Artists, got.Artists)
	assert.Equal(t, 3*time.Minute, got.Duration)
	assert.Equal(t, older, *got.LikedAt)
	assert.Equal(t, track.Token("rm-a"), got.LibraryRemoveToken)
	assert.Nil(t, got.InLibrary)

	missing, err := db.Song(ctx, "zzz")
	require.NoError(t, err)
	assert.Nil(t, missing)

	liked, err := db.LikedSongs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, playlist.TrackIDs(liked))

	library, err := db.LibrarySongs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, playlist.TrackIDs(library))

	uploaded, err := db.UploadedSongs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, playlist.TrackIDs(uploaded))

	got.Unlike()
	require.NoError(t, db.UpdateSong(ctx, got))
	liked, err = db.LikedSongs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, playlist.TrackIDs(liked))
}

func TestAlbumsAndArtists(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	now := time.UnixMilli(time.Now().UnixMilli())

	stub := album.Stub("MPREb_1", "Album", "https://img", 2020)
	stub.BookmarkedAt = &now
	require.NoError(t, db.InsertAlbum(ctx, stub))
	require.NoError(t, db.InsertAlbum(ctx, &album.Album{ID: "up1", Title: "Upload", IsUploaded: true}))

	got, err := db.Album(ctx, "MPREb_1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.SongCount)
	assert.Equal(t, time.Duration(0), got.Duration)
	assert.Equal(t, 2020, got.Year)
	assert.True(t, got.IsBookmarked())

	bookmarked, err := db.BookmarkedAlbums(ctx)
	require.NoError(t, err)
	assert.Len(t, bookmarked, 1)
	uploaded, err := db.UploadedAlbums(ctx)
	require.NoError(t, err)
	assert.Len(t, uploaded, 1)

	require.NoError(t, db.InsertArtist(ctx, &artist.Artist{ID: "UC1", Name: "Artist", BookmarkedAt: &now}))
	a, err := db.Artist(ctx, "UC1")
	require.NoError(t, err)
	a.BookmarkedAt = nil
	require.NoError(t, db.UpdateArtist(ctx, a))
	followed, err := db.BookmarkedArtists(ctx)
	require.NoError(t, err)
	assert.Empty(t, followed)
}

func TestPlaylists_MembershipOrdering(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	count := 3
	p := &playlist.Playlist{ID: "local-1", Name: "Mix", BrowseID: "PL1", RemoteSongCount: &count, PlayParams: "pp"}
	require.NoError(t, db.InsertPlaylist(ctx, p))
	require.NoError(t, db.InsertPlaylist(ctx, &playlist.Playlist{ID: "local-2", Name: "Local only"}))

	byBrowse, err := db.PlaylistByBrowseID(ctx, "PL1")
	require.NoError(t, err)
	require.NotNil(t, byBrowse)
	assert.Equal(t, "local-1", byBrowse.ID)
	assert.Equal(t, 3, *byBrowse.RemoteSongCount)

	remote, err := db.RemotePlaylists(ctx)
	require.NoError(t, err)
	assert.Len(t, remote, 1)

	require.NoError(t, db.Transaction(ctx, func(q Queries) error {
		return replacePlaylistSongs(ctx, q, "local-2", []playlist.Membership{{SongID: "a", SetVideoID: "s1"}, {SongID: "b"}, {SongID: "c"}})
	}))

	require.NoError(t, db.MovePlaylistSong(ctx, "local-2", 0, 2))
	got, err := db.PlaylistSongs(ctx, "local-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, playlist.SongIDs(got))
	assert.Equal(t, track.Token("s1"), got[2].SetVideoID)

	require.NoError(t, db.RemovePlaylistSong(ctx, "local-2", 1))
	got, err = db.PlaylistSongs(ctx, "local-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, playlist.SongIDs(got))
	for i, m := range got {
		assert.Equal(t, i, m.Position)
	}

	require.NoError(t, db.DeletePlaylist(ctx, "local-2"))
	got, err = db.PlaylistSongs(ctx, "local-2")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPlaylists_EditErrors(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.InsertPlaylist(ctx, &playlist.Playlist{ID: "mirror", Name: "Mix", BrowseID: "PL1"}))
	require.NoError(t, db.InsertPlaylist(ctx, &playlist.Playlist{ID: "mine", Name: "Mine"}))
	require.NoError(t, db.InsertPlaylistSong(ctx, playlist.Membership{PlaylistID: "mirror", SongID: "a"}))
	require.NoError(t, db.InsertPlaylistSong(ctx, playlist.Membership{PlaylistID: "mine", SongID: "a"}))

	tests := []struct {
		name string
		edit func() error
		want error
	}{
		{name: "unknown playlist", edit: func() error { return db.RemovePlaylistSong(ctx, "nope", 0) }, want: ErrPlaylistNotFound},
		{name: "remote move", edit: func() error { return db.MovePlaylistSong(ctx, "mirror", 0, 0) }, want: ErrRemotePlaylist},
		{name: "remote remove", edit: func() error { return db.RemovePlaylistSong(ctx, "mirror", 0) }, want: ErrRemotePlaylist},
		{name: "move out of range", edit: func() error { return db.MovePlaylistSong(ctx, "mine", 0, 5) }, want: ErrInvalidPosition},
		{name: "remove out of range", edit: func() error { return db.RemovePlaylistSong(ctx, "mine", -1) }, want: ErrInvalidPosition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.edit(), tt.want)
		})
	}

	got, err := db.PlaylistSongs(ctx, "mirror")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, playlist.SongIDs(got))
}

func TestTransaction_Rollback(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.InsertPlaylist(ctx, &playlist.Playlist{ID: "p", Name: "P", BrowseID: "PL"}))
	require.NoError(t, db.Transaction(ctx, func(q Queries) error {
		return replacePlaylistSongs(ctx, q, "p", []playlist.Membership{{SongID: "a"}, {SongID: "b"}})
	}))

	boom := errors.New("boom")
	err := db.Transaction(ctx, func(q Queries) error {
		if err := q.ClearPlaylistSongs(ctx, "p"); err != nil {
			return err
		}
		if err := q.InsertPlaylistSong(ctx, playlist.Membership{PlaylistID: "p", SongID: "x", Position: 0}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := db.PlaylistSongs(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, playlist.SongIDs(got))
}
