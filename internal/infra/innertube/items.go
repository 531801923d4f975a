package innertube

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vivizzz007/vivi-music-sub008/internal/domain/album"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/artist"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/playlist"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/track"
)

// ItemKind tags the variant held by an Item.
type ItemKind int

const (
	KindSong ItemKind = iota + 1
	KindAlbum
	KindArtist
	KindPlaylist
)

// Item is one entry of a heterogeneous remote page. Exactly one of the
// pointers matching Kind is set.
type Item struct {
	Kind     ItemKind
	Song     *track.Track
	Album    *album.Album
	Artist   *artist.Artist
	Playlist *playlist.Playlist
}

// Songs narrows items to songs, preserving order.
func Songs(items []Item) []*track.Track {
	var out []*track.Track
	for _, it := range items {
		if it.Kind == KindSong {
			out = append(out, it.Song)
		}
	}
	return out
}

// Albums narrows items to albums, preserving order.
func Albums(items []Item) []*album.Album {
	var out []*album.Album
	for _, it := range items {
		if it.Kind == KindAlbum {
			out = append(out, it.Album)
		}
	}
	return out
}

// Artists narrows items to artists, preserving order.
func Artists(items []Item) []*artist.Artist {
	var out []*artist.Artist
	for _, it := range items {
		if it.Kind == KindArtist {
			out = append(out, it.Artist)
		}
	}
	return out
}

// Playlists narrows items to playlists, preserving order.
func Playlists(items []Item) []*playlist.Playlist {
	var out []*playlist.Playlist
	for _, it := range items {
		if it.Kind == KindPlaylist {
			out = append(out, it.Playlist)
		}
	}
	return out
}

// Music page types.
const (
	pageTypeAlbum          = "MUSIC_PAGE_TYPE_ALBUM"
	pageTypeAudiobook      = "MUSIC_PAGE_TYPE_AUDIOBOOK"
	pageTypeArtist         = "MUSIC_PAGE_TYPE_ARTIST"
	pageTypeUserChannel    = "MUSIC_PAGE_TYPE_USER_CHANNEL"
	pageTypeLibraryArtist  = "MUSIC_PAGE_TYPE_LIBRARY_ARTIST"
	pageTypePlaylist       = "MUSIC_PAGE_TYPE_PLAYLIST"
	musicVideoTypeATV      = "MUSIC_VIDEO_TYPE_ATV"
	displayPolicyGreyedOut = "MUSIC_ITEM_RENDERER_DISPLAY_POLICY_GREY_OUT"
)

func isArtistPage(pageType, browseID string) bool {
	switch pageType {
	case pageTypeArtist, pageTypeUserChannel, pageTypeLibraryArtist:
		return true
	case "":
		return strings.HasPrefix(browseID, "UC")
	}
	return false
}

func isAlbumPage(pageType, browseID string) bool {
	switch pageType {
	case pageTypeAlbum, pageTypeAudiobook:
		return true
	case "":
		return strings.HasPrefix(browseID, "MPREb")
	}
	return false
}

// parseShelfItem converts one shelf entry to an Item. ok is false for
// entries that are not content (continuation markers, greyed-out rows).
func parseShelfItem(s ShelfItem) (Item, bool) {
	switch {
	case s.MusicResponsiveListItemRenderer != nil:
		return parseListItem(s.MusicResponsiveListItemRenderer)
	case s.MusicTwoRowItemRenderer != nil:
		return parseTwoRowItem(s.MusicTwoRowItemRenderer)
	}
	return Item{}, false
}

func parseListItem(r *MusicResponsiveListItemRenderer) (Item, bool) {
	if r.MusicItemRendererDisplayPolicy == displayPolicyGreyedOut {
		return Item{}, false
	}

	if nav := r.NavigationEndpoint; nav != nil && nav.BrowseEndpoint != nil {
		b := nav.BrowseEndpoint
		title := r.flexText(0)
		switch {
		case isArtistPage(b.PageType(), b.BrowseID):
			return Item{Kind: KindArtist, Artist: &artist.Artist{
				ID:           b.BrowseID,
				Name:         title,
				ThumbnailURL: r.Thumbnail.URL(),
			}}, true
		case isAlbumPage(b.PageType(), b.BrowseID):
			return Item{Kind: KindAlbum, Album: album.Stub(b.BrowseID, title, r.Thumbnail.URL(), yearOf(r.flexRuns(1)))}, true
		case b.PageType() == pageTypePlaylist:
			p := &playlist.Playlist{
				BrowseID:     strings.TrimPrefix(b.BrowseID, "VL"),
				Name:         title,
				ThumbnailURL: r.Thumbnail.URL(),
			}
			applyPlaylistMenu(p, r.Menu, r.Overlay)
			return Item{Kind: KindPlaylist, Playlist: p}, true
		}
		return Item{}, false
	}

	t := r.song()
	if t == nil {
		return Item{}, false
	}
	return Item{Kind: KindSong, Song: t}, true
}

func (r *MusicResponsiveListItemRenderer) flexRuns(i int) []Run {
	if i >= len(r.FlexColumns) {
		return nil
	}
	return r.FlexColumns[i].MusicResponsiveListItemFlexColumnRenderer.Text.Runs
}

func (r *MusicResponsiveListItemRenderer) flexText(i int) string {
	if i >= len(r.FlexColumns) {
		return ""
	}
	return r.FlexColumns[i].MusicResponsiveListItemFlexColumnRenderer.Text.Text()
}

func (r *MusicResponsiveListItemRenderer) song() *track.Track {
	var (
		videoID    string
		setVideoID string
		watch      *WatchEndpoint
	)
	if r.PlaylistItemData != nil {
		videoID = r.PlaylistItemData.VideoID
		setVideoID = r.PlaylistItemData.PlaylistSetVideoID
	}
	if titleRuns := r.flexRuns(0); len(titleRuns) > 0 && titleRuns[0].NavigationEndpoint != nil {
		watch = titleRuns[0].NavigationEndpoint.WatchEndpoint
	}
	if watch == nil && r.Overlay != nil {
		if nav := r.Overlay.MusicItemThumbnailOverlayRenderer.Content.MusicPlayButtonRenderer.PlayNavigationEndpoint; nav != nil {
			watch = nav.WatchEndpoint
		}
	}
	if videoID == "" && watch != nil {
		videoID = watch.VideoID
	}
	if videoID == "" {
		return nil
	}

	t := &track.Track{
		ID:           videoID,
		Title:        r.flexText(0),
		ThumbnailURL: r.Thumbnail.URL(),
		SetVideoID:   track.Token(setVideoID),
	}
	if watch != nil {
		mvt := watch.MusicVideoType()
		t.IsVideo = mvt != "" && mvt != musicVideoTypeATV
	}

	for col := 1; col < len(r.FlexColumns); col++ {
		for _, run := range r.flexRuns(col) {
			var b *BrowseEndpoint
			if run.NavigationEndpoint != nil {
				b = run.NavigationEndpoint.BrowseEndpoint
			}
			switch {
			case b != nil && isArtistPage(b.PageType(), b.BrowseID):
				t.Artists = append(t.Artists, track.ArtistRef{ID: b.BrowseID, Name: run.Text})
			case b != nil && isAlbumPage(b.PageType(), b.BrowseID):
				t.AlbumID = b.BrowseID
				t.AlbumName = run.Text
			case t.Duration == 0 && durationPattern.MatchString(run.Text):
				t.Duration = parseDuration(run.Text)
			}
		}
	}
	// Credits without links (common for uploads and videos) fall back to the first subtitle run.
	if len(t.Artists) == 0 {
		if runs := r.flexRuns(1); len(runs) > 0 && !durationPattern.MatchString(runs[0].Text) {
			t.Artists = []track.ArtistRef{{Name: runs[0].Text}}
		}
	}
	if len(r.FixedColumns) > 0 {
		if d := parseDuration(r.FixedColumns[0].MusicResponsiveListItemFixedColumnRenderer.Text.Text()); d > 0 {
			t.Duration = d
		}
	}

	t.LibraryAddToken, t.LibraryRemoveToken = libraryTokens(r.Menu)
	return t
}

// libraryTokens extracts the add/remove library feedback tokens from a menu.
// The default endpoint performs the action shown by the default icon.
func libraryTokens(m *Menu) (add, remove track.Token) {
	if m == nil {
		return "", ""
	}
	for _, it := range m.MenuRenderer.Items {
		tr := it.ToggleMenuServiceItemRenderer
		if tr == nil {
			continue
		}
		def := track.Token(tr.DefaultServiceEndpoint.FeedbackToken())
		tog := track.Token(tr.ToggledServiceEndpoint.FeedbackToken())
		switch tr.DefaultIcon.IconType {
		case "LIBRARY_ADD", "BOOKMARK_BORDER":
			return def, tog
		case "LIBRARY_SAVED", "LIBRARY_REMOVE", "BOOKMARK":
			return tog, def
		}
	}
	return "", ""
}

func parseTwoRowItem(r *MusicTwoRowItemRenderer) (Item, bool) {
	b := r.NavigationEndpoint.BrowseEndpoint
	if b == nil {
		return Item{}, false
	}
	title := r.Title.Text()
	thumb := r.ThumbnailRenderer.URL()

	switch {
	case isAlbumPage(b.PageType(), b.BrowseID):
		return Item{Kind: KindAlbum, Album: album.Stub(b.BrowseID, title, thumb, yearOf(r.Subtitle.Runs))}, true
	case isArtistPage(b.PageType(), b.BrowseID):
		return Item{Kind: KindArtist, Artist: &artist.Artist{ID: b.BrowseID, Name: title, ThumbnailURL: thumb}}, true
	case b.PageType() == pageTypePlaylist || strings.HasPrefix(b.BrowseID, "VL"):
		p := &playlist.Playlist{
			BrowseID:     strings.TrimPrefix(b.BrowseID, "VL"),
			Name:         title,
			ThumbnailURL: thumb,
		}
		if n, ok := songCountOf(r.Subtitle.Runs); ok {
			p.RemoteSongCount = &n
		}
		applyPlaylistMenu(p, r.Menu, r.ThumbnailOverlay)
		return Item{Kind: KindPlaylist, Playlist: p}, true
	}
	return Item{}, false
}

// applyPlaylistMenu fills endpoint parameters and editability from a playlist card's menu.
func applyPlaylistMenu(p *playlist.Playlist, m *Menu, o *Overlay) {
	if o != nil {
		if nav := o.MusicItemThumbnailOverlayRenderer.Content.MusicPlayButtonRenderer.PlayNavigationEndpoint; nav != nil && nav.WatchPlaylistEndpoint != nil {
			p.PlayParams = track.Token(nav.WatchPlaylistEndpoint.Params)
		}
	}
	if m == nil {
		return
	}
	for _, it := range m.MenuRenderer.Items {
		nr := it.MenuNavigationItemRenderer
		if nr == nil {
			continue
		}
		var params string
		if nr.NavigationEndpoint.WatchPlaylistEndpoint != nil {
			params = nr.NavigationEndpoint.WatchPlaylistEndpoint.Params
		}
		switch nr.Icon.IconType {
		case "MUSIC_SHUFFLE":
			p.ShuffleParams = track.Token(params)
		case "MIX":
			p.RadioParams = track.Token(params)
		case "EDIT":
			p.IsEditable = true
		}
	}
}

var (
	durationPattern  = regexp.MustCompile(`^(\d+:)?\d{1,2}:\d{2}$`)
	yearPattern      = regexp.MustCompile(`^\d{4}$`)
	songCountPattern = regexp.MustCompile(`^([\d,]+) (songs?|tracks?|videos?)$`)
)

// parseDuration parses "m:ss" or "h:mm:ss". It returns 0 for anything else.
func parseDuration(s string) time.Duration {
	s = strings.TrimSpace(s)
	if !durationPattern.MatchString(s) {
		return 0
	}
	var total int
	for _, part := range strings.Split(s, ":") {
		n, _ := strconv.Atoi(part)
		total = total*60 + n
	}
	return time.Duration(total) * time.Second
}

func yearOf(runs []Run) int {
	for i := len(runs) - 1; i >= 0; i-- {
		if yearPattern.MatchString(strings.TrimSpace(runs[i].Text)) {
			y, _ := strconv.Atoi(strings.TrimSpace(runs[i].Text))
			return y
		}
	}
	return 0
}

func songCountOf(runs []Run) (int, bool) {
	for _, run := range runs {
		if m := songCountPattern.FindStringSubmatch(strings.TrimSpace(run.Text)); m != nil {
			n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
			if err == nil {
				return n, true
			}
		}
	}
	return 0, false
}
