package innertube

import (
	"context"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/vivizzz007/vivi-music-sub008/internal/domain/track"
)

// Library browse IDs.
const (
	BrowseLikedVideos         = "FEmusic_liked_videos"
	BrowseUploadedTracks      = "FEmusic_library_privately_owned_tracks"
	BrowseLikedAlbums         = "FEmusic_liked_albums"
	BrowseUploadedReleases    = "FEmusic_library_privately_owned_releases"
	BrowseLibraryArtists      = "FEmusic_library_corpus_artists"
	BrowseLikedPlaylists      = "FEmusic_liked_playlists"
	BrowseCreatedPlaylists    = "FEmusic_library_privately_owned_playlists"
	BrowseSubscribedPlaylists = "FEmusic_library_corpus_playlists"
)

// LibraryPage is one page of a library listing.
// An empty Continuation means the listing is complete.
type LibraryPage struct {
	Items        []Item
	Continuation string
}

// PlaylistPage is one page of a playlist's songs.
type PlaylistPage struct {
	Title        string // set on the first page only
	Songs        []*track.Track
	Continuation string
}

// Library fetches the first page of a library listing. tabIndex selects the
// tab for pages that split content into tabs (uploads use tab 1).
func (c *Client) Library(ctx context.Context, browseID string, tabIndex int) (*LibraryPage, error) {
	var resp BrowseResponse
	if err := c.post(ctx, "browse", nil, WebRemix, map[string]any{"browseId": browseID}, &resp); err != nil {
		return nil, errors.Wrapf(err, "failed to browse %s", browseID)
	}

	shelf := resp.firstShelf(tabIndex)
	if shelf == nil {
		zlog.Debug().Str("browse_id", browseID).Msg("Library page has no shelf")
		return &LibraryPage{}, nil
	}
	items, cont := parseShelf(shelf)
	return &LibraryPage{Items: items, Continuation: cont}, nil
}

// LibraryContinuation fetches the page following a continuation token.
func (c *Client) LibraryContinuation(ctx context.Context, token string) (*LibraryPage, error) {
	resp, err := c.continuation(ctx, token)
	if err != nil {
		return nil, err
	}
	items, cont := resp.continuationItems()
	return &LibraryPage{Items: items, Continuation: cont}, nil
}

// LibraryCompleted fetches a library listing following continuations for at
// most maxPages pages. The returned page keeps a continuation if the cap was hit.
func (c *Client) LibraryCompleted(ctx context.Context, browseID string, tabIndex, maxPages int) (*LibraryPage, error) {
	page, err := c.Library(ctx, browseID, tabIndex)
	if err != nil {
		return nil, err
	}
	for n := 1; page.Continuation != "" && n < maxPages; n++ {
		next, err := c.LibraryContinuation(ctx, page.Continuation)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, next.Items...)
		page.Continuation = next.Continuation
	}
	return page, nil
}

// Playlist fetches the first page of a playlist's songs.
func (c *Client) Playlist(ctx context.Context, playlistID string) (*PlaylistPage, error) {
	browseID := playlistID
	if !strings.HasPrefix(browseID, "VL") {
		browseID = "VL" + playlistID
	}

	var resp BrowseResponse
	if err := c.post(ctx, "browse", nil, WebRemix, map[string]any{"browseId": browseID}, &resp); err != nil {
		return nil, errors.Wrapf(err, "failed to browse playlist %s", playlistID)
	}

	page := &PlaylistPage{Title: resp.title()}
	if shelf := resp.playlistShelf(); shelf != nil {
		items, cont := parseShelf(shelf)
		page.Songs = Songs(items)
		page.Continuation = cont
	}
	return page, nil
}

// PlaylistContinuation fetches the songs following a continuation token.
func (c *Client) PlaylistContinuation(ctx context.Context, token string) (*PlaylistPage, error) {
	resp, err := c.continuation(ctx, token)
	if err != nil {
		return nil, err
	}
	items, cont := resp.continuationItems()
	return &PlaylistPage{Songs: Songs(items), Continuation: cont}, nil
}

// PlaylistCompleted fetches a playlist following continuations for at most maxPages pages.
func (c *Client) PlaylistCompleted(ctx context.Context, playlistID string, maxPages int) (*PlaylistPage, error) {
	page, err := c.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	for n := 1; page.Continuation != "" && n < maxPages; n++ {
		next, err := c.PlaylistContinuation(ctx, page.Continuation)
		if err != nil {
			return nil, err
		}
		page.Songs = append(page.Songs, next.Songs...)
		page.Continuation = next.Continuation
	}
	return page, nil
}

func (c *Client) continuation(ctx context.Context, token string) (*BrowseResponse, error) {
	query := url.Values{}
	query.Set("ctoken", token)
	query.Set("continuation", token)
	query.Set("type", "next")

	var resp BrowseResponse
	if err := c.post(ctx, "browse", query, WebRemix, map[string]any{"continuation": token}, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to fetch continuation")
	}
	return &resp, nil
}

func (r *BrowseResponse) sectionLists(tabIndex int) []*SectionList {
	var out []*SectionList
	if r.Contents == nil {
		return nil
	}
	if sc := r.Contents.SingleColumnBrowseResultsRenderer; sc != nil && tabIndex < len(sc.Tabs) {
		if content := sc.Tabs[tabIndex].TabRenderer.Content; content != nil && content.SectionListRenderer != nil {
			out = append(out, content.SectionListRenderer)
		}
	}
	if tc := r.Contents.TwoColumnBrowseResultsRenderer; tc != nil {
		if tc.SecondaryContents != nil && tc.SecondaryContents.SectionListRenderer != nil {
			out = append(out, tc.SecondaryContents.SectionListRenderer)
		}
		if tabIndex < len(tc.Tabs) {
			if content := tc.Tabs[tabIndex].TabRenderer.Content; content != nil && content.SectionListRenderer != nil {
				out = append(out, content.SectionListRenderer)
			}
		}
	}
	return out
}

// firstShelf returns the first shelf with entries in the selected tab.
func (r *BrowseResponse) firstShelf(tabIndex int) *Shelf {
	for _, sl := range r.sectionLists(tabIndex) {
		for _, sec := range sl.Contents {
			if sh := sec.shelf(); sh != nil && len(sh.Entries()) > 0 {
				return sh
			}
		}
	}
	return nil
}

func (r *BrowseResponse) playlistShelf() *Shelf {
	for _, sl := range r.sectionLists(0) {
		for _, sec := range sl.Contents {
			if sec.MusicPlaylistShelfRenderer != nil {
				return sec.MusicPlaylistShelfRenderer
			}
		}
	}
	return r.firstShelf(0)
}

func (r *BrowseResponse) title() string {
	if r.Header == nil {
		return ""
	}
	if h := r.Header.MusicDetailHeaderRenderer; h != nil {
		return h.Title.Text()
	}
	if h := r.Header.MusicEditablePlaylistDetailHeaderRenderer; h != nil && h.Header.MusicDetailHeaderRenderer != nil {
		return h.Header.MusicDetailHeaderRenderer.Title.Text()
	}
	return ""
}

func (r *BrowseResponse) continuationItems() ([]Item, string) {
	if cc := r.ContinuationContents; cc != nil {
		for _, sh := range []*Shelf{cc.GridContinuation, cc.MusicShelfContinuation, cc.MusicPlaylistShelfContinuation} {
			if sh != nil {
				return parseShelf(sh)
			}
		}
	}
	var entries []ShelfItem
	for _, a := range r.OnResponseReceivedActions {
		if a.AppendContinuationItemsAction != nil {
			entries = append(entries, a.AppendContinuationItemsAction.ContinuationItems...)
		}
	}
	return parseEntries(entries)
}

func parseShelf(sh *Shelf) ([]Item, string) {
	items, cont := parseEntries(sh.Entries())
	if cont == "" {
		for _, c := range sh.Continuations {
			if c.NextContinuationData != nil && c.NextContinuationData.Continuation != "" {
				cont = c.NextContinuationData.Continuation
				break
			}
		}
	}
	return items, cont
}

func parseEntries(entries []ShelfItem) ([]Item, string) {
	var (
		items []Item
		cont  string
	)
	for _, e := range entries {
		if e.ContinuationItemRenderer != nil {
			cont = e.ContinuationItemRenderer.ContinuationEndpoint.ContinuationCommand.Token
			continue
		}
		if it, ok := parseShelfItem(e); ok {
			items = append(items, it)
		}
	}
	return items, cont
}
