package innertube

import "strings"

// Raw response shapes. Only the fields the parsers read are declared.

// Runs is formatted text made of runs, or a single simple text.
type Runs struct {
	Runs       []Run  `json:"runs,omitempty"`
	SimpleText string `json:"simpleText,omitempty"`
}

// Text returns the concatenated text.
func (r Runs) Text() string {
	if r.SimpleText != "" {
		return r.SimpleText
	}
	var b strings.Builder
	for _, run := range r.Runs {
		b.WriteString(run.Text)
	}
	return b.String()
}

// Run is a text fragment with an optional link.
type Run struct {
	Text               string              `json:"text"`
	NavigationEndpoint *NavigationEndpoint `json:"navigationEndpoint,omitempty"`
}

// NavigationEndpoint is where a click leads.
type NavigationEndpoint struct {
	BrowseEndpoint        *BrowseEndpoint        `json:"browseEndpoint,omitempty"`
	WatchEndpoint         *WatchEndpoint         `json:"watchEndpoint,omitempty"`
	WatchPlaylistEndpoint *WatchPlaylistEndpoint `json:"watchPlaylistEndpoint,omitempty"`
}

// BrowseEndpoint opens a browse page.
type BrowseEndpoint struct {
	BrowseID                              string `json:"browseId"`
	Params                                string `json:"params,omitempty"`
	BrowseEndpointContextSupportedConfigs *struct {
		BrowseEndpointContextMusicConfig struct {
			PageType string `json:"pageType"`
		} `json:"browseEndpointContextMusicConfig"`
	} `json:"browseEndpointContextSupportedConfigs,omitempty"`
}

// PageType returns the music page type or "".
func (b *BrowseEndpoint) PageType() string {
	if b == nil || b.BrowseEndpointContextSupportedConfigs == nil {
		return ""
	}
	return b.BrowseEndpointContextSupportedConfigs.BrowseEndpointContextMusicConfig.PageType
}

// WatchEndpoint starts playback of a video.
type WatchEndpoint struct {
	VideoID                            string `json:"videoId"`
	PlaylistID                         string `json:"playlistId,omitempty"`
	PlaylistSetVideoID                 string `json:"playlistSetVideoId,omitempty"`
	Params                             string `json:"params,omitempty"`
	WatchEndpointMusicSupportedConfigs *struct {
		WatchEndpointMusicConfig struct {
			MusicVideoType string `json:"musicVideoType"`
		} `json:"watchEndpointMusicConfig"`
	} `json:"watchEndpointMusicSupportedConfigs,omitempty"`
}

// MusicVideoType returns the music video type or "".
func (w *WatchEndpoint) MusicVideoType() string {
	if w == nil || w.WatchEndpointMusicSupportedConfigs == nil {
		return ""
	}
	return w.WatchEndpointMusicSupportedConfigs.WatchEndpointMusicConfig.MusicVideoType
}

// WatchPlaylistEndpoint starts playback of a playlist.
type WatchPlaylistEndpoint struct {
	PlaylistID string `json:"playlistId"`
	Params     string `json:"params,omitempty"`
}

// ThumbnailRenderer wraps a music thumbnail.
type ThumbnailRenderer struct {
	MusicThumbnailRenderer *struct {
		Thumbnail ThumbnailList `json:"thumbnail"`
	} `json:"musicThumbnailRenderer,omitempty"`
}

// URL returns the largest thumbnail URL or "".
func (t ThumbnailRenderer) URL() string {
	if t.MusicThumbnailRenderer == nil {
		return ""
	}
	return t.MusicThumbnailRenderer.Thumbnail.Largest()
}

// ThumbnailList is a set of sizes of one image.
type ThumbnailList struct {
	Thumbnails []Thumbnail `json:"thumbnails"`
}

// Largest returns the URL of the last (largest) thumbnail or "".
func (l ThumbnailList) Largest() string {
	if len(l.Thumbnails) == 0 {
		return ""
	}
	return l.Thumbnails[len(l.Thumbnails)-1].URL
}

// Thumbnail is one image size.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Icon names an icon.
type Icon struct {
	IconType string `json:"iconType"`
}

// Menu is an item's overflow menu.
type Menu struct {
	MenuRenderer struct {
		Items []MenuItem `json:"items"`
	} `json:"menuRenderer"`
}

// MenuItem is one menu entry.
type MenuItem struct {
	MenuNavigationItemRenderer *struct {
		Icon               Icon               `json:"icon"`
		NavigationEndpoint NavigationEndpoint `json:"navigationEndpoint"`
	} `json:"menuNavigationItemRenderer,omitempty"`
	ToggleMenuServiceItemRenderer *struct {
		DefaultIcon            Icon            `json:"defaultIcon"`
		DefaultServiceEndpoint ServiceEndpoint `json:"defaultServiceEndpoint"`
		ToggledServiceEndpoint ServiceEndpoint `json:"toggledServiceEndpoint"`
	} `json:"toggleMenuServiceItemRenderer,omitempty"`
}

// ServiceEndpoint performs an action.
type ServiceEndpoint struct {
	FeedbackEndpoint *struct {
		FeedbackToken string `json:"feedbackToken"`
	} `json:"feedbackEndpoint,omitempty"`
}

// FeedbackToken returns the feedback token or "".
func (s ServiceEndpoint) FeedbackToken() string {
	if s.FeedbackEndpoint == nil {
		return ""
	}
	return s.FeedbackEndpoint.FeedbackToken
}

// Overlay is a thumbnail overlay holding the play button.
type Overlay struct {
	MusicItemThumbnailOverlayRenderer struct {
		Content struct {
			MusicPlayButtonRenderer struct {
				PlayNavigationEndpoint *NavigationEndpoint `json:"playNavigationEndpoint,omitempty"`
			} `json:"musicPlayButtonRenderer"`
		} `json:"content"`
	} `json:"musicItemThumbnailOverlayRenderer"`
}

// MusicResponsiveListItemRenderer is a list row.
type MusicResponsiveListItemRenderer struct {
	FlexColumns []struct {
		MusicResponsiveListItemFlexColumnRenderer struct {
			Text Runs `json:"text"`
		} `json:"musicResponsiveListItemFlexColumnRenderer"`
	} `json:"flexColumns"`
	FixedColumns []struct {
		MusicResponsiveListItemFixedColumnRenderer struct {
			Text Runs `json:"text"`
		} `json:"musicResponsiveListItemFixedColumnRenderer"`
	} `json:"fixedColumns,omitempty"`
	Thumbnail          ThumbnailRenderer   `json:"thumbnail"`
	Menu               *Menu               `json:"menu,omitempty"`
	Overlay            *Overlay            `json:"overlay,omitempty"`
	NavigationEndpoint *NavigationEndpoint `json:"navigationEndpoint,omitempty"`
	PlaylistItemData   *struct {
		VideoID            string `json:"videoId"`
		PlaylistSetVideoID string `json:"playlistSetVideoId,omitempty"`
	} `json:"playlistItemData,omitempty"`
	MusicItemRendererDisplayPolicy string `json:"musicItemRendererDisplayPolicy,omitempty"`
}

// MusicTwoRowItemRenderer is a grid card.
type MusicTwoRowItemRenderer struct {
	Title              Runs               `json:"title"`
	Subtitle           Runs               `json:"subtitle"`
	NavigationEndpoint NavigationEndpoint `json:"navigationEndpoint"`
	ThumbnailRenderer  ThumbnailRenderer  `json:"thumbnailRenderer"`
	Menu               *Menu              `json:"menu,omitempty"`
	ThumbnailOverlay   *Overlay           `json:"thumbnailOverlay,omitempty"`
}

// ContinuationItemRenderer is a trailing "load more" marker.
type ContinuationItemRenderer struct {
	ContinuationEndpoint struct {
		ContinuationCommand struct {
			Token string `json:"token"`
		} `json:"continuationCommand"`
	} `json:"continuationEndpoint"`
}

// ShelfItem is one entry of a shelf or grid.
type ShelfItem struct {
	MusicResponsiveListItemRenderer *MusicResponsiveListItemRenderer `json:"musicResponsiveListItemRenderer,omitempty"`
	MusicTwoRowItemRenderer         *MusicTwoRowItemRenderer         `json:"musicTwoRowItemRenderer,omitempty"`
	ContinuationItemRenderer        *ContinuationItemRenderer        `json:"continuationItemRenderer,omitempty"`
}

// Continuation is the classic pagination marker.
type Continuation struct {
	NextContinuationData *struct {
		Continuation string `json:"continuation"`
	} `json:"nextContinuationData,omitempty"`
}

// Shelf covers gridRenderer, musicShelfRenderer and musicPlaylistShelfRenderer,
// which share the same item and continuation layout.
type Shelf struct {
	Items         []ShelfItem    `json:"items,omitempty"`
	Contents      []ShelfItem    `json:"contents,omitempty"`
	Continuations []Continuation `json:"continuations,omitempty"`
}

// Entries returns the shelf entries regardless of the field they came in.
func (s *Shelf) Entries() []ShelfItem {
	if len(s.Items) > 0 {
		return s.Items
	}
	return s.Contents
}

// SectionContent is one section of a section list.
type SectionContent struct {
	GridRenderer               *Shelf `json:"gridRenderer,omitempty"`
	MusicShelfRenderer         *Shelf `json:"musicShelfRenderer,omitempty"`
	MusicPlaylistShelfRenderer *Shelf `json:"musicPlaylistShelfRenderer,omitempty"`
	ItemSectionRenderer        *struct {
		Contents []SectionContent `json:"contents"`
	} `json:"itemSectionRenderer,omitempty"`
}

// shelf returns the first non-nil shelf of the section.
func (s SectionContent) shelf() *Shelf {
	switch {
	case s.GridRenderer != nil:
		return s.GridRenderer
	case s.MusicShelfRenderer != nil:
		return s.MusicShelfRenderer
	case s.MusicPlaylistShelfRenderer != nil:
		return s.MusicPlaylistShelfRenderer
	case s.ItemSectionRenderer != nil:
		for _, inner := range s.ItemSectionRenderer.Contents {
			if sh := inner.shelf(); sh != nil {
				return sh
			}
		}
	}
	return nil
}

// SectionList is a vertical list of sections.
type SectionList struct {
	Contents []SectionContent `json:"contents"`
}

// Tab is one tab of a browse page.
type Tab struct {
	TabRenderer struct {
		Content *struct {
			SectionListRenderer *SectionList `json:"sectionListRenderer,omitempty"`
		} `json:"content,omitempty"`
	} `json:"tabRenderer"`
}

// BrowseResponse is the response of the browse endpoint.
type BrowseResponse struct {
	ResponseContext ResponseContext `json:"responseContext"`
	Header          *struct {
		MusicDetailHeaderRenderer *struct {
			Title Runs `json:"title"`
		} `json:"musicDetailHeaderRenderer,omitempty"`
		MusicEditablePlaylistDetailHeaderRenderer *struct {
			Header struct {
				MusicDetailHeaderRenderer *struct {
					Title Runs `json:"title"`
				} `json:"musicDetailHeaderRenderer,omitempty"`
			} `json:"header"`
		} `json:"musicEditablePlaylistDetailHeaderRenderer,omitempty"`
	} `json:"header,omitempty"`
	Contents *struct {
		SingleColumnBrowseResultsRenderer *struct {
			Tabs []Tab `json:"tabs"`
		} `json:"singleColumnBrowseResultsRenderer,omitempty"`
		TwoColumnBrowseResultsRenderer *struct {
			Tabs              []Tab `json:"tabs"`
			SecondaryContents *struct {
				SectionListRenderer *SectionList `json:"sectionListRenderer,omitempty"`
			} `json:"secondaryContents,omitempty"`
		} `json:"twoColumnBrowseResultsRenderer,omitempty"`
	} `json:"contents,omitempty"`
	ContinuationContents *struct {
		GridContinuation               *Shelf `json:"gridContinuation,omitempty"`
		MusicShelfContinuation         *Shelf `json:"musicShelfContinuation,omitempty"`
		MusicPlaylistShelfContinuation *Shelf `json:"musicPlaylistShelfContinuation,omitempty"`
	} `json:"continuationContents,omitempty"`
	OnResponseReceivedActions []struct {
		AppendContinuationItemsAction *struct {
			ContinuationItems []ShelfItem `json:"continuationItems"`
		} `json:"appendContinuationItemsAction,omitempty"`
	} `json:"onResponseReceivedActions,omitempty"`
}

// ResponseContext carries session data returned by the server.
type ResponseContext struct {
	VisitorData string `json:"visitorData,omitempty"`
}
