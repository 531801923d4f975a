// Package track provides the Track domain entity.
package track

import "time"

// Token is an opaque capability string issued by the remote catalog.
// It is stored and passed back verbatim, never parsed.
type Token string

// ArtistRef is an artist credited on a track.
type ArtistRef struct {
	ID   string `json:"id,omitempty"` // Remote artist ID (empty when the credit has no page)
	Name string `json:"name"`
}

// Track represents a song or music video known to the library.
type Track struct {
	ID           string        // Remote video ID
	Title        string        // Track title
	Artists      []ArtistRef   // Credited artists
	AlbumID      string        // Remote album browse ID (optional)
	AlbumName    string        // Album title (optional)
	Duration     time.Duration // Track duration (zero if unknown)
	ThumbnailURL string        // Cover art URL

	Liked     bool       // Liked by the user
	LikedAt   *time.Time // Set iff Liked
	InLibrary *time.Time // Time the track entered the library (nil if not in library)

	IsUploaded bool // Uploaded by the user
	IsVideo    bool // Music video rather than an audio track

	LibraryAddToken    Token // Feedback token that adds the track to the library
	LibraryRemoveToken Token // Feedback token that removes the track from the library
	SetVideoID         Token // Per-playlist membership handle (when fetched from a playlist)
}

// PrimaryArtist returns the first credited artist name or "".
func (t *Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].Name
}

// HasLibraryTokens reports whether both library feedback tokens are known.
func (t *Track) HasLibraryTokens() bool {
	return t.LibraryAddToken != "" && t.LibraryRemoveToken != ""
}

// Like marks the track liked at the given time. No-op if already liked.
func (t *Track) Like(at time.Time) {
	if t.Liked {
		return
	}
	t.Liked = true
	t.LikedAt = &at
}

// Unlike clears the liked flag and its timestamp.
func (t *Track) Unlike() {
	t.Liked = false
	t.LikedAt = nil
}

// SameDisplay reports whether the remote-derived display fields of t and o match.
func (t *Track) SameDisplay(o *Track) bool {
	if t.Title != o.Title || t.AlbumID != o.AlbumID || t.AlbumName != o.AlbumName ||
		t.Duration != o.Duration || t.ThumbnailURL != o.ThumbnailURL || t.IsVideo != o.IsVideo {
		return false
	}
	if len(t.Artists) != len(o.Artists) {
		return false
	}
	for i := range t.Artists {
		if t.Artists[i] != o.Artists[i] {
			return false
		}
	}
	return true
}

// MergeDisplay copies remote-derived display fields and non-empty tokens from o.
// Flags and timestamps are left untouched.
func (t *Track) MergeDisplay(o *Track) {
	t.Title = o.Title
	t.Artists = append([]ArtistRef(nil), o.Artists...)
	t.AlbumID = o.AlbumID
	t.AlbumName = o.AlbumName
	t.Duration = o.Duration
	t.ThumbnailURL = o.ThumbnailURL
	t.IsVideo = o.IsVideo
	if o.LibraryAddToken != "" {
		t.LibraryAddToken = o.LibraryAddToken
	}
	if o.LibraryRemoveToken != "" {
		t.LibraryRemoveToken = o.LibraryRemoveToken
	}
}

// TokensDiffer reports whether o carries non-empty tokens different from t's.
func (t *Track) TokensDiffer(o *Track) bool {
	return (o.LibraryAddToken != "" && o.LibraryAddToken != t.LibraryAddToken) ||
		(o.LibraryRemoveToken != "" && o.LibraryRemoveToken != t.LibraryRemoveToken)
}
