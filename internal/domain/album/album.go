// Package album provides the Album domain entity.
package album

import "time"

// Album represents a remote album or an uploaded release.
type Album struct {
	ID           string        // Remote browse ID
	Title        string        // Album title
	ThumbnailURL string        // Cover art URL
	Year         int           // Release year (0 if unknown)
	SongCount    int           // Number of songs (0 for stubs)
	Duration     time.Duration // Total duration (0 for stubs)
	BookmarkedAt *time.Time    // Time the album was saved to the library
	IsUploaded   bool          // Uploaded by the user
}

// Stub returns the minimal album inserted when a remote album is first seen.
// Song count and duration stay zero until the album page is fetched.
func Stub(id, title, thumbnailURL string, year int) *Album {
	return &Album{
		ID:           id,
		Title:        title,
		ThumbnailURL: thumbnailURL,
		Year:         year,
	}
}

// IsBookmarked reports whether the album is saved to the library.
func (a *Album) IsBookmarked() bool {
	return a.BookmarkedAt != nil
}
