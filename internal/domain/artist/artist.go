// Package artist provides the Artist domain entity.
package artist

import "time"

// Artist represents a remote artist page the user may follow.
type Artist struct {
	ID           string     // Remote browse ID
	Name         string     // Display name
	ThumbnailURL string     // Avatar URL
	ChannelID    string     // Channel ID used for subscription feedback (optional)
	BookmarkedAt *time.Time // Time the artist was followed
}

// IsBookmarked reports whether the artist is followed.
func (a *Artist) IsBookmarked() bool {
	return a.BookmarkedAt != nil
}
