// Package playlist provides the Playlist domain entity and its ordered membership.
package playlist

import (
	"slices"
	"time"

	"github.com/vivizzz007/vivi-music-sub008/internal/domain/track"
)

// Reserved remote playlist IDs that never become library playlists.
const (
	LikedSongsID = "LM" // liked songs, synced as a song category instead
	EpisodesID   = "SE" // saved episodes
)

// IsSentinel reports whether browseID is a reserved system playlist.
func IsSentinel(browseID string) bool {
	return browseID == LikedSongsID || browseID == EpisodesID
}

// Playlist represents a user playlist.
// A playlist with an empty BrowseID exists only locally.
type Playlist struct {
	ID              string     // Local playlist ID
	Name            string     // Playlist name
	BrowseID        string     // Remote playlist ID (empty for local-only playlists)
	ThumbnailURL    string     // Cover art URL
	IsEditable      bool       // Owned by the user
	BookmarkedAt    *time.Time // Time the playlist was saved
	RemoteSongCount *int       // Song count reported remotely (nil if unknown)

	PlayParams    track.Token // Opaque play endpoint parameters
	ShuffleParams track.Token // Opaque shuffle endpoint parameters
	RadioParams   track.Token // Opaque radio endpoint parameters
}

// IsRemote reports whether the playlist mirrors a remote playlist.
func (p *Playlist) IsRemote() bool {
	return p.BrowseID != ""
}

// Membership is one position of a song within a playlist.
type Membership struct {
	PlaylistID string
	SongID     string
	Position   int         // 0-based, dense within a playlist
	SetVideoID track.Token // Remote membership handle (optional)
}

// SongIDs returns the ordered song IDs of a membership list.
func SongIDs(members []Membership) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.SongID
	}
	return ids
}

// TrackIDs returns the ordered IDs of tracks.
func TrackIDs(tracks []*track.Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}

// SameOrder reports whether the membership list holds exactly ids in order.
func SameOrder(members []Membership, ids []string) bool {
	return slices.Equal(SongIDs(members), ids)
}

// FromTracks builds a dense membership list for playlistID from ordered tracks.
func FromTracks(playlistID string, tracks []*track.Track) []Membership {
	members := make([]Membership, len(tracks))
	for i, t := range tracks {
		members[i] = Membership{
			PlaylistID: playlistID,
			SongID:     t.ID,
			Position:   i,
			SetVideoID: t.SetVideoID,
		}
	}
	return members
}

// Renumber rewrites positions to 0..n-1 in slice order.
func Renumber(members []Membership) {
	for i := range members {
		members[i].Position = i
	}
}

// Move relocates the member at from to index to and renumbers.
// Out-of-range indices leave the list unchanged and return false.
func Move(members []Membership, from, to int) bool {
	if from < 0 || from >= len(members) || to < 0 || to >= len(members) {
		return false
	}
	m := members[from]
	copy(members[from:], members[from+1:])
	members = members[:len(members)-1]
	members = slices.Insert(members, to, m)
	Renumber(members)
	return true
}
