package innertube

import (
	"net/url"
	"strings"
)

// ExtractVideoID extracts the video ID from a watch URL, short URL or bare ID.
func ExtractVideoID(input string) string {
	input = strings.TrimSpace(input)
	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		return input
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	// https://youtu.be/VIDEO_ID
	if strings.HasSuffix(u.Host, "youtu.be") {
		return strings.Trim(u.Path, "/")
	}
	return input
}

// ExtractPlaylistID extracts the playlist ID from a playlist or watch URL,
// a "VL"-prefixed browse ID or a bare ID.
func ExtractPlaylistID(input string) string {
	input = strings.TrimSpace(input)
	u, err := url.Parse(input)
	if err == nil && u.Host != "" {
		if list := u.Query().Get("list"); list != "" {
			return list
		}
		if strings.HasPrefix(u.Path, "/browse/") {
			input = strings.TrimPrefix(u.Path, "/browse/")
		}
	}
	return strings.TrimPrefix(input, "VL")
}
