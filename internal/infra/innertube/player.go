package innertube

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Playability statuses.
const (
	StatusOK            = "OK"
	StatusLoginRequired = "LOGIN_REQUIRED"
	StatusUnplayable    = "UNPLAYABLE"
	StatusError         = "ERROR"
)

// PlayerResponse is the response of the player endpoint.
type PlayerResponse struct {
	ResponseContext   ResponseContext   `json:"responseContext"`
	PlayabilityStatus PlayabilityStatus `json:"playabilityStatus"`
	PlayerConfig      *struct {
		AudioConfig *AudioConfig `json:"audioConfig,omitempty"`
	} `json:"playerConfig,omitempty"`
	StreamingData    *StreamingData    `json:"streamingData,omitempty"`
	VideoDetails     *VideoDetails     `json:"videoDetails,omitempty"`
	PlaybackTracking *PlaybackTracking `json:"playbackTracking,omitempty"`
}

// AudioConfig returns the loudness configuration or nil.
func (r *PlayerResponse) AudioConfig() *AudioConfig {
	if r.PlayerConfig == nil {
		return nil
	}
	return r.PlayerConfig.AudioConfig
}

// PlayabilityStatus tells whether the video can be played by this client.
type PlayabilityStatus struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// AudioConfig holds loudness normalization data.
type AudioConfig struct {
	LoudnessDB           *float64 `json:"loudnessDb,omitempty"`
	PerceptualLoudnessDB *float64 `json:"perceptualLoudnessDb,omitempty"`
}

// StreamingData lists the available streams.
type StreamingData struct {
	Formats          []Format `json:"formats,omitempty"`
	AdaptiveFormats  []Format `json:"adaptiveFormats,omitempty"`
	ExpiresInSeconds string   `json:"expiresInSeconds,omitempty"`
}

// ExpiresIn returns the stream URL lifetime in seconds, or 0 and false when absent.
func (s *StreamingData) ExpiresIn() (int, bool) {
	if s == nil || s.ExpiresInSeconds == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s.ExpiresInSeconds)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Format is one stream variant.
type Format struct {
	Itag             int         `json:"itag"`
	URL              string      `json:"url,omitempty"`
	SignatureCipher  string      `json:"signatureCipher,omitempty"`
	MimeType         string      `json:"mimeType"`
	Bitrate          int         `json:"bitrate"`
	AverageBitrate   int         `json:"averageBitrate,omitempty"`
	ContentLength    string      `json:"contentLength,omitempty"`
	AudioQuality     string      `json:"audioQuality,omitempty"`
	AudioSampleRate  string      `json:"audioSampleRate,omitempty"`
	AudioChannels    int         `json:"audioChannels,omitempty"`
	ApproxDurationMs string      `json:"approxDurationMs,omitempty"`
	LoudnessDB       *float64    `json:"loudnessDb,omitempty"`
	AudioTrack       *AudioTrack `json:"audioTrack,omitempty"`
}

// AudioTrack describes the language track of a multi-language stream.
type AudioTrack struct {
	DisplayName    string `json:"displayName"`
	ID             string `json:"id"`
	AudioIsDefault bool   `json:"audioIsDefault"`
}

// IsAudio reports whether the format is audio-only.
func (f *Format) IsAudio() bool {
	return strings.HasPrefix(f.MimeType, "audio/")
}

// IsOriginal reports whether the format carries the original (not dubbed) audio.
func (f *Format) IsOriginal() bool {
	return f.AudioTrack == nil || f.AudioTrack.AudioIsDefault
}

// IsOpus reports whether the format is an Opus/WebM stream.
func (f *Format) IsOpus() bool {
	return strings.HasPrefix(f.MimeType, "audio/webm")
}

// VideoDetails describes the video.
type VideoDetails struct {
	VideoID        string        `json:"videoId"`
	Title          string        `json:"title"`
	Author         string        `json:"author"`
	ChannelID      string        `json:"channelId"`
	LengthSeconds  string        `json:"lengthSeconds"`
	MusicVideoType string        `json:"musicVideoType,omitempty"`
	ViewCount      string        `json:"viewCount,omitempty"`
	Thumbnail      ThumbnailList `json:"thumbnail"`
}

// PlaybackTracking holds the reporting URLs for playback statistics.
type PlaybackTracking struct {
	VideostatsPlaybackURL  *struct{ BaseURL string } `json:"videostatsPlaybackUrl,omitempty"`
	VideostatsWatchtimeURL *struct{ BaseURL string } `json:"videostatsWatchtimeUrl,omitempty"`
	AtrURL                 *struct{ BaseURL string } `json:"atrUrl,omitempty"`
}

// Player requests the player response for a video as the given client profile.
// signatureTimestamp is sent only when the profile uses one and it is positive.
func (c *Client) Player(ctx context.Context, videoID, playlistID string, p ClientProfile, signatureTimestamp int) (*PlayerResponse, error) {
	body := map[string]any{
		"videoId":        videoID,
		"contentCheckOk": true,
		"racyCheckOk":    true,
	}
	if playlistID != "" {
		body["playlistId"] = playlistID
	}
	if p.UseSignatureTimestamp && signatureTimestamp > 0 {
		body["playbackContext"] = map[string]any{
			"contentPlaybackContext": map[string]any{
				"signatureTimestamp": signatureTimestamp,
			},
		}
	}

	var resp PlayerResponse
	if err := c.post(ctx, "player", nil, p, body, &resp); err != nil {
		return nil, errors.Wrapf(err, "failed to get player response for %s as %s", videoID, p.Name)
	}
	return &resp, nil
}

// Decipherer turns a signatureCipher format into a playable URL.
type Decipherer interface {
	Decipher(ctx context.Context, videoID string, f Format) (string, error)
}

// ErrCipherUnsupported is returned for ciphered formats when no Decipherer is configured.
var ErrCipherUnsupported = errors.New("format is ciphered and no decipherer is configured")

// StreamURL returns the playable URL of a format.
func (c *Client) StreamURL(ctx context.Context, videoID string, f Format) (string, error) {
	if f.URL != "" {
		return f.URL, nil
	}
	if f.SignatureCipher == "" {
		return "", errors.Newf("format %d has no url", f.Itag)
	}
	if c.decipherer == nil {
		return "", ErrCipherUnsupported
	}
	u, err := c.decipherer.Decipher(ctx, videoID, f)
	if err != nil {
		return "", errors.Wrapf(err, "failed to decipher format %d", f.Itag)
	}
	return u, nil
}

var (
	playerIDPattern           = regexp.MustCompile(`player\\?/([0-9a-fA-F]{8})\\?/`)
	signatureTimestampPattern = regexp.MustCompile(`(?:signatureTimestamp|sts)\s*:\s*(\d{5})`)
)

type signatureTimestampCache struct {
	playerID  string
	timestamp int
}

// SignatureTimestamp returns the signature timestamp of the current player JS.
// The value is cached per player version.
func (c *Client) SignatureTimestamp(ctx context.Context) (int, error) {
	api, err := c.fetchText(ctx, c.playerURL+"/iframe_api")
	if err != nil {
		return 0, err
	}
	m := playerIDPattern.FindStringSubmatch(api)
	if m == nil {
		return 0, errors.New("player id not found in iframe_api")
	}
	playerID := m[1]

	c.mu.RLock()
	cached := c.sts
	c.mu.RUnlock()
	if cached.playerID == playerID {
		return cached.timestamp, nil
	}

	js, err := c.fetchText(ctx, c.playerURL+"/s/player/"+playerID+"/player_ias.vflset/en_US/base.js")
	if err != nil {
		return 0, err
	}
	m = signatureTimestampPattern.FindStringSubmatch(js)
	if m == nil {
		return 0, errors.Newf("signature timestamp not found in player %s", playerID)
	}
	sts, _ := strconv.Atoi(m[1])

	c.mu.Lock()
	c.sts = signatureTimestampCache{playerID: playerID, timestamp: sts}
	c.mu.Unlock()

	zlog.Debug().Str("player_id", playerID).Int("sts", sts).Msg("Signature timestamp updated")
	return sts, nil
}

func (c *Client) fetchText(ctx context.Context, u string) (string, error) {
	var text string
	err := c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return errors.Wrap(err, "failed to create request")
		}
		req.Header.Set("User-Agent", desktopUserAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return errors.Wrapf(err, "failed to fetch %s", u)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "failed to read response")
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &HTTPError{Endpoint: u, StatusCode: resp.StatusCode, Body: truncate(string(data), 200)}
		}
		text = string(data)
		return nil
	})
	return text, err
}
