package playback

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/vivizzz007/vivi-music-sub008/internal/infra/innertube"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/logger"
)

// PlayerClient is the subset of the catalog client used for resolution.
type PlayerClient interface {
	Player(ctx context.Context, videoID, playlistID string, p innertube.ClientProfile, signatureTimestamp int) (*innertube.PlayerResponse, error)
	SignatureTimestamp(ctx context.Context) (int, error)
	StreamURL(ctx context.Context, videoID string, f innertube.Format) (string, error)
	IsLoggedIn() bool
}

// Config holds resolver configuration.
type Config struct {
	Main      innertube.ClientProfile   // authoritative for metadata, tried first for streams
	Metadata  innertube.ClientProfile   // used by ResolveForMetadata
	Fallbacks []innertube.ClientProfile // tried in order after Main
}

// Data is a resolved playable stream with its metadata.
type Data struct {
	VideoID          string
	Profile          string // profile that produced the stream
	Format           innertube.Format
	StreamURL        string
	ExpiresIn        time.Duration
	ExpiresAt        time.Time
	VideoDetails     *innertube.VideoDetails
	AudioConfig      *innertube.AudioConfig
	PlaybackTracking *innertube.PlaybackTracking
}

// Metadata is display metadata for a video.
type Metadata struct {
	VideoID           string
	PlayabilityStatus innertube.PlayabilityStatus
	VideoDetails      *innertube.VideoDetails
	AudioConfig       *innertube.AudioConfig
	PlaybackTracking  *innertube.PlaybackTracking
}

// Resolver turns a video ID into a playable stream, falling back across
// client profiles when one yields no usable stream.
type Resolver struct {
	client PlayerClient
	prober Prober
	config Config
	now    func() time.Time
	log    zerolog.Logger
}

// NewResolver creates a resolver.
func NewResolver(client PlayerClient, prober Prober, config Config) *Resolver {
	return &Resolver{
		client: client,
		prober: prober,
		config: config,
		now:    time.Now,
		log:    logger.Component("playback"),
	}
}

// signatureTimestamp returns the player JS timestamp or 0 when unavailable.
func (r *Resolver) signatureTimestamp(ctx context.Context) int {
	sts, err := r.client.SignatureTimestamp(ctx)
	if err != nil {
		r.log.Debug().Err(err).Msg("Signature timestamp unavailable")
		return 0
	}
	return sts
}

// candidate is a profile to try; resp is set when it was already fetched.
type candidate struct {
	profile innertube.ClientProfile
	resp    *innertube.PlayerResponse
}

// candidates lists the profiles usable for this session, main first.
// Profiles needing an account are dropped when logged out, and
// signature-locked fallbacks are dropped when no timestamp is known.
func (r *Resolver) candidates(mainResp *innertube.PlayerResponse, sts int) []candidate {
	out := []candidate{{profile: r.config.Main, resp: mainResp}}
	loggedIn := r.client.IsLoggedIn()
	for _, p := range r.config.Fallbacks {
		if p.LoginRequired && !loggedIn {
			r.log.Debug().Str("profile", p.Name).Msg("Skipping profile, login required")
			continue
		}
		if p.UseSignatureTimestamp && sts == 0 {
			r.log.Debug().Str("profile", p.Name).Msg("Skipping profile, signature timestamp unavailable")
			continue
		}
		out = append(out, candidate{profile: p})
	}
	return out
}

// ResolveForPlayback resolves a playable audio stream for videoID.
func (r *Resolver) ResolveForPlayback(ctx context.Context, videoID, playlistID string, quality Quality, metered bool) (*Data, error) {
	sts := r.signatureTimestamp(ctx)

	mainResp, err := r.client.Player(ctx, videoID, playlistID, r.config.Main, sts)
	if err != nil {
		return nil, errors.WithSecondaryError(errors.Wrapf(ErrMainProfileFailed, "video %s", videoID), err)
	}

	candidates := r.candidates(mainResp, sts)
	var (
		resp      *innertube.PlayerResponse
		profile   string
		format    *innertube.Format
		streamURL string
		expiresIn int
		accepted  bool
	)
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		last := i == len(candidates)-1
		log := r.log.With().Str("video_id", videoID).Str("profile", c.profile.Name).Logger()

		format, streamURL, expiresIn = nil, "", 0
		resp = c.resp
		if resp == nil {
			resp, err = r.client.Player(ctx, videoID, playlistID, c.profile, sts)
			if err != nil {
				log.Debug().Err(err).Msg("Player request failed")
				resp = nil
				continue
			}
		}
		profile = c.profile.Name

		if resp.PlayabilityStatus.Status != innertube.StatusOK {
			log.Debug().Str("status", resp.PlayabilityStatus.Status).Str("reason", resp.PlayabilityStatus.Reason).Msg("Video not playable")
			continue
		}
		if resp.StreamingData == nil {
			continue
		}

		format = SelectFormat(resp.StreamingData.AdaptiveFormats, quality, metered)
		if format == nil {
			log.Debug().Msg("No audio format")
			continue
		}
		streamURL, err = r.client.StreamURL(ctx, videoID, *format)
		if err != nil {
			log.Debug().Err(err).Int("itag", format.Itag).Msg("Stream url unavailable")
			streamURL = ""
			continue
		}
		n, ok := resp.StreamingData.ExpiresIn()
		if !ok {
			log.Debug().Msg("Stream has no expiry")
			continue
		}
		expiresIn = n

		if last {
			accepted = true
			break
		}
		if r.prober.Probe(ctx, streamURL) {
			accepted = true
			break
		}
		log.Debug().Int("itag", format.Itag).Msg("Stream probe failed, trying next profile")
	}

	if resp == nil {
		return nil, ErrNoPlayerResponse
	}
	if resp.PlayabilityStatus.Status != innertube.StatusOK {
		return nil, &PlayabilityError{Status: resp.PlayabilityStatus.Status, Reason: resp.PlayabilityStatus.Reason}
	}
	if !accepted {
		switch {
		case format == nil:
			return nil, ErrNoFormat
		case streamURL == "":
			return nil, ErrNoStreamURL
		default:
			return nil, ErrMissingExpiry
		}
	}

	r.log.Debug().
		Str("video_id", videoID).
		Str("profile", profile).
		Int("itag", format.Itag).
		Str("mime_type", format.MimeType).
		Int("bitrate", format.Bitrate).
		Msg("Stream resolved")

	ttl := time.Duration(expiresIn) * time.Second
	return &Data{
		VideoID:          videoID,
		Profile:          profile,
		Format:           *format,
		StreamURL:        streamURL,
		ExpiresIn:        ttl,
		ExpiresAt:        r.now().Add(ttl),
		VideoDetails:     mainResp.VideoDetails,
		AudioConfig:      mainResp.AudioConfig(),
		PlaybackTracking: mainResp.PlaybackTracking,
	}, nil
}

// ResolveForMetadata fetches display metadata for videoID using the
// metadata profile. The result carries no stream.
func (r *Resolver) ResolveForMetadata(ctx context.Context, videoID, playlistID string) (*Metadata, error) {
	sts := 0
	if r.config.Metadata.UseSignatureTimestamp {
		sts = r.signatureTimestamp(ctx)
	}
	resp, err := r.client.Player(ctx, videoID, playlistID, r.config.Metadata, sts)
	if err != nil {
		return nil, err
	}
	if resp.VideoDetails == nil {
		return nil, &PlayabilityError{Status: resp.PlayabilityStatus.Status, Reason: resp.PlayabilityStatus.Reason}
	}
	return &Metadata{
		VideoID:           videoID,
		PlayabilityStatus: resp.PlayabilityStatus,
		VideoDetails:      resp.VideoDetails,
		AudioConfig:       resp.AudioConfig(),
		PlaybackTracking:  resp.PlaybackTracking,
	}, nil
}
