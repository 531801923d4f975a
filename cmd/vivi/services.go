package main

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/vivizzz007/vivi-music-sub008/internal/app/libsync"
	"github.com/vivizzz007/vivi-music-sub008/internal/app/notification"
	"github.com/vivizzz007/vivi-music-sub008/internal/app/playback"
	"github.com/vivizzz007/vivi-music-sub008/internal/app/scrobble"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/config"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/innertube"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/lastfm"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/store"
)

// services holds the wired application components.
type services struct {
	cfg       *config.Config
	client    *innertube.Client
	store     *store.DB
	notifier  *notification.Manager
	engine    *libsync.Engine
	resolver  *playback.Resolver
	quality   playback.Quality
	scrobbler *scrobble.Manager // nil unless scrobbling is enabled
}

func newServices(ctx context.Context, cfg *config.Config) (*services, error) {
	itCfg := innertube.Config{
		BaseURL:           cfg.Innertube.BaseURL,
		Language:          cfg.Innertube.Language,
		Region:            cfg.Innertube.Region,
		Cookie:            cfg.Innertube.Cookie,
		VisitorData:       cfg.Innertube.VisitorData,
		DataSyncID:        cfg.Innertube.DataSyncID,
		RequestsPerSecond: cfg.Innertube.RequestsPerSecond,
		Burst:             cfg.Innertube.Burst,
		Timeout:           cfg.Innertube.Timeout(),
		MaxRetries:        cfg.Innertube.MaxRetries,
	}
	if o := cfg.Innertube.OAuth; o.Enabled() {
		itCfg.TokenSource = innertube.NewTokenSource(ctx, o.ClientID, o.ClientSecret, o.RefreshToken, o.TokenURL)
	}
	client, err := innertube.New(itCfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create catalog client")
	}

	profiles := innertube.DefaultProfiles()
	if err := profiles.ApplyOverrides(cfg.Innertube.ProfileOverrides); err != nil {
		return nil, err
	}
	named, err := profiles.Lookup(append([]string{cfg.Playback.MainProfile, cfg.Playback.MetadataProfile}, cfg.Playback.FallbackProfiles...)...)
	if err != nil {
		return nil, errors.Wrap(err, "invalid playback profiles")
	}
	quality, err := playback.ParseQuality(cfg.Playback.Quality)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open store")
	}

	s := &services{
		cfg:      cfg,
		client:   client,
		store:    db,
		notifier: notification.NewManager(),
		quality:  quality,
	}
	s.engine = libsync.NewEngine(client, db,
		libsync.WithNotifier(s.notifier),
		libsync.WithMaxPages(cfg.Sync.MaxPages),
		libsync.WithAccount(client.Identity()),
	)
	s.resolver = playback.NewResolver(client,
		playback.NewHTTPProber(client.HTTPClient(), cfg.Playback.ProbeTimeout()),
		playback.Config{Main: named[0], Metadata: named[1], Fallbacks: named[2:]},
	)

	if cfg.Scrobble.Enabled {
		fm, err := lastfm.New(lastfm.Config{
			APIKey:     cfg.Scrobble.APIKey,
			Secret:     cfg.Scrobble.Secret,
			SessionKey: cfg.Scrobble.SessionKey,
		})
		if err != nil {
			db.Close()
			return nil, errors.Wrap(err, "failed to create Last.fm client")
		}
		s.scrobbler = scrobble.NewManager(fm, scrobble.Config{
			MinTrackDuration: cfg.Scrobble.MinTrackDuration(),
			Percent:          cfg.Scrobble.Percent,
			Delay:            cfg.Scrobble.Delay(),
			UseNowPlaying:    cfg.Scrobble.UseNowPlaying,
		}, scrobble.WithNotifier(s.notifier))
	}

	if !cfg.Authenticated() {
		zlog.Warn().Msg("No account session configured, library sync will fail")
	}
	return s, nil
}

// Close stops background work and releases the store.
func (s *services) Close() {
	s.engine.Close()
	if s.scrobbler != nil {
		s.scrobbler.Close()
	}
	s.notifier.Close()
	if err := s.store.Close(); err != nil {
		zlog.Error().Err(err).Msg("Failed to close store")
	}
}
