package main

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/vivizzz007/vivi-music-sub008/internal/api/httpapi"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/config"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/logger"
)

// runDaemon syncs periodically and serves the control API until ctx is done.
func runDaemon(ctx context.Context, svc *services) error {
	cfg := svc.cfg
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := config.Watch(ctx, *configPath, func(c *config.Config) {
			if *verbose {
				return
			}
			logger.SetLevel(c.Log.Level)
		})
		if err != nil {
			zlog.Warn().Err(err).Msg("Config reload disabled")
		}
		return nil
	})

	g.Go(func() error {
		svc.engine.RunAllSyncs(cfg.Sync.FastOnStart)
		ticker := time.NewTicker(cfg.Sync.Interval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				zlog.Info().Msg("Starting periodic sync")
				svc.engine.RunAllSyncs(false)
			}
		}
	})

	if cfg.Server.Addr == "" {
		zlog.Info().Msg("Control API disabled")
		return g.Wait()
	}

	deps := httpapi.Deps{
		Syncer:    svc.engine,
		Resolver:  svc.resolver,
		Playlists: svc.store,
		Notifier:  svc.notifier,
		Quality:   svc.quality,
		Token:     cfg.Server.AdminToken,
	}
	if svc.scrobbler != nil {
		deps.Player = svc.scrobbler
	}
	api := httpapi.NewServer(deps)

	// h2c serves HTTP/2 cleartext for clients that keep one connection open.
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(api.Handler(), &http2.Server{}),
	}

	g.Go(func() error {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server error")
		}
		return nil
	})

	g.Go(func() error {
		// Give the server a moment to start listening
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(100 * time.Millisecond):
		}
		executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

		<-ctx.Done()
		zlog.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Close event streams first so Shutdown does not wait on them
		api.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zlog.Error().Msgf("Failed to shutdown server: %v", err)
		}
		zlog.Info().Msg("Server stopped")
		executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")
		return nil
	})

	return g.Wait()
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
