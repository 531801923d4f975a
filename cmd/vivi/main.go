// Package main provides the vivi command line and daemon entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/vivizzz007/vivi-music-sub008/internal/app/libsync"
	"github.com/vivizzz007/vivi-music-sub008/internal/app/notification"
	"github.com/vivizzz007/vivi-music-sub008/internal/app/playback"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/config"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/innertube"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/logger"
)

var (
	app        = kingpin.New("vivi", "vivi music library sync and playback resolver")
	configPath = app.Flag("config", "Path to config file").Default("config/vivi.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (overrides config)").String()

	daemonCmd = app.Command("daemon", "Run periodic sync and the control API (default)").Default()

	syncCmd        = app.Command("sync", "Sync the library once")
	syncFast       = syncCmd.Flag("fast", "Fetch only the first page of each list").Bool()
	syncCategories = syncCmd.Flag("category", "Category to sync (repeatable, default all)").Enums(categoryNames()...)

	clearCmd = app.Command("clear", "Remove all synced content from the local library")

	resolveCmd      = app.Command("resolve", "Resolve a playable stream")
	resolveVideoID  = resolveCmd.Arg("video-id", "Video ID or watch URL").Required().String()
	resolvePlaylist = resolveCmd.Flag("playlist", "Playlist context (ID or URL)").String()
	resolveQuality  = resolveCmd.Flag("quality", "Audio quality (auto, very_high, high, low)").String()
	resolveMetered  = resolveCmd.Flag("metered", "Treat the network as metered").Bool()

	metadataCmd      = app.Command("metadata", "Fetch display metadata")
	metadataVideoID  = metadataCmd.Arg("video-id", "Video ID or watch URL").Required().String()
	metadataPlaylist = metadataCmd.Flag("playlist", "Playlist context (ID or URL)").String()

	likeCmd    = app.Command("like", "Like a library song and push it to the account")
	likeSongID = likeCmd.Arg("song-id", "Song ID or watch URL").Required().String()
	likeRemove = likeCmd.Flag("remove", "Remove the like instead").Bool()

	playlistCmd       = app.Command("playlist", "Edit a local playlist")
	playlistMoveCmd   = playlistCmd.Command("move", "Move a song to another position")
	playlistMoveID    = playlistMoveCmd.Arg("playlist-id", "Local playlist ID").Required().String()
	playlistMoveFrom  = playlistMoveCmd.Arg("from", "Current position").Required().Int()
	playlistMoveTo    = playlistMoveCmd.Arg("to", "New position").Required().Int()
	playlistRemoveCmd = playlistCmd.Command("remove", "Remove the song at a position")
	playlistRemoveID  = playlistRemoveCmd.Arg("playlist-id", "Local playlist ID").Required().String()
	playlistRemovePos = playlistRemoveCmd.Arg("position", "Position to remove").Required().Int()

	listenCmd   = app.Command("listen", "Stream events from a running daemon")
	listenAddr  = listenCmd.Flag("addr", "Daemon address").Default("127.0.0.1:8080").String()
	listenToken = listenCmd.Flag("token", "Admin token").Envar("VIVI_ADMIN_TOKEN").Required().String()
)

func categoryNames() []string {
	names := make([]string, len(libsync.AllCategories))
	for i, c := range libsync.AllCategories {
		names[i] = string(c)
	}
	return names
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listenCmd.FullCommand() {
		initLogger(logger.Config{Output: "stderr"})
		if err := listen(*listenAddr, *listenToken); err != nil {
			zlog.Error().Msgf("Listen error: %v", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		initLogger(logger.Config{Output: "stderr"})
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}
	initLogger(cfg.Log)
	zlog.Debug().Msgf("Loaded config from %s", *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, command, cfg); err != nil {
		zlog.Error().Msgf("%s failed: %v", command, err)
		os.Exit(1)
	}
}

func initLogger(cfg logger.Config) {
	if *verbose {
		cfg.Level = "debug"
	}
	if *logfile != "" {
		cfg.Output = "file"
		cfg.File = *logfile
	}
	if err := logger.Init(cfg); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
}

// run executes one command. Using a separate function ensures deferred
// cleanup runs even when returning with an error.
func run(ctx context.Context, command string, cfg *config.Config) error {
	svc, err := newServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	switch command {
	case daemonCmd.FullCommand():
		return runDaemon(ctx, svc)

	case syncCmd.FullCommand():
		cats := make([]libsync.Category, len(*syncCategories))
		for i, name := range *syncCategories {
			cats[i] = libsync.Category(name)
		}
		id := svc.notifier.Subscribe(notification.StreamFunc(printEvent))
		defer svc.notifier.Unsubscribe(id)
		svc.engine.Run(ctx, *syncFast, cats...)
		return nil

	case clearCmd.FullCommand():
		sum, err := svc.engine.ClearAllSyncedContent(ctx)
		if err != nil {
			return err
		}
		return printJSON(sum)

	case resolveCmd.FullCommand():
		quality := svc.quality
		if *resolveQuality != "" {
			if quality, err = playback.ParseQuality(*resolveQuality); err != nil {
				return err
			}
		}
		data, err := svc.resolver.ResolveForPlayback(ctx,
			innertube.ExtractVideoID(*resolveVideoID), innertube.ExtractPlaylistID(*resolvePlaylist), quality, *resolveMetered)
		if err != nil {
			return err
		}
		return printJSON(data)

	case metadataCmd.FullCommand():
		md, err := svc.resolver.ResolveForMetadata(ctx,
			innertube.ExtractVideoID(*metadataVideoID), innertube.ExtractPlaylistID(*metadataPlaylist))
		if err != nil {
			return err
		}
		return printJSON(md)

	case likeCmd.FullCommand():
		return svc.engine.LikeSong(ctx, innertube.ExtractVideoID(*likeSongID), !*likeRemove)

	case playlistMoveCmd.FullCommand():
		return svc.store.MovePlaylistSong(ctx, *playlistMoveID, *playlistMoveFrom, *playlistMoveTo)

	case playlistRemoveCmd.FullCommand():
		return svc.store.RemovePlaylistSong(ctx, *playlistRemoveID, *playlistRemovePos)
	}
	return fmt.Errorf("unknown command %q", command)
}

func printEvent(ev notification.Event) error {
	line := fmt.Sprintf("%-14s %-16s", ev.Kind, ev.Category)
	if ev.Kind == notification.SyncFinished {
		line += fmt.Sprintf(" pulled=%d removed=%d pushed=%d", ev.Pulled, ev.Removed, ev.Pushed)
	}
	if ev.Err != "" {
		line += " error=" + ev.Err
	}
	fmt.Println(line)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
