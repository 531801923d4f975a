// Package httpapi provides the daemon control API.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/vivizzz007/vivi-music-sub008/internal/app/libsync"
	"github.com/vivizzz007/vivi-music-sub008/internal/app/notification"
	"github.com/vivizzz007/vivi-music-sub008/internal/app/playback"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/track"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/logger"
)

const (
	// AdminTokenHeader is the header name for admin authentication token.
	AdminTokenHeader = "X-Admin-Token"
)

// Syncer is the subset of the sync engine exposed over the API.
type Syncer interface {
	Start(fast bool, categories ...libsync.Category) string
	Busy(c libsync.Category) bool
	LikeSong(ctx context.Context, songID string, liked bool) error
	ClearAllSyncedContent(ctx context.Context) (libsync.ClearSummary, error)
}

// Resolver resolves playable streams.
type Resolver interface {
	ResolveForPlayback(ctx context.Context, videoID, playlistID string, quality playback.Quality, metered bool) (*playback.Data, error)
	ResolveForMetadata(ctx context.Context, videoID, playlistID string) (*playback.Metadata, error)
}

// PlaylistEditor edits the members of local playlists.
type PlaylistEditor interface {
	MovePlaylistSong(ctx context.Context, playlistID string, from, to int) error
	RemovePlaylistSong(ctx context.Context, playlistID string, position int) error
}

// PlayerObserver receives player state reported by a client.
type PlayerObserver interface {
	OnPlayerStateChanged(isPlaying bool, t *track.Track, durationOverride time.Duration)
	OnSongStop()
}

// Deps holds the services behind the API. Nil services disable their routes.
type Deps struct {
	Syncer    Syncer
	Resolver  Resolver
	Playlists PlaylistEditor
	Player    PlayerObserver
	Notifier  *notification.Manager
	Quality   playback.Quality // default when a request names none
	Token     string
}

// Server serves the control API.
type Server struct {
	deps      Deps
	log       zerolog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

// NewServer creates a new Server.
func NewServer(deps Deps) *Server {
	return &Server{
		deps: deps,
		log:  logger.Component("api"),
		done: make(chan struct{}),
	}
}

// Close ends open event streams.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.logRequests)

	api := router.PathPrefix("/v1").Subrouter()
	api.Use(s.adminAuth)

	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	if s.deps.Syncer != nil {
		api.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost)
		api.HandleFunc("/library", s.handleClear).Methods(http.MethodDelete)
		api.HandleFunc("/songs/{id}/like", s.handleLike).Methods(http.MethodPost, http.MethodDelete)
	}
	if s.deps.Resolver != nil {
		api.HandleFunc("/resolve/{videoID}", s.handleResolve).Methods(http.MethodGet)
		api.HandleFunc("/metadata/{videoID}", s.handleMetadata).Methods(http.MethodGet)
	}
	if s.deps.Playlists != nil {
		api.HandleFunc("/playlists/{id}/songs/{position:[0-9]+}", s.handleMovePlaylistSong).Methods(http.MethodPatch)
		api.HandleFunc("/playlists/{id}/songs/{position:[0-9]+}", s.handleRemovePlaylistSong).Methods(http.MethodDelete)
	}
	if s.deps.Player != nil {
		api.HandleFunc("/player", s.handlePlayer).Methods(http.MethodPost)
		api.HandleFunc("/player", s.handlePlayerStop).Methods(http.MethodDelete)
	}
	return router
}

// adminAuth rejects requests that do not carry the admin token.
func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(AdminTokenHeader)
		if token == "" {
			// browsers cannot set headers on websocket upgrades
			token = r.URL.Query().Get("token")
		}
		if s.deps.Token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.deps.Token)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("Request served")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
