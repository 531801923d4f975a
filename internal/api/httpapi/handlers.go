package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"

	"github.com/vivizzz007/vivi-music-sub008/internal/app/libsync"
	"github.com/vivizzz007/vivi-music-sub008/internal/app/playback"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/track"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/innertube"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/store"
)

// StatusResponse is returned by GET /v1/status.
type StatusResponse struct {
	Busy        []string `json:"busy"`
	Subscribers int      `json:"subscribers"`
}

func (s *Server) busyCategories() []string {
	busy := []string{}
	if s.deps.Syncer == nil {
		return busy
	}
	for _, c := range libsync.AllCategories {
		if s.deps.Syncer.Busy(c) {
			busy = append(busy, string(c))
		}
	}
	return busy
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Busy: s.busyCategories()}
	if s.deps.Notifier != nil {
		resp.Subscribers = s.deps.Notifier.SubscriberCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

// SyncResponse is returned by POST /v1/sync.
type SyncResponse struct {
	RunID      string   `json:"run_id"`
	Categories []string `json:"categories"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fast, _ := strconv.ParseBool(q.Get("fast"))

	var categories []libsync.Category
	for _, name := range q["category"] {
		c, err := libsync.ParseCategory(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		categories = append(categories, c)
	}
	if len(categories) == 0 {
		categories = libsync.AllCategories
	}

	runID := s.deps.Syncer.Start(fast, categories...)
	resp := SyncResponse{RunID: runID}
	for _, c := range categories {
		resp.Categories = append(resp.Categories, string(c))
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	sum, err := s.deps.Syncer.ClearAllSyncedContent(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to clear synced content")
		writeError(w, http.StatusInternalServerError, "failed to clear synced content")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	liked := r.Method == http.MethodPost

	err := s.deps.Syncer.LikeSong(r.Context(), id, liked)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, libsync.ErrSongNotFound):
		writeError(w, http.StatusNotFound, "song not found")
	case errors.Is(err, libsync.ErrPushFailed):
		// the local change stands
		s.log.Warn().Err(err).Str("song", id).Msg("Like kept locally")
		writeError(w, http.StatusAccepted, err.Error())
	default:
		s.log.Error().Err(err).Str("song", id).Msg("Failed to update like")
		writeError(w, http.StatusInternalServerError, "failed to update like")
	}
}

// StreamResponse is returned by GET /v1/resolve/{videoID}.
type StreamResponse struct {
	VideoID   string    `json:"video_id"`
	Profile   string    `json:"profile"`
	Itag      int       `json:"itag"`
	MimeType  string    `json:"mime_type"`
	Bitrate   int       `json:"bitrate"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	Title     string    `json:"title,omitempty"`
	Author    string    `json:"author,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	quality := s.deps.Quality
	if v := q.Get("quality"); v != "" {
		parsed, err := playback.ParseQuality(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		quality = parsed
	}
	metered, _ := strconv.ParseBool(q.Get("metered"))

	videoID, playlistID := mediaIDs(r)
	data, err := s.deps.Resolver.ResolveForPlayback(r.Context(), videoID, playlistID, quality, metered)
	if err != nil {
		s.writeResolveError(w, err)
		return
	}

	resp := StreamResponse{
		VideoID:   data.VideoID,
		Profile:   data.Profile,
		Itag:      data.Format.Itag,
		MimeType:  data.Format.MimeType,
		Bitrate:   data.Format.Bitrate,
		URL:       data.StreamURL,
		ExpiresAt: data.ExpiresAt,
	}
	if data.VideoDetails != nil {
		resp.Title = data.VideoDetails.Title
		resp.Author = data.VideoDetails.Author
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	videoID, playlistID := mediaIDs(r)
	md, err := s.deps.Resolver.ResolveForMetadata(r.Context(), videoID, playlistID)
	if err != nil {
		s.writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, md)
}

// mediaIDs reads the video and playlist IDs of a resolve request. Both
// accept share URLs as well as bare IDs.
func mediaIDs(r *http.Request) (videoID, playlistID string) {
	return innertube.ExtractVideoID(mux.Vars(r)["videoID"]), innertube.ExtractPlaylistID(r.URL.Query().Get("playlist"))
}

func (s *Server) writeResolveError(w http.ResponseWriter, err error) {
	var pe *playback.PlayabilityError
	if errors.As(err, &pe) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  "not playable",
			"status": pe.Status,
			"reason": pe.Reason,
		})
		return
	}
	s.log.Warn().Err(err).Msg("Resolution failed")
	writeError(w, http.StatusBadGateway, err.Error())
}

// MoveRequest is the body of PATCH /v1/playlists/{id}/songs/{position}.
type MoveRequest struct {
	To *int `json:"to"`
}

func (s *Server) handleMovePlaylistSong(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.To == nil {
		writeError(w, http.StatusBadRequest, "body must name the target position in \"to\"")
		return
	}
	vars := mux.Vars(r)
	from, _ := strconv.Atoi(vars["position"])
	s.writePlaylistEdit(w, vars["id"], s.deps.Playlists.MovePlaylistSong(r.Context(), vars["id"], from, *req.To))
}

func (s *Server) handleRemovePlaylistSong(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	position, _ := strconv.Atoi(vars["position"])
	s.writePlaylistEdit(w, vars["id"], s.deps.Playlists.RemovePlaylistSong(r.Context(), vars["id"], position))
}

func (s *Server) writePlaylistEdit(w http.ResponseWriter, playlistID string, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, store.ErrPlaylistNotFound):
		writeError(w, http.StatusNotFound, "playlist not found")
	case errors.Is(err, store.ErrRemotePlaylist):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrInvalidPosition):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Str("playlist", playlistID).Msg("Failed to edit playlist")
		writeError(w, http.StatusInternalServerError, "failed to edit playlist")
	}
}

// PlayerState is the body of POST /v1/player.
type PlayerState struct {
	Playing             bool   `json:"playing"`
	VideoID             string `json:"video_id"`
	Title               string `json:"title"`
	Artist              string `json:"artist"`
	Album               string `json:"album"`
	DurationSec         int    `json:"duration_sec"`
	DurationOverrideSec int    `json:"duration_override_sec"`
}

func (p PlayerState) track() *track.Track {
	if p.VideoID == "" {
		return nil
	}
	t := &track.Track{
		ID:        p.VideoID,
		Title:     p.Title,
		AlbumName: p.Album,
		Duration:  time.Duration(p.DurationSec) * time.Second,
	}
	if p.Artist != "" {
		t.Artists = []track.ArtistRef{{Name: p.Artist}}
	}
	return t
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	var st PlayerState
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		writeError(w, http.StatusBadRequest, "invalid player state")
		return
	}
	s.deps.Player.OnPlayerStateChanged(st.Playing, st.track(), time.Duration(st.DurationOverrideSec)*time.Second)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlayerStop(w http.ResponseWriter, r *http.Request) {
	s.deps.Player.OnSongStop()
	w.WriteHeader(http.StatusNoContent)
}
