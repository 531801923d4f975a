package scrobble

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vivizzz007/vivi-music-sub008/internal/app/notification"
	"github.com/vivizzz007/vivi-music-sub008/internal/domain/track"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/lastfm"
	"github.com/vivizzz007/vivi-music-sub008/internal/infra/logger"
)

// Scrobbler submits plays to a listening history service.
type Scrobbler interface {
	Scrobble(ctx context.Context, t lastfm.Track) error
	UpdateNowPlaying(ctx context.Context, t lastfm.Track) error
}

// Config holds scrobble timer configuration.
type Config struct {
	MinTrackDuration time.Duration // tracks this short or shorter never scrobble
	Percent          float64       // share of the track that must be played
	Delay            time.Duration // upper bound of the listening threshold
	UseNowPlaying    bool          // send a now-playing update when a track starts
	SubmitTimeout    time.Duration
}

// Defaults.
const (
	DefaultMinTrackDuration = 30 * time.Second
	DefaultPercent          = 0.5
	DefaultDelay            = 50 * time.Second
	defaultSubmitTimeout    = 10 * time.Second
)

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithNotifier broadcasts an event for each accepted scrobble.
func WithNotifier(n *notification.Manager) Option {
	return func(m *Manager) { m.notifier = n }
}

// Manager runs the scrobble countdown of the current track across
// play, pause and resume, and submits at most one scrobble per track start.
// Submissions run in the background; their failures are logged only.
type Manager struct {
	mu sync.Mutex

	scrobbler Scrobbler
	clock     Clock
	notifier  *notification.Manager
	config    Config
	log       zerolog.Logger

	// Current track state
	current   *track.Track
	duration  time.Duration
	startedAt time.Time // play start, sent as the scrobble timestamp
	started   bool
	state     State

	// Timer
	remaining      time.Duration
	timerStartedAt time.Time
	timerCancel    func()
	generation     uint64 // invalidates callbacks of cancelled timers

	wg sync.WaitGroup
}

// NewManager creates a scrobble manager. Zero config fields take their defaults.
func NewManager(scrobbler Scrobbler, config Config, opts ...Option) *Manager {
	if config.MinTrackDuration <= 0 {
		config.MinTrackDuration = DefaultMinTrackDuration
	}
	if config.Percent <= 0 || config.Percent > 1 {
		config.Percent = DefaultPercent
	}
	if config.Delay == 0 {
		config.Delay = DefaultDelay
	}
	if config.SubmitTimeout <= 0 {
		config.SubmitTimeout = defaultSubmitTimeout
	}

	m := &Manager{
		scrobbler: scrobbler,
		clock:     WallClock{},
		config:    config,
		log:       logger.Component("scrobble"),
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the timer state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Remaining returns the listening time left before the track scrobbles.
func (m *Manager) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateRunning {
		return max(m.remaining-m.clock.Now().Sub(m.timerStartedAt), 0)
	}
	return m.remaining
}

// Threshold returns how long a track of duration d must play before it
// scrobbles, and false if it can never scrobble.
func (m *Manager) Threshold(d time.Duration) (time.Duration, bool) {
	if d <= m.config.MinTrackDuration {
		return 0, false
	}
	threshold := time.Duration(float64(d) * m.config.Percent)
	return min(threshold, m.config.Delay), true
}

// OnSongStart starts the countdown for t. durationOverride replaces the
// track's own duration when positive.
func (m *Manager) OnSongStart(t *track.Track, durationOverride time.Duration) {
	if t == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.startLocked(t, durationOverride)
}

func (m *Manager) startLocked(t *track.Track, durationOverride time.Duration) {
	m.resetLocked()

	duration := t.Duration
	if durationOverride > 0 {
		duration = durationOverride
	}
	m.current = t
	m.duration = duration
	m.startedAt = m.clock.Now()
	m.started = true

	if m.config.UseNowPlaying {
		m.submitLocked(false)
	}

	threshold, ok := m.Threshold(duration)
	if !ok {
		m.log.Debug().Str("song_id", t.ID).Dur("duration", duration).Msg("Track too short to scrobble")
		return
	}
	if threshold <= 0 {
		m.fireLocked()
		return
	}

	m.remaining = threshold
	m.state = StateRunning
	m.startTimerLocked()
}

// OnSongPause pauses the countdown, keeping the time left.
func (m *Manager) OnSongPause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseLocked()
}

func (m *Manager) pauseLocked() {
	if m.state != StateRunning {
		return
	}
	m.stopTimerLocked()

	elapsed := m.clock.Now().Sub(m.timerStartedAt)
	m.remaining = max(m.remaining-elapsed, 0)
	m.state = StatePaused
}

// OnSongResume restarts a paused countdown for the time left.
func (m *Manager) OnSongResume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumeLocked()
}

func (m *Manager) resumeLocked() {
	if m.state != StatePaused || m.remaining <= 0 {
		return
	}
	m.state = StateRunning
	m.startTimerLocked()
}

// OnSongStop cancels the countdown and forgets the current track.
func (m *Manager) OnSongStop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// OnPlayerStateChanged is the single player integration point: playing
// starts the countdown for a new track or resumes it, not playing pauses it.
func (m *Manager) OnPlayerStateChanged(isPlaying bool, t *track.Track, durationOverride time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isPlaying {
		m.pauseLocked()
		return
	}
	if t == nil {
		return
	}
	if !m.started || m.current == nil || m.current.ID != t.ID {
		m.startLocked(t, durationOverride)
		return
	}
	m.resumeLocked()
}

// Wait blocks until in-flight submissions finish.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close stops the countdown and waits for in-flight submissions.
func (m *Manager) Close() {
	m.OnSongStop()
	m.Wait()
}

func (m *Manager) resetLocked() {
	m.stopTimerLocked()
	m.current = nil
	m.duration = 0
	m.started = false
	m.remaining = 0
	m.state = StateIdle
}

func (m *Manager) startTimerLocked() {
	m.stopTimerLocked()
	gen := m.generation
	m.timerStartedAt = m.clock.Now()
	m.timerCancel = m.clock.AfterFunc(m.remaining, func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		// A timer cancelled after it started firing must not scrobble.
		if gen != m.generation || m.state != StateRunning {
			return
		}
		m.timerCancel = nil
		m.fireLocked()
	})
}

func (m *Manager) stopTimerLocked() {
	m.generation++
	if m.timerCancel != nil {
		m.timerCancel()
		m.timerCancel = nil
	}
}

func (m *Manager) fireLocked() {
	m.state = StateFired
	m.remaining = 0
	m.submitLocked(true)
}

// submitLocked sends the current track in the background.
func (m *Manager) submitLocked(scrobble bool) {
	t := m.current
	if t == nil || m.scrobbler == nil {
		return
	}
	play := lastfm.Track{
		Artist:    t.PrimaryArtist(),
		Title:     t.Title,
		Album:     t.AlbumName,
		Duration:  m.duration,
		Timestamp: m.startedAt,
	}
	log := m.log.With().Str("song_id", t.ID).Logger()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.config.SubmitTimeout)
		defer cancel()

		if !scrobble {
			if err := m.scrobbler.UpdateNowPlaying(ctx, play); err != nil {
				log.Warn().Err(err).Msg("Failed to update now playing")
			}
			return
		}

		if err := m.scrobbler.Scrobble(ctx, play); err != nil {
			log.Warn().Err(err).Msg("Failed to scrobble")
			return
		}
		log.Info().Str("artist", play.Artist).Str("title", play.Title).Msg("Scrobbled")
		m.notifier.Broadcast(notification.Event{Kind: notification.Scrobbled})
	}()
}
