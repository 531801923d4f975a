package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("store:\n  path: /tmp/vivi.db\n"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/vivi.db", cfg.Store.Path)
	assert.Equal(t, "https://music.youtube.com/youtubei/v1/", cfg.Innertube.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Innertube.Timeout())
	assert.Equal(t, 50, cfg.Sync.MaxPages)
	assert.Equal(t, 30*time.Minute, cfg.Sync.Interval())
	assert.Equal(t, "auto", cfg.Playback.Quality)
	assert.Equal(t, "WEB_REMIX", cfg.Playback.MainProfile)
	assert.NotEmpty(t, cfg.Playback.FallbackProfiles)
	assert.Equal(t, 30*time.Second, cfg.Scrobble.MinTrackDuration())
	assert.Equal(t, 0.5, cfg.Scrobble.Percent)
	assert.Equal(t, 50*time.Second, cfg.Scrobble.Delay())
	assert.False(t, cfg.Authenticated())
}

func TestParse_ZeroScrobbleTimesUseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("scrobble:\n  min_track_sec: 0\n  delay_sec: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Scrobble.MinTrackDuration())
	assert.Equal(t, 50*time.Second, cfg.Scrobble.Delay())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		errMsg  string
	}{
		{
			name: "scrobble enabled with credentials",
			yaml: "scrobble:\n  enabled: true\n  api_key: k\n  secret: s\n  session_key: sk\n",
		},
		{
			name:    "scrobble enabled without session key",
			yaml:    "scrobble:\n  enabled: true\n  api_key: k\n  secret: s\n",
			wantErr: true,
			errMsg:  "SessionKey",
		},
		{
			name:    "percent out of range",
			yaml:    "scrobble:\n  percent: 1.5\n",
			wantErr: true,
			errMsg:  "Percent",
		},
		{
			name:    "negative scrobble delay",
			yaml:    "scrobble:\n  delay_sec: -1\n",
			wantErr: true,
			errMsg:  "DelaySec",
		},
		{
			name:    "negative minimum track length",
			yaml:    "scrobble:\n  min_track_sec: -5\n",
			wantErr: true,
			errMsg:  "MinTrackSec",
		},
		{
			name:    "unknown quality",
			yaml:    "playback:\n  quality: ultra\n",
			wantErr: true,
			errMsg:  "Quality",
		},
		{
			name:    "oauth without client",
			yaml:    "innertube:\n  oauth:\n    refresh_token: r\n",
			wantErr: true,
			errMsg:  "ClientID",
		},
		{
			name:    "server without admin token",
			yaml:    "server:\n  addr: \":8080\"\n",
			wantErr: true,
			errMsg:  "AdminToken",
		},
		{
			name: "server with admin token",
			yaml: "server:\n  addr: \":8080\"\n  admin_token: t\n",
		},
		{
			name:    "cookie and oauth together",
			yaml:    "innertube:\n  cookie: SAPISID=x\n  oauth:\n    client_id: c\n    client_secret: s\n    refresh_token: r\n",
			wantErr: true,
			errMsg:  "mutually exclusive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scrobble:\n  enabled: true\n  api_key: file-key\n  secret: s\n"), 0o600))

	t.Setenv("LASTFM_API_KEY", "env-key")
	t.Setenv("LASTFM_SESSION_KEY", "env-session")
	t.Setenv("YTM_COOKIE", "SAPISID=abc")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Scrobble.APIKey)
	assert.Equal(t, "env-session", cfg.Scrobble.SessionKey)
	assert.Equal(t, "SAPISID=abc", cfg.Innertube.Cookie)
	assert.True(t, cfg.Authenticated())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
