// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vivizzz007/vivi-music-sub008/internal/infra/logger"
)

// Config represents the application configuration.
type Config struct {
	Log       logger.Config   `yaml:"log"`
	Innertube InnertubeConfig `yaml:"innertube"`
	Store     StoreConfig     `yaml:"store"`
	Sync      SyncConfig      `yaml:"sync"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Scrobble  ScrobbleConfig  `yaml:"scrobble"`
	Server    ServerConfig    `yaml:"server"`
}

// ServerConfig represents the daemon control API configuration.
type ServerConfig struct {
	Addr       string      `yaml:"addr"` // empty disables the API
	AdminToken string      `yaml:"admin_token" validate:"required_with=Addr"`
	Hooks      HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// InnertubeConfig represents remote catalog client configuration.
type InnertubeConfig struct {
	BaseURL           string  `yaml:"base_url" default:"https://music.youtube.com/youtubei/v1/" validate:"url"`
	Language          string  `yaml:"hl" default:"en"`
	Region            string  `yaml:"gl" default:"US" validate:"len=2"`
	Cookie            string  `yaml:"cookie"`
	VisitorData       string  `yaml:"visitor_data"`
	DataSyncID        string  `yaml:"data_sync_id"`
	RequestsPerSecond float64 `yaml:"requests_per_second" default:"5" validate:"gt=0,lte=50"`
	Burst             int     `yaml:"burst" default:"3" validate:"gte=1"`
	TimeoutSec        int     `yaml:"timeout_sec" default:"15" validate:"gte=1,lte=120"`
	MaxRetries        int     `yaml:"max_retries" default:"3" validate:"gte=0,lte=10"`

	OAuth OAuthConfig `yaml:"oauth"`

	// ProfileOverrides patches built-in client profiles by name,
	// e.g. {"IOS": {"client_version": "20.10.4"}}.
	ProfileOverrides map[string]map[string]any `yaml:"profile_overrides"`
}

// OAuthConfig represents an OAuth2 refresh-token session.
type OAuthConfig struct {
	ClientID     string `yaml:"client_id" validate:"required_with=RefreshToken"`
	ClientSecret string `yaml:"client_secret" validate:"required_with=RefreshToken"`
	RefreshToken string `yaml:"refresh_token"`
	TokenURL     string `yaml:"token_url" default:"https://oauth2.googleapis.com/token" validate:"url"`
}

// Enabled reports whether an OAuth session is configured.
func (c OAuthConfig) Enabled() bool {
	return c.RefreshToken != ""
}

// Timeout returns the HTTP timeout.
func (c InnertubeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// StoreConfig represents local store configuration.
type StoreConfig struct {
	Path string `yaml:"path" default:"vivi.db" validate:"required"`
}

// SyncConfig represents sync engine configuration.
type SyncConfig struct {
	MaxPages    int  `yaml:"max_pages" default:"50" validate:"gte=1"`
	IntervalMin int  `yaml:"interval_min" default:"30" validate:"gte=1"`
	FastOnStart bool `yaml:"fast_on_start"`
}

// Interval returns the periodic sync interval.
func (c SyncConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMin) * time.Minute
}

// PlaybackConfig represents playback resolution configuration.
type PlaybackConfig struct {
	Quality          string   `yaml:"quality" default:"auto" validate:"oneof=auto very_high high low"`
	MainProfile      string   `yaml:"main_profile" default:"WEB_REMIX" validate:"required"`
	MetadataProfile  string   `yaml:"metadata_profile" default:"WEB_REMIX" validate:"required"`
	FallbackProfiles []string `yaml:"fallback_profiles" default:"[\"TVHTML5_SIMPLY_EMBEDDED_PLAYER\",\"TVHTML5\",\"IOS\",\"ANDROID_VR\",\"WEB_CREATOR\"]"`
	ProbeTimeoutSec  int      `yaml:"probe_timeout_sec" default:"5" validate:"gte=1,lte=60"`
}

// ProbeTimeout returns the stream reachability probe timeout.
func (c PlaybackConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSec) * time.Second
}

// ScrobbleConfig represents scrobbling configuration.
type ScrobbleConfig struct {
	Enabled       bool    `yaml:"enabled"`
	APIKey        string  `yaml:"api_key" validate:"required_if=Enabled true"`
	Secret        string  `yaml:"secret" validate:"required_if=Enabled true"`
	SessionKey    string  `yaml:"session_key" validate:"required_if=Enabled true"`
	UseNowPlaying bool    `yaml:"use_now_playing"`
	MinTrackSec   int     `yaml:"min_track_sec" default:"30" validate:"gte=1"` // 0 or unset uses the default
	Percent       float64 `yaml:"percent" default:"0.5" validate:"gt=0,lte=1"`
	DelaySec      int     `yaml:"delay_sec" default:"50" validate:"gte=1"` // 0 or unset uses the default
}

// MinTrackDuration returns the minimum scrobble-eligible track length.
func (c ScrobbleConfig) MinTrackDuration() time.Duration {
	return time.Duration(c.MinTrackSec) * time.Second
}

// Delay returns the absolute cap on the scrobble threshold.
func (c ScrobbleConfig) Delay() time.Duration {
	return time.Duration(c.DelaySec) * time.Second
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses YAML configuration data, then applies environment overrides,
// defaults and validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	envs := []struct {
		key string
		dst *string
	}{
		{"YTM_COOKIE", &c.Innertube.Cookie},
		{"YTM_VISITOR_DATA", &c.Innertube.VisitorData},
		{"YTM_OAUTH_CLIENT_ID", &c.Innertube.OAuth.ClientID},
		{"YTM_OAUTH_CLIENT_SECRET", &c.Innertube.OAuth.ClientSecret},
		{"YTM_OAUTH_REFRESH_TOKEN", &c.Innertube.OAuth.RefreshToken},
		{"LASTFM_API_KEY", &c.Scrobble.APIKey},
		{"LASTFM_SECRET", &c.Scrobble.Secret},
		{"LASTFM_SESSION_KEY", &c.Scrobble.SessionKey},
		{"VIVI_ADMIN_TOKEN", &c.Server.AdminToken},
	}
	for _, e := range envs {
		if v := os.Getenv(e.key); v != "" {
			*e.dst = v
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Innertube.Cookie != "" && c.Innertube.OAuth.Enabled() {
		return errors.New("innertube.cookie and innertube.oauth are mutually exclusive")
	}

	return nil
}

// Authenticated reports whether a remote account session is configured.
func (c *Config) Authenticated() bool {
	return c.Innertube.Cookie != "" || c.Innertube.OAuth.Enabled()
}
