// Package lastfm provides a client for the Last.fm scrobbling API.
package lastfm

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

const (
	defaultBaseURL = "https://ws.audioscrobbler.com/2.0/"
	defaultAuthURL = "https://www.last.fm/api/auth/"
)

// ErrNoSession is returned by write calls when no session key is configured.
var ErrNoSession = errors.New("last.fm session key is not set")

// Client is a Last.fm API client.
type Client struct {
	apiKey     string
	secret     string
	baseURL    string
	authURL    string
	httpClient *http.Client

	mu         sync.RWMutex
	sessionKey string
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey     string
	Secret     string
	SessionKey string // optional; obtained through GetSession
	Timeout    time.Duration
}

// Track is one play submitted to Last.fm.
type Track struct {
	Artist    string
	Title     string
	Album     string        // optional
	Duration  time.Duration // optional
	Timestamp time.Time     // play start, required for scrobbles
}

// Session is an authenticated Last.fm session.
type Session struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// LastFMError represents an error response from Last.fm API.
type LastFMError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// APIError is a Last.fm API error returned to callers.
type APIError struct {
	Method  string
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("last.fm API error %d on %s: %s", e.Code, e.Method, e.Message)
}

// IgnoredError is returned when Last.fm accepted the request but ignored the scrobble.
type IgnoredError struct {
	Code    string
	Message string
}

func (e *IgnoredError) Error() string {
	return fmt.Sprintf("scrobble ignored (code %s): %s", e.Code, e.Message)
}

type scrobbleResponse struct {
	Scrobbles struct {
		Attr struct {
			Accepted int `json:"accepted"`
			Ignored  int `json:"ignored"`
		} `json:"@attr"`
		Scrobble struct {
			IgnoredMessage struct {
				Code string `json:"code"`
				Text string `json:"#text"`
			} `json:"ignoredMessage"`
		} `json:"scrobble"`
	} `json:"scrobbles"`
}

type sessionResponse struct {
	Session Session `json:"session"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}
	if cfg.Secret == "" {
		return nil, errors.New("last.fm shared secret is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		apiKey:     cfg.APIKey,
		secret:     cfg.Secret,
		sessionKey: cfg.SessionKey,
		baseURL:    defaultBaseURL,
		authURL:    defaultAuthURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// SetSessionKey replaces the session key used for write calls.
func (c *Client) SetSessionKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionKey = key
}

// HasSession reports whether a session key is configured.
func (c *Client) HasSession() bool {
	return c.session() != ""
}

func (c *Client) session() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionKey
}

// AuthURL returns the page where the user grants access. After approval
// Last.fm redirects to callback with a token query parameter.
func (c *Client) AuthURL(callback string) string {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	if callback != "" {
		params.Set("cb", callback)
	}
	return c.authURL + "?" + params.Encode()
}

// GetSession exchanges an authorized web token for a session and stores its key.
// Reference: https://www.last.fm/api/show/auth.getSession
func (c *Client) GetSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, errors.New("token is required")
	}
	params := url.Values{}
	params.Set("token", token)

	var resp sessionResponse
	if err := c.call(ctx, "auth.getSession", params, false, &resp); err != nil {
		return nil, err
	}
	if resp.Session.Key == "" {
		return nil, errors.New("last.fm returned an empty session key")
	}
	c.SetSessionKey(resp.Session.Key)
	return &resp.Session, nil
}

// GetMobileSession authenticates with username and password and stores the session key.
// Reference: https://www.last.fm/api/show/auth.getMobileSession
func (c *Client) GetMobileSession(ctx context.Context, username, password string) (*Session, error) {
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}
	params := url.Values{}
	params.Set("username", username)
	params.Set("password", password)

	var resp sessionResponse
	if err := c.call(ctx, "auth.getMobileSession", params, false, &resp); err != nil {
		return nil, err
	}
	c.SetSessionKey(resp.Session.Key)
	return &resp.Session, nil
}

// UpdateNowPlaying notifies Last.fm that a track started playing.
// Reference: https://www.last.fm/api/show/track.updateNowPlaying
func (c *Client) UpdateNowPlaying(ctx context.Context, t Track) error {
	params, err := trackParams(t)
	if err != nil {
		return err
	}
	return c.call(ctx, "track.updateNowPlaying", params, true, nil)
}

// Scrobble submits a completed play.
// Reference: https://www.last.fm/api/show/track.scrobble
func (c *Client) Scrobble(ctx context.Context, t Track) error {
	if t.Timestamp.IsZero() {
		return errors.New("scrobble timestamp is required")
	}
	params, err := trackParams(t)
	if err != nil {
		return err
	}
	params.Set("timestamp", strconv.FormatInt(t.Timestamp.Unix(), 10))

	var resp scrobbleResponse
	if err := c.call(ctx, "track.scrobble", params, true, &resp); err != nil {
		return err
	}
	if resp.Scrobbles.Attr.Ignored > 0 {
		msg := resp.Scrobbles.Scrobble.IgnoredMessage
		return &IgnoredError{Code: msg.Code, Message: msg.Text}
	}

	zlog.Debug().Str("artist", t.Artist).Str("track", t.Title).Msg("Scrobbled")
	return nil
}

func trackParams(t Track) (url.Values, error) {
	if t.Artist == "" || t.Title == "" {
		return nil, errors.New("artist and track are required")
	}
	params := url.Values{}
	params.Set("artist", t.Artist)
	params.Set("track", t.Title)
	if t.Album != "" {
		params.Set("album", t.Album)
	}
	if t.Duration > 0 {
		params.Set("duration", strconv.Itoa(int(t.Duration.Seconds())))
	}
	return params, nil
}

// call performs a signed POST and decodes the JSON response into out.
func (c *Client) call(ctx context.Context, method string, params url.Values, needSession bool, out any) error {
	params.Set("method", method)
	params.Set("api_key", c.apiKey)
	if needSession {
		sk := c.session()
		if sk == "" {
			return ErrNoSession
		}
		params.Set("sk", sk)
	}
	params.Set("api_sig", Sign(params, c.secret))
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(params.Encode()))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	// Check for Last.fm API errors
	var apiError LastFMError
	if err := json.Unmarshal(body, &apiError); err == nil && apiError.Error != 0 {
		return &APIError{Method: method, Code: apiError.Error, Message: apiError.Message}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Newf("last.fm %s returned HTTP %d", method, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

// Sign computes the api_sig of a request: the md5 of all parameters except
// format and callback, sorted by name and concatenated as name+value,
// followed by the shared secret.
func Sign(params url.Values, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "format" || k == "callback" || k == "api_sig" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params.Get(k))
	}
	b.WriteString(secret)

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
