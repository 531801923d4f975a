// Package innertube provides a client for the YouTube Music internal API.
package innertube

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL   = "https://music.youtube.com/youtubei/v1/"
	defaultPlayerURL = "https://www.youtube.com"
)

// Config represents innertube client configuration.
type Config struct {
	BaseURL     string // API base URL (ends with "/")
	PlayerURL   string // host serving iframe_api and player JS
	Language    string // hl
	Region      string // gl
	Cookie      string // browser cookie header of a signed-in session
	VisitorData string
	DataSyncID  string

	// TokenSource authenticates with OAuth2 bearer tokens instead of a cookie.
	TokenSource oauth2.TokenSource

	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration

	// Decipherer resolves signatureCipher formats. Optional.
	Decipherer Decipherer
}

// Client is a YouTube Music innertube API client.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	playerURL   string
	hl, gl      string
	cookie      string
	sapisid     string
	dataSyncID  string
	tokenSource oauth2.TokenSource
	limiter     *rate.Limiter
	maxRetries  int
	retryDelay  time.Duration
	decipherer  Decipherer

	mu          sync.RWMutex
	visitorData string
	sts         signatureTimestampCache
}

// New creates a new innertube client.
func New(cfg Config) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cookie jar")
	}

	var sapisid string
	if cfg.Cookie != "" {
		cookies, err := http.ParseCookie(cfg.Cookie)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse cookie")
		}
		for _, c := range cookies {
			if c.Name == "SAPISID" || (sapisid == "" && c.Name == "__Secure-3PAPISID") {
				sapisid = c.Value
			}
		}
		if sapisid == "" {
			return nil, errors.New("cookie has no SAPISID, not a signed-in session")
		}
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.PlayerURL == "" {
		cfg.PlayerURL = defaultPlayerURL
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Region == "" {
		cfg.Region = "US"
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	return &Client{
		httpClient:  &http.Client{Jar: jar, Timeout: cfg.Timeout},
		baseURL:     cfg.BaseURL,
		playerURL:   strings.TrimRight(cfg.PlayerURL, "/"),
		hl:          cfg.Language,
		gl:          cfg.Region,
		cookie:      cfg.Cookie,
		sapisid:     sapisid,
		dataSyncID:  cfg.DataSyncID,
		tokenSource: cfg.TokenSource,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		decipherer:  cfg.Decipherer,
		visitorData: cfg.VisitorData,
	}, nil
}

// NewTokenSource returns a refreshing OAuth2 token source for a stored refresh token.
func NewTokenSource(ctx context.Context, clientID, clientSecret, refreshToken, tokenURL string) oauth2.TokenSource {
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		Scopes:       []string{"https://www.googleapis.com/auth/youtube"},
	}
	return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
}

// HTTPClient returns the shared HTTP client, for callers probing stream URLs.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// IsLoggedIn reports whether requests carry an account session.
func (c *Client) IsLoggedIn() bool {
	return c.tokenSource != nil || c.sapisid != ""
}

// Identity returns the account data sync ID when signed in, else the visitor data.
func (c *Client) Identity() string {
	if c.IsLoggedIn() && c.dataSyncID != "" {
		return c.dataSyncID
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.visitorData
}

// HTTPError is a non-2xx API response.
type HTTPError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("innertube %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

type clientInfo struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	OSName            string `json:"osName,omitempty"`
	OSVersion         string `json:"osVersion,omitempty"`
	DeviceMake        string `json:"deviceMake,omitempty"`
	DeviceModel       string `json:"deviceModel,omitempty"`
	AndroidSDKVersion int    `json:"androidSdkVersion,omitempty"`
	UserAgent         string `json:"userAgent,omitempty"`
	HL                string `json:"hl"`
	GL                string `json:"gl"`
	VisitorData       string `json:"visitorData,omitempty"`
}

type requestContext struct {
	Client clientInfo `json:"client"`
	User   *struct {
		OnBehalfOfUser string `json:"onBehalfOfUser,omitempty"`
	} `json:"user,omitempty"`
	ThirdParty *struct {
		EmbedURL string `json:"embedUrl"`
	} `json:"thirdParty,omitempty"`
}

func (c *Client) requestContext(p ClientProfile) requestContext {
	c.mu.RLock()
	visitorData := c.visitorData
	c.mu.RUnlock()

	rc := requestContext{
		Client: clientInfo{
			ClientName:        p.ClientName,
			ClientVersion:     p.ClientVersion,
			OSName:            p.OSName,
			OSVersion:         p.OSVersion,
			DeviceMake:        p.DeviceMake,
			DeviceModel:       p.DeviceModel,
			AndroidSDKVersion: p.AndroidSDKVersion,
			UserAgent:         p.UserAgent,
			HL:                c.hl,
			GL:                c.gl,
			VisitorData:       visitorData,
		},
	}
	if p.LoginSupported && c.IsLoggedIn() && c.dataSyncID != "" {
		rc.User = &struct {
			OnBehalfOfUser string `json:"onBehalfOfUser,omitempty"`
		}{OnBehalfOfUser: c.dataSyncID}
	}
	if p.IsEmbedded {
		rc.ThirdParty = &struct {
			EmbedURL string `json:"embedUrl"`
		}{EmbedURL: "https://www.youtube.com/"}
	}
	return rc
}

// post sends body (with the context field filled in) to endpoint and decodes the response into out.
func (c *Client) post(ctx context.Context, endpoint string, query url.Values, p ClientProfile, body map[string]any, out any) error {
	body["context"] = c.requestContext(p)
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to encode request")
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("prettyPrint", "false")
	u := c.baseURL + endpoint + "?" + query.Encode()

	return c.retry(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
		if err != nil {
			return errors.Wrap(err, "failed to create request")
		}
		if err := c.setHeaders(req, p); err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return errors.Wrapf(err, "innertube %s request failed", endpoint)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "failed to read response")
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &HTTPError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: truncate(string(data), 200)}
		}

		var rc struct {
			ResponseContext ResponseContext `json:"responseContext"`
		}
		if json.Unmarshal(data, &rc) == nil && rc.ResponseContext.VisitorData != "" {
			c.rememberVisitorData(rc.ResponseContext.VisitorData)
		}

		if out == nil {
			return nil
		}
		return errors.Wrapf(json.Unmarshal(data, out), "failed to decode %s response", endpoint)
	})
}

func (c *Client) setHeaders(req *http.Request, p ClientProfile) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Format-Version", "1")
	req.Header.Set("X-YouTube-Client-Name", p.ClientID)
	req.Header.Set("X-YouTube-Client-Version", p.ClientVersion)
	req.Header.Set("X-Origin", origin)
	req.Header.Set("Referer", origin+"/")
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}

	c.mu.RLock()
	if c.visitorData != "" {
		req.Header.Set("X-Goog-Visitor-Id", c.visitorData)
	}
	c.mu.RUnlock()

	if !p.LoginSupported {
		return nil
	}
	switch {
	case c.tokenSource != nil:
		tok, err := c.tokenSource.Token()
		if err != nil {
			return errors.Wrap(err, "failed to get oauth token")
		}
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	case c.sapisid != "":
		req.Header.Set("Cookie", c.cookie)
		req.Header.Set("Authorization", sapisidHash(c.sapisid, time.Now()))
		req.Header.Set("X-Goog-AuthUser", "0")
	}
	return nil
}

// sapisidHash builds the cookie-session authorization header value.
func sapisidHash(sapisid string, now time.Time) string {
	ts := strconv.FormatInt(now.Unix(), 10)
	sum := sha1.Sum([]byte(ts + " " + sapisid + " " + origin))
	return "SAPISIDHASH " + ts + "_" + hex.EncodeToString(sum[:])
}

func (c *Client) rememberVisitorData(v string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.visitorData == "" {
		c.visitorData = v
		zlog.Debug().Msg("Visitor data obtained")
	}
}

// retry retries an operation with exponential backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := c.retryDelay
	for i := 0; i <= c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries {
			zlog.Debug().Err(err).Int("attempt", i+1).Msg("Retrying innertube request")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
