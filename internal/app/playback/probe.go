package playback

import (
	"context"
	"net/http"
	"time"

	zlog "github.com/rs/zerolog/log"
)

// Prober checks that a stream URL is reachable.
type Prober interface {
	Probe(ctx context.Context, streamURL string) bool
}

// HTTPProber probes stream URLs with a HEAD request.
type HTTPProber struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPProber creates a prober using client, which should be the catalog
// client's HTTP client so probes carry the same cookies and transport.
func NewHTTPProber(client *http.Client, timeout time.Duration) *HTTPProber {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProber{client: client, timeout: timeout}
}

// Probe reports whether a HEAD request to streamURL succeeds.
func (p *HTTPProber) Probe(ctx context.Context, streamURL string) bool {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, streamURL, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		zlog.Debug().Err(err).Msg("Stream probe failed")
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}
