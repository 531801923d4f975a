package playback

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivizzz007/vivi-music-sub008/internal/infra/innertube"
)

var (
	opus251 = innertube.Format{Itag: 251, MimeType: `audio/webm; codecs="opus"`, Bitrate: 130000}
	opus249 = innertube.Format{Itag: 249, MimeType: `audio/webm; codecs="opus"`, Bitrate: 50000}
	aac140  = innertube.Format{Itag: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, Bitrate: 160000}
	aac139  = innertube.Format{Itag: 139, MimeType: `audio/mp4; codecs="mp4a.40.5"`, Bitrate: 48000}
	video   = innertube.Format{Itag: 137, MimeType: `video/mp4; codecs="avc1.640028"`, Bitrate: 4000000}
	dubbed  = innertube.Format{Itag: 251, MimeType: `audio/webm; codecs="opus"`, Bitrate: 900000,
		AudioTrack: &innertube.AudioTrack{ID: "de.3", AudioIsDefault: false}}
)

func TestSelectFormat(t *testing.T) {
	all := []innertube.Format{video, dubbed, aac140, opus251, aac139, opus249}

	tests := []struct {
		name     string
		formats  []innertube.Format
		quality  Quality
		metered  bool
		wantItag int
	}{
		{name: "auto prefers efficient opus", formats: all, quality: QualityAuto, wantItag: 251},
		{name: "very high prefers efficient opus", formats: all, quality: QualityVeryHigh, wantItag: 251},
		{name: "high takes highest weighted bitrate", formats: []innertube.Format{aac140, opus249}, quality: QualityHigh, wantItag: 140},
		{name: "high breaks near ties towards opus", formats: []innertube.Format{
			{Itag: 140, MimeType: "audio/mp4", Bitrate: 130000},
			{Itag: 250, MimeType: "audio/webm", Bitrate: 125000},
		}, quality: QualityHigh, wantItag: 250},
		{name: "low takes smallest bitrate regardless of codec", formats: all, quality: QualityLow, wantItag: 139},
		{name: "auto on metered network takes smallest bitrate", formats: all, quality: QualityAuto, metered: true, wantItag: 139},
		{name: "no audio", formats: []innertube.Format{video}, quality: QualityAuto},
		{name: "only dubbed audio", formats: []innertube.Format{dubbed}, quality: QualityAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectFormat(tt.formats, tt.quality, tt.metered)
			if tt.wantItag == 0 {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantItag, got.Itag)
		})
	}
}

func TestParseQuality(t *testing.T) {
	for in, want := range map[string]Quality{"": QualityAuto, "AUTO": QualityAuto, "very_high": QualityVeryHigh, "high": QualityHigh, "low": QualityLow} {
		got, err := ParseQuality(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseQuality("lossless")
	assert.Error(t, err)
}

type fakePlayer struct {
	mu        sync.Mutex
	responses map[string]*innertube.PlayerResponse
	errs      map[string]error
	stsErr    error
	loggedIn  bool
	calls     []string
}

func (f *fakePlayer) Player(_ context.Context, _, _ string, p innertube.ClientProfile, _ int) (*innertube.PlayerResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, p.Name)
	if err := f.errs[p.Name]; err != nil {
		return nil, err
	}
	resp, ok := f.responses[p.Name]
	if !ok {
		return nil, errors.Newf("no response for %s", p.Name)
	}
	return resp, nil
}

func (f *fakePlayer) SignatureTimestamp(context.Context) (int, error) {
	if f.stsErr != nil {
		return 0, f.stsErr
	}
	return 20000, nil
}

func (f *fakePlayer) StreamURL(_ context.Context, _ string, fm innertube.Format) (string, error) {
	if fm.URL == "" {
		return "", errors.New("ciphered")
	}
	return fm.URL, nil
}

func (f *fakePlayer) IsLoggedIn() bool { return f.loggedIn }

type fakeProber struct {
	mu     sync.Mutex
	ok     map[string]bool
	probed []string
}

func (p *fakeProber) Probe(_ context.Context, u string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probed = append(p.probed, u)
	return p.ok[u]
}

func okResponse(title, streamURL, expires string) *innertube.PlayerResponse {
	f := opus251
	f.URL = streamURL
	return &innertube.PlayerResponse{
		PlayabilityStatus: innertube.PlayabilityStatus{Status: innertube.StatusOK},
		StreamingData:     &innertube.StreamingData{AdaptiveFormats: []innertube.Format{aac139, f}, ExpiresInSeconds: expires},
		VideoDetails:      &innertube.VideoDetails{VideoID: "vid", Title: title},
	}
}

var (
	profMain  = innertube.ClientProfile{Name: "MAIN", UseSignatureTimestamp: true}
	profTV    = innertube.ClientProfile{Name: "TV", UseSignatureTimestamp: true}
	profLogin = innertube.ClientProfile{Name: "CREATOR", LoginRequired: true}
	profIOS   = innertube.ClientProfile{Name: "IOS"}
	profMeta  = innertube.ClientProfile{Name: "META"}
)

func newTestResolver(client PlayerClient, prober Prober, fallbacks ...innertube.ClientProfile) *Resolver {
	r := NewResolver(client, prober, Config{Main: profMain, Metadata: profMeta, Fallbacks: fallbacks})
	r.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return r
}

func TestResolveForPlayback_MainStream(t *testing.T) {
	client := &fakePlayer{responses: map[string]*innertube.PlayerResponse{
		"MAIN": okResponse("Canonical", "https://stream/main", "21540"),
	}}
	prober := &fakeProber{ok: map[string]bool{"https://stream/main": true}}

	data, err := newTestResolver(client, prober, profTV, profIOS).ResolveForPlayback(context.Background(), "vid", "", QualityAuto, false)
	require.NoError(t, err)

	assert.Equal(t, "MAIN", data.Profile)
	assert.Equal(t, "https://stream/main", data.StreamURL)
	assert.Equal(t, 251, data.Format.Itag)
	assert.Equal(t, 21540*time.Second, data.ExpiresIn)
	assert.Equal(t, time.Unix(1_700_000_000+21540, 0), data.ExpiresAt)
	assert.Equal(t, "Canonical", data.VideoDetails.Title)
	assert.Equal(t, []string{"MAIN"}, client.calls)
}

func TestResolveForPlayback_AcceptsLastCandidateUnprobed(t *testing.T) {
	client := &fakePlayer{responses: map[string]*innertube.PlayerResponse{
		"MAIN": okResponse("Canonical", "https://stream/main", "100"),
		"TV":   okResponse("tv", "https://stream/tv", "100"),
		"IOS":  okResponse("ios", "https://stream/ios", "100"),
	}}
	prober := &fakeProber{ok: map[string]bool{}}

	data, err := newTestResolver(client, prober, profTV, profIOS).ResolveForPlayback(context.Background(), "vid", "", QualityAuto, false)
	require.NoError(t, err)

	assert.Equal(t, "IOS", data.Profile)
	assert.Equal(t, "https://stream/ios", data.StreamURL)
	assert.Equal(t, []string{"https://stream/main", "https://stream/tv"}, prober.probed)
	assert.Equal(t, "Canonical", data.VideoDetails.Title)
}

func TestResolveForPlayback_SkipsProfiles(t *testing.T) {
	client := &fakePlayer{
		responses: map[string]*innertube.PlayerResponse{
			"MAIN": {PlayabilityStatus: innertube.PlayabilityStatus{Status: innertube.StatusLoginRequired}},
			"IOS":  okResponse("ios", "https://stream/ios", "100"),
		},
		stsErr: errors.New("player js unavailable"),
	}
	prober := &fakeProber{ok: map[string]bool{}}

	data, err := newTestResolver(client, prober, profTV, profLogin, profIOS).ResolveForPlayback(context.Background(), "vid", "", QualityAuto, false)
	require.NoError(t, err)

	assert.Equal(t, "IOS", data.Profile)
	assert.Equal(t, []string{"MAIN", "IOS"}, client.calls)
	assert.Empty(t, prober.probed)
}

func TestResolveForPlayback_LoginProfileUsedWithSession(t *testing.T) {
	client := &fakePlayer{
		responses: map[string]*innertube.PlayerResponse{
			"MAIN":    {PlayabilityStatus: innertube.PlayabilityStatus{Status: innertube.StatusUnplayable}},
			"CREATOR": okResponse("creator", "https://stream/creator", "100"),
		},
		loggedIn: true,
	}

	data, err := newTestResolver(client, &fakeProber{}, profLogin).ResolveForPlayback(context.Background(), "vid", "", QualityHigh, false)
	require.NoError(t, err)
	assert.Equal(t, "CREATOR", data.Profile)
}

func TestResolveForPlayback_Errors(t *testing.T) {
	noFormats := &innertube.PlayerResponse{
		PlayabilityStatus: innertube.PlayabilityStatus{Status: innertube.StatusOK},
		StreamingData:     &innertube.StreamingData{AdaptiveFormats: []innertube.Format{video}, ExpiresInSeconds: "100"},
	}
	ciphered := okResponse("x", "", "100")
	noExpiry := okResponse("x", "https://stream/x", "")

	tests := []struct {
		name      string
		responses map[string]*innertube.PlayerResponse
		errs      map[string]error
		want      error
	}{
		{
			name: "main profile fails",
			errs: map[string]error{"MAIN": errors.New("timeout")},
			want: ErrMainProfileFailed,
		},
		{
			name:      "no format",
			responses: map[string]*innertube.PlayerResponse{"MAIN": noFormats, "IOS": noFormats},
			want:      ErrNoFormat,
		},
		{
			name:      "no stream url",
			responses: map[string]*innertube.PlayerResponse{"MAIN": noFormats, "IOS": ciphered},
			want:      ErrNoStreamURL,
		},
		{
			name:      "no expiry",
			responses: map[string]*innertube.PlayerResponse{"MAIN": noFormats, "IOS": noExpiry},
			want:      ErrMissingExpiry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakePlayer{responses: tt.responses, errs: tt.errs}
			_, err := newTestResolver(client, &fakeProber{}, profIOS).ResolveForPlayback(context.Background(), "vid", "", QualityAuto, false)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResolveForPlayback_NotPlayable(t *testing.T) {
	blocked := &innertube.PlayerResponse{PlayabilityStatus: innertube.PlayabilityStatus{
		Status: innertube.StatusUnplayable,
		Reason: "This video is not available in your country",
	}}
	client := &fakePlayer{responses: map[string]*innertube.PlayerResponse{"MAIN": blocked, "IOS": blocked}}

	_, err := newTestResolver(client, &fakeProber{}, profIOS).ResolveForPlayback(context.Background(), "vid", "", QualityAuto, false)

	var pe *PlayabilityError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, innertube.StatusUnplayable, pe.Status)
	assert.Contains(t, err.Error(), "not available in your country")
}

func TestResolveForPlayback_LastFallbackFetchFails(t *testing.T) {
	client := &fakePlayer{
		responses: map[string]*innertube.PlayerResponse{"MAIN": okResponse("x", "https://stream/main", "100")},
		errs:      map[string]error{"IOS": errors.New("429")},
	}
	_, err := newTestResolver(client, &fakeProber{}, profIOS).ResolveForPlayback(context.Background(), "vid", "", QualityAuto, false)
	assert.ErrorIs(t, err, ErrNoPlayerResponse)
}

func TestResolveForMetadata(t *testing.T) {
	client := &fakePlayer{responses: map[string]*innertube.PlayerResponse{
		"META": {
			PlayabilityStatus: innertube.PlayabilityStatus{Status: innertube.StatusLoginRequired},
			VideoDetails:      &innertube.VideoDetails{VideoID: "vid", Title: "Song", LengthSeconds: "215"},
		},
	}}

	md, err := newTestResolver(client, &fakeProber{}).ResolveForMetadata(context.Background(), "vid", "")
	require.NoError(t, err)
	assert.Equal(t, "Song", md.VideoDetails.Title)
	assert.Equal(t, []string{"META"}, client.calls)
}

func TestHTTPProber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/ok" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewHTTPProber(srv.Client(), time.Second)
	assert.True(t, p.Probe(context.Background(), srv.URL+"/ok"))
	assert.False(t, p.Probe(context.Background(), srv.URL+"/expired"))
	assert.False(t, p.Probe(context.Background(), "http://127.0.0.1:1/unreachable"))
}
