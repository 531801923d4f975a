package innertube

import (
	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
)

// ClientProfile identifies the client the server believes it is talking to.
// Different profiles receive different stream availability and formats.
type ClientProfile struct {
	Name              string `mapstructure:"name"`
	ClientName        string `mapstructure:"client_name"`
	ClientVersion     string `mapstructure:"client_version"`
	ClientID          string `mapstructure:"client_id"` // X-YouTube-Client-Name
	UserAgent         string `mapstructure:"user_agent"`
	OSName            string `mapstructure:"os_name"`
	OSVersion         string `mapstructure:"os_version"`
	DeviceMake        string `mapstructure:"device_make"`
	DeviceModel       string `mapstructure:"device_model"`
	AndroidSDKVersion int    `mapstructure:"android_sdk_version"`

	LoginSupported        bool `mapstructure:"login_supported"`         // account credentials are sent
	LoginRequired         bool `mapstructure:"login_required"`          // unusable without an account session
	UseSignatureTimestamp bool `mapstructure:"use_signature_timestamp"` // player requests carry the player JS timestamp
	IsEmbedded            bool `mapstructure:"is_embedded"`             // requests carry an embed URL
}

const (
	desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36"
	origin           = "https://music.youtube.com"
)

// Built-in client profiles.
var (
	WebRemix = ClientProfile{
		Name:                  "WEB_REMIX",
		ClientName:            "WEB_REMIX",
		ClientVersion:         "1.20250310.01.00",
		ClientID:              "67",
		UserAgent:             desktopUserAgent,
		LoginSupported:        true,
		UseSignatureTimestamp: true,
	}
	TVHTML5SimplyEmbedded = ClientProfile{
		Name:                  "TVHTML5_SIMPLY_EMBEDDED_PLAYER",
		ClientName:            "TVHTML5_SIMPLY_EMBEDDED_PLAYER",
		ClientVersion:         "2.0",
		ClientID:              "85",
		UserAgent:             "Mozilla/5.0 (PlayStation; PlayStation 4/12.02) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.4 Safari/605.1.15",
		LoginSupported:        true,
		UseSignatureTimestamp: true,
		IsEmbedded:            true,
	}
	TVHTML5 = ClientProfile{
		Name:                  "TVHTML5",
		ClientName:            "TVHTML5",
		ClientVersion:         "7.20250312.16.00",
		ClientID:              "7",
		UserAgent:             "Mozilla/5.0(SMART-TV; Linux; Tizen 4.0.0.2) AppleWebkit/605.1.15 (KHTML, like Gecko) SamsungBrowser/9.2 TV Safari/605.1.15",
		LoginSupported:        true,
		LoginRequired:         true,
		UseSignatureTimestamp: true,
	}
	IOS = ClientProfile{
		Name:          "IOS",
		ClientName:    "IOS",
		ClientVersion: "20.03.02",
		ClientID:      "5",
		UserAgent:     "com.google.ios.youtube/20.03.02 (iPhone16,2; U; CPU iOS 18_2_1 like Mac OS X;)",
		OSName:        "iOS",
		OSVersion:     "18.2.1.22C161",
		DeviceMake:    "Apple",
		DeviceModel:   "iPhone16,2",
	}
	AndroidVR = ClientProfile{
		Name:              "ANDROID_VR",
		ClientName:        "ANDROID_VR",
		ClientVersion:     "1.61.48",
		ClientID:          "28",
		UserAgent:         "com.google.android.apps.youtube.vr.oculus/1.61.48 (Linux; U; Android 12; en_US; Oculus Quest 3; Build/SQ3A.220605.009.A1; Cronet/132.0.6808.3)",
		OSName:            "Android",
		OSVersion:         "12",
		DeviceMake:        "Oculus",
		DeviceModel:       "Quest 3",
		AndroidSDKVersion: 32,
	}
	AndroidMusic = ClientProfile{
		Name:              "ANDROID_MUSIC",
		ClientName:        "ANDROID_MUSIC",
		ClientVersion:     "7.27.52",
		ClientID:          "21",
		UserAgent:         "com.google.android.apps.youtube.music/7.27.52 (Linux; U; Android 14) gzip",
		OSName:            "Android",
		OSVersion:         "14",
		AndroidSDKVersion: 34,
		LoginSupported:    true,
	}
	WebCreator = ClientProfile{
		Name:                  "WEB_CREATOR",
		ClientName:            "WEB_CREATOR",
		ClientVersion:         "1.20250312.03.01",
		ClientID:              "62",
		UserAgent:             desktopUserAgent,
		LoginSupported:        true,
		LoginRequired:         true,
		UseSignatureTimestamp: true,
	}
	Web = ClientProfile{
		Name:                  "WEB",
		ClientName:            "WEB",
		ClientVersion:         "2.20250312.04.00",
		ClientID:              "1",
		UserAgent:             desktopUserAgent,
		UseSignatureTimestamp: true,
	}
)

// Profiles holds client profiles by name.
type Profiles map[string]ClientProfile

// DefaultProfiles returns the built-in profiles keyed by name.
func DefaultProfiles() Profiles {
	ps := Profiles{}
	for _, p := range []ClientProfile{WebRemix, TVHTML5SimplyEmbedded, TVHTML5, IOS, AndroidVR, AndroidMusic, WebCreator, Web} {
		ps[p.Name] = p
	}
	return ps
}

// ApplyOverrides patches profiles with free-form settings maps keyed by profile name.
// Unknown names define new profiles.
func (ps Profiles) ApplyOverrides(overrides map[string]map[string]any) error {
	for name, settings := range overrides {
		p := ps[name]
		p.Name = name
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &p,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create decoder")
		}
		if err := decoder.Decode(settings); err != nil {
			return errors.Wrapf(err, "invalid overrides for client profile %s", name)
		}
		if p.ClientName == "" || p.ClientVersion == "" {
			return errors.Newf("client profile %s needs client_name and client_version", name)
		}
		ps[name] = p
	}
	return nil
}

// Lookup returns the named profiles in order.
func (ps Profiles) Lookup(names ...string) ([]ClientProfile, error) {
	out := make([]ClientProfile, 0, len(names))
	for _, name := range names {
		p, ok := ps[name]
		if !ok {
			return nil, errors.Newf("unknown client profile %q", name)
		}
		out = append(out, p)
	}
	return out, nil
}
