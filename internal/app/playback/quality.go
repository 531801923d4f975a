// Package playback resolves playable audio streams across client profiles.
package playback

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/vivizzz007/vivi-music-sub008/internal/infra/innertube"
)

// Quality is the requested audio quality tier.
type Quality int

const (
	QualityAuto     Quality = iota // efficient codec, lowest bitrate on metered networks
	QualityVeryHigh                // efficient codec, highest bitrate
	QualityHigh                    // highest bitrate
	QualityLow                     // lowest bitrate
)

// String returns the string representation of the quality.
func (q Quality) String() string {
	switch q {
	case QualityAuto:
		return "auto"
	case QualityVeryHigh:
		return "very_high"
	case QualityHigh:
		return "high"
	case QualityLow:
		return "low"
	default:
		return "unknown"
	}
}

// ParseQuality parses a quality name as written in configuration.
func ParseQuality(s string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return QualityAuto, nil
	case "very_high", "veryhigh":
		return QualityVeryHigh, nil
	case "high":
		return QualityHigh, nil
	case "low":
		return QualityLow, nil
	}
	return QualityAuto, errors.Newf("unknown audio quality %q", s)
}

// opusBonus favours WebM/Opus over AAC at similar nominal bitrate.
const opusBonus = 10240

// efficientItags are Opus streams worth preferring over higher nominal bitrates.
var efficientItags = map[int]bool{
	251: true,
	774: true,
}

// qualityWeight returns the bitrate multiplier for a format. A negative
// weight turns the maximization into picking the smallest bitrate.
func qualityWeight(q Quality, metered bool, itag int) int {
	switch q {
	case QualityHigh:
		return 1
	case QualityLow:
		return -1
	case QualityAuto:
		if metered {
			return -1
		}
	}
	if efficientItags[itag] {
		return 2
	}
	return 1
}

func score(f *innertube.Format, q Quality, metered bool) int {
	w := qualityWeight(q, metered, f.Itag)
	s := f.Bitrate * w
	if w > 0 && f.IsOpus() {
		s += opusBonus
	}
	return s
}

// SelectFormat picks the best original-language audio format for the
// quality tier. It returns nil when no format qualifies.
func SelectFormat(formats []innertube.Format, q Quality, metered bool) *innertube.Format {
	var best *innertube.Format
	bestScore := 0
	for i := range formats {
		f := &formats[i]
		if !f.IsAudio() || !f.IsOriginal() {
			continue
		}
		s := score(f, q, metered)
		if best == nil || s > bestScore {
			best, bestScore = f, s
		}
	}
	return best
}
