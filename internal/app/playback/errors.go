package playback

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Resolution errors.
var (
	ErrMainProfileFailed = errors.New("main client profile request failed")
	ErrNoPlayerResponse  = errors.New("no usable player response")
	ErrMissingExpiry     = errors.New("missing stream expire time")
	ErrNoFormat          = errors.New("could not find format")
	ErrNoStreamURL       = errors.New("could not find stream url")
)

// PlayabilityError is returned when no profile was allowed to play the video.
type PlayabilityError struct {
	Status string
	Reason string
}

func (e *PlayabilityError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("playability status %s", e.Status)
	}
	return fmt.Sprintf("playability status %s: %s", e.Status, e.Reason)
}
