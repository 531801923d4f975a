package scrobble

import (
	"context"
	"time"
)

// Clock is the time source of the Manager.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f once d has elapsed and returns a cancel function.
	AfterFunc(d time.Duration, f func()) (cancel func())
}

// WallClock measures time on the wall clock so that suspend and clock
// adjustments count as elapsed listening time the same way the player sees it.
type WallClock struct{}

// Now returns the current time with the monotonic reading stripped.
func (WallClock) Now() time.Time {
	return toWallTime(time.Now())
}

// AfterFunc starts a timer that triggers f after d, using wall clock.
func (WallClock) AfterFunc(d time.Duration, f func()) func() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		endTime := toWallTime(time.Now()).Add(d)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !toWallTime(time.Now()).Before(endTime) {
					f()
					return
				}
			}
		}
	}()

	return cancel
}

// toWallTime returns the time with monotonic clock stripped.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
