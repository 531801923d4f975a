// Package scrobble decides when a playing track becomes eligible for a scrobble.
package scrobble

// State represents the scrobble timer state for the current track.
type State int

const (
	StateIdle    State = iota // No countdown (no track, or track too short)
	StateRunning              // Countdown running
	StatePaused               // Countdown paused with time remaining
	StateFired                // Scrobble submitted for this track
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateFired:
		return "fired"
	default:
		return "unknown"
	}
}
