// Package playback provides the player state machine and the audio backend contract.
package playback

// State represents the player state.
type State int

const (
	StateEmpty   State = iota // No track loaded
	StateStopped              // Track loaded, not playing
	StatePlaying              // Track loaded and playing
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}
