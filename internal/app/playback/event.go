package playback

import "github.com/osa030/sagaplayer/internal/domain/track"

// EventType represents a player event type.
type EventType int

const (
	EventTrackLoaded   EventType = iota // Track loaded and ready
	EventTrackStarted                   // Track started playing
	EventTrackStopped                   // Playback halted by a caller
	EventTrackEnded                     // Track reached its natural end
	EventTrackAdvanced                  // Next playlist track started after a natural end
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackLoaded:
		return "track_loaded"
	case EventTrackStarted:
		return "track_started"
	case EventTrackStopped:
		return "track_stopped"
	case EventTrackEnded:
		return "track_ended"
	case EventTrackAdvanced:
		return "track_advanced"
	default:
		return "unknown"
	}
}

// Event represents a player event.
type Event struct {
	Type  EventType
	Track track.Track // Track the event refers to
	State State       // Player state when the event was emitted
	Seq   uint64      // Load sequence number of the track
}
