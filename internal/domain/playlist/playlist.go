// Package playlist provides the Playlist domain entity.
package playlist

import (
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/sagaplayer/internal/domain/track"
)

// Playlist is an ordered, append-only list of tracks with a circular cursor.
// It is not safe for concurrent use.
type Playlist struct {
	Name   string        // Display name (saga name)
	tracks []track.Track // Tracks in insertion order
	cursor int           // Index of the last returned track, -1 before the first
}

// New creates a playlist with the cursor positioned before the first track.
func New(name string, initial []track.Track) *Playlist {
	tracks := make([]track.Track, len(initial))
	copy(tracks, initial)

	zlog.Debug().Msgf("playlist: initialized: name=%s tracks=%d", name, len(tracks))

	return &Playlist{
		Name:   name,
		tracks: tracks,
		cursor: -1,
	}
}

// Add appends a track to the end of the playlist. The cursor does not move.
func (p *Playlist) Add(t track.Track) {
	p.tracks = append(p.tracks, t)
	zlog.Debug().Msgf("playlist: added: name=%s track=%s", p.Name, t.ID)
}

// Next advances the cursor circularly and returns the track at the new
// position. It returns false when the playlist is empty.
func (p *Playlist) Next() (track.Track, bool) {
	if len(p.tracks) == 0 {
		return track.Track{}, false
	}
	p.cursor = (p.cursor + 1) % len(p.tracks)
	return p.tracks[p.cursor], true
}

// Current returns the track most recently returned by Next.
func (p *Playlist) Current() (track.Track, bool) {
	if p.cursor < 0 || p.cursor >= len(p.tracks) {
		return track.Track{}, false
	}
	return p.tracks[p.cursor], true
}

// Position returns the cursor index, -1 before the first call to Next.
func (p *Playlist) Position() int {
	return p.cursor
}

// IsEmpty returns true if the playlist has no tracks.
func (p *Playlist) IsEmpty() bool {
	return len(p.tracks) == 0
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	return len(p.tracks)
}

// Tracks returns a copy of the tracks in insertion order.
func (p *Playlist) Tracks() []track.Track {
	result := make([]track.Track, len(p.tracks))
	copy(result, p.tracks)
	return result
}
