// Package track provides the Track domain entity.
package track

import (
	"path/filepath"
	"strings"
)

// Track identifies one playable audio resource.
// A Track is a value and never changes once it has been added to a playlist.
type Track struct {
	ID string // File path or URI of the audio resource
}

// New creates a track for the given identifier.
func New(id string) Track {
	return Track{ID: id}
}

// FromIDs converts identifiers to tracks, preserving order.
func FromIDs(ids []string) []Track {
	tracks := make([]Track, len(ids))
	for i, id := range ids {
		tracks[i] = New(id)
	}
	return tracks
}

// Name returns a display name derived from the identifier:
// the base name without its extension.
func (t Track) Name() string {
	// Catalogs written on Windows use backslashes
	base := filepath.Base(strings.ReplaceAll(t.ID, "\\", "/"))
	if base == "." || base == "/" {
		return t.ID
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Ext returns the lower-cased file extension including the dot.
func (t Track) Ext() string {
	return strings.ToLower(filepath.Ext(t.ID))
}

// IsZero reports whether the track has no identifier.
func (t Track) IsZero() bool {
	return t.ID == ""
}

// String returns the identifier.
func (t Track) String() string {
	return t.ID
}
