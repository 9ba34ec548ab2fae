// Package catalog provides the saga catalog offered by the top-level menu.
package catalog

import (
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/sagaplayer/internal/domain/playlist"
	"github.com/osa030/sagaplayer/internal/domain/track"
)

// ErrInvalidSelection is returned when a menu selection is not a saga or Exit.
var ErrInvalidSelection = errors.New("invalid selection")

// Saga is a themed playlist selectable from the menu.
type Saga struct {
	Name   string
	Tracks []track.Track
}

// Playlist builds a fresh playlist for the saga.
func (s Saga) Playlist() *playlist.Playlist {
	return playlist.New(s.Name, s.Tracks)
}

// Catalog maps menu selections (1..N) to sagas. Selection N+1 is Exit.
type Catalog struct {
	Title    string
	Subtitle string
	Sagas    []Saga
}

// Selection is the result of parsing a menu choice.
type Selection struct {
	Exit bool
	Saga Saga
}

// ExitChoice returns the menu number that exits the program.
func (c *Catalog) ExitChoice() int {
	return len(c.Sagas) + 1
}

// Select parses a menu choice.
func (c *Catalog) Select(input string) (Selection, error) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return Selection{}, errors.Wrapf(ErrInvalidSelection, "not a number: %q", input)
	}

	switch {
	case n == c.ExitChoice():
		return Selection{Exit: true}, nil
	case n >= 1 && n <= len(c.Sagas):
		return Selection{Saga: c.Sagas[n-1]}, nil
	default:
		return Selection{}, errors.Wrapf(ErrInvalidSelection, "out of range: %d", n)
	}
}

// Store holds the current catalog. It is safe for concurrent use so the
// catalog can be replaced while the menu is running.
type Store struct {
	mu      sync.RWMutex
	catalog *Catalog
}

// NewStore creates a store holding the given catalog.
func NewStore(c *Catalog) *Store {
	return &Store{catalog: c}
}

// Get returns the current catalog.
func (s *Store) Get() *Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// Replace swaps in a new catalog. Sagas already being played are unaffected.
func (s *Store) Replace(c *Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = c
}
