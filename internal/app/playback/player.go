package playback

import (
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/sagaplayer/internal/domain/playlist"
	"github.com/osa030/sagaplayer/internal/domain/track"
)

// Errors
var (
	ErrNothingLoaded = errors.New("nothing loaded")
	ErrNotPlaying    = errors.New("not playing")
)

const eventBufferSize = 16

// Player plays one track at a time and advances through an associated
// playlist when a track ends naturally.
type Player struct {
	mu sync.Mutex

	backend Backend

	// Loaded track state
	handle  Handle
	current track.Track
	state   State
	seq     uint64 // Incremented on every load; stale completions carry an older value

	// Associated playlist for auto-advance (not owned)
	playlist *playlist.Playlist

	// Events
	eventCh chan Event
}

// NewPlayer creates an empty player.
func NewPlayer(backend Backend) *Player {
	return &Player{
		backend: backend,
		state:   StateEmpty,
		eventCh: make(chan Event, eventBufferSize),
	}
}

// Events returns the event channel.
// EventTrackEnded must be passed to HandleEnded by the consumer for
// auto-advance to happen.
func (p *Player) Events() <-chan Event {
	return p.eventCh
}

// SetPlaylist associates a playlist for auto-advance, replacing any prior
// association. A nil playlist clears it.
func (p *Player) SetPlaylist(pl *playlist.Playlist) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playlist = pl
}

// LoadTrack releases the loaded track and opens t.
// On failure the player is left empty.
func (p *Player) LoadTrack(t track.Track) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadLocked(t)
}

// Play rewinds the loaded track to the start and begins playback.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playLocked()
}

// Stop halts playback. Stopping an empty or already stopped player
// returns ErrNothingLoaded or ErrNotPlaying without changing anything.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

// Close releases the loaded track. Close is idempotent.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releaseLocked()
}

// State returns the current player state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// CurrentTrack returns the loaded track.
func (p *Player) CurrentTrack() (track.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == nil {
		return track.Track{}, false
	}
	return p.current, true
}

// HandleEnded runs the completion watcher for an EventTrackEnded.
// The event is ignored when its track is no longer loaded or playback was
// stopped before the event was handled. With a non-empty playlist the next
// track is loaded and played and returned with true. Otherwise playback
// simply ends and the player stays loaded and stopped.
func (p *Player) HandleEnded(ev Event) (track.Track, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.Type != EventTrackEnded || p.handle == nil || ev.Seq != p.seq {
		zlog.Debug().Msgf("playback: ignoring stale completion: track=%s seq=%d current=%d", ev.Track.ID, ev.Seq, p.seq)
		return track.Track{}, false, nil
	}
	if p.state != StatePlaying {
		zlog.Debug().Msgf("playback: ignoring completion after stop: track=%s", ev.Track.ID)
		return track.Track{}, false, nil
	}

	zlog.Debug().Msgf("playback: track ended: track=%s", p.current.ID)
	p.state = StateStopped

	if p.playlist == nil || p.playlist.IsEmpty() {
		return track.Track{}, false, nil
	}

	next, _ := p.playlist.Next()
	zlog.Info().Msgf("playback: auto-advancing: from=%s to=%s", p.current.ID, next.ID)

	if err := p.handle.Stop(); err != nil {
		zlog.Warn().Msgf("playback: failed to stop ended track: %v", err)
	}
	if err := p.loadLocked(next); err != nil {
		return next, false, err
	}
	if err := p.playLocked(); err != nil {
		return next, false, err
	}

	p.sendEvent(Event{
		Type:  EventTrackAdvanced,
		Track: next,
		State: p.state,
		Seq:   p.seq,
	})
	return next, true, nil
}

// loadLocked opens t in place of the loaded track.
// Must be called with lock held.
func (p *Player) loadLocked(t track.Track) error {
	if err := p.releaseLocked(); err != nil {
		zlog.Warn().Msgf("playback: failed to release previous track: %v", err)
	}

	p.seq++
	seq := p.seq

	h, err := p.backend.Open(t.ID)
	if err != nil {
		zlog.Debug().Msgf("playback: load failed: track=%s err=%v", t.ID, err)
		return errors.Wrapf(err, "failed to load %s", t.ID)
	}

	h.OnCompletion(func() {
		// Runs on the backend's goroutine; only hand the event over.
		p.sendEvent(Event{
			Type:  EventTrackEnded,
			Track: t,
			State: StatePlaying,
			Seq:   seq,
		})
	})

	p.handle = h
	p.current = t
	p.state = StateStopped

	zlog.Debug().Msgf("playback: track loaded: track=%s seq=%d", t.ID, seq)
	p.sendEvent(Event{
		Type:  EventTrackLoaded,
		Track: t,
		State: p.state,
		Seq:   seq,
	})
	return nil
}

// playLocked restarts the loaded track from the beginning.
// Must be called with lock held.
func (p *Player) playLocked() error {
	if p.handle == nil {
		return ErrNothingLoaded
	}

	if err := p.handle.Rewind(); err != nil {
		return errors.Wrapf(err, "failed to rewind %s", p.current.ID)
	}
	if err := p.handle.Start(); err != nil {
		return errors.Wrapf(err, "failed to start %s", p.current.ID)
	}
	p.state = StatePlaying

	p.sendEvent(Event{
		Type:  EventTrackStarted,
		Track: p.current,
		State: p.state,
		Seq:   p.seq,
	})
	return nil
}

// stopLocked halts playback.
// Must be called with lock held.
func (p *Player) stopLocked() error {
	if p.handle == nil {
		return ErrNothingLoaded
	}
	if p.state != StatePlaying {
		return ErrNotPlaying
	}

	if err := p.handle.Stop(); err != nil {
		return errors.Wrapf(err, "failed to stop %s", p.current.ID)
	}
	p.state = StateStopped

	p.sendEvent(Event{
		Type:  EventTrackStopped,
		Track: p.current,
		State: p.state,
		Seq:   p.seq,
	})
	return nil
}

// releaseLocked closes the loaded handle and empties the player.
// Must be called with lock held.
func (p *Player) releaseLocked() error {
	if p.handle == nil {
		return nil
	}

	h := p.handle
	released := p.current
	p.handle = nil
	p.current = track.Track{}
	p.state = StateEmpty

	if err := h.Close(); err != nil {
		return errors.Wrapf(err, "failed to release %s", released.ID)
	}
	zlog.Debug().Msgf("playback: track released: track=%s", released.ID)
	return nil
}

// sendEvent sends an event without blocking.
func (p *Player) sendEvent(e Event) {
	select {
	case p.eventCh <- e:
		// Successfully sent
	default:
		zlog.Warn().Msgf("playback: event channel full, dropping %s event", e.Type)
	}
}
