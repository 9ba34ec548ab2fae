package audio

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/sagaplayer/internal/app/playback"
)

// SilentConfig holds the silent backend settings.
type SilentConfig struct {
	// Probe decodes each file to learn its length. When false only the
	// file's existence and extension are checked and DefaultDurationMs is used.
	Probe             bool    `yaml:"probe" mapstructure:"probe"`
	DefaultDurationMs int     `yaml:"default_duration_ms" mapstructure:"default_duration_ms" default:"180000" validate:"gte=1"`
	TimeScale         float64 `yaml:"time_scale" mapstructure:"time_scale" default:"1" validate:"gt=0,lte=1000"`
}

// SilentBackend produces no sound. Tracks "play" for their length in wall
// clock time, which keeps auto-advance working on machines without an audio
// device.
type SilentBackend struct {
	config *SilentConfig
}

// NewSilentBackend creates a silent backend from raw settings.
func NewSilentBackend(settings map[string]any) (*SilentBackend, error) {
	var config SilentConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("silent backend config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &SilentBackend{config: &config}, nil
}

// Open validates the file and returns a timer driven handle.
func (b *SilentBackend) Open(id string) (playback.Handle, error) {
	length, err := b.length(id)
	if err != nil {
		return nil, err
	}

	scaled := time.Duration(float64(length) / b.config.TimeScale)
	zlog.Debug().Msgf("silent: opened: file=%s length=%v scaled=%v", id, length, scaled)

	return &silentStream{id: id, duration: scaled}, nil
}

// length returns the playback length of the file.
func (b *SilentBackend) length(id string) (time.Duration, error) {
	if !b.config.Probe {
		if err := checkResource(id); err != nil {
			return 0, err
		}
		if _, err := lookupDecoder(id); err != nil {
			return 0, err
		}
		return time.Duration(b.config.DefaultDurationMs) * time.Millisecond, nil
	}

	return ProbeDuration(id)
}

// silentStream simulates playback with a timer.
type silentStream struct {
	mu sync.Mutex

	id       string
	duration time.Duration

	elapsed   time.Duration // Played before the current run
	startedAt time.Time
	running   bool
	run       uint64 // Identifies the active timer
	cancel    func()
	closed    bool
	onDone    func()
}

// Start resumes the simulated playback.
func (s *silentStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.Newf("stream closed: %s", s.id)
	}
	if s.running {
		return nil
	}
	remaining := s.duration - s.elapsed
	if remaining <= 0 {
		return nil
	}

	s.running = true
	s.startedAt = time.Now()
	s.startTimerLocked(remaining)
	return nil
}

// Stop pauses the simulated playback.
func (s *silentStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.stopTimerLocked()
	s.elapsed += time.Since(s.startedAt)
	s.running = false
	return nil
}

// Rewind resets the position to the start.
func (s *silentStream) Rewind() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.elapsed = 0
	if s.running {
		s.startedAt = time.Now()
		s.startTimerLocked(s.duration)
	}
	return nil
}

// OnCompletion registers the natural end callback.
func (s *silentStream) OnCompletion(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDone = fn
}

// Close stops the timer. Close is idempotent.
func (s *silentStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()
	s.running = false
	s.closed = true
	return nil
}

// startTimerLocked replaces the active timer.
// Must be called with lock held.
func (s *silentStream) startTimerLocked(d time.Duration) {
	s.stopTimerLocked()
	s.run++
	run := s.run
	s.cancel = startTimer(d, func() {
		s.finish(run)
	})
}

// stopTimerLocked cancels the active timer.
// Must be called with lock held.
func (s *silentStream) stopTimerLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.run++
}

// finish is called by the timer of the given run.
func (s *silentStream) finish(run uint64) {
	s.mu.Lock()
	if s.closed || !s.running || run != s.run {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.elapsed = s.duration
	s.cancel = nil
	fn := s.onDone
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// startTimer calls callback after d unless the returned cancel func is
// called first.
func startTimer(d time.Duration, callback func()) func() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			callback()
		}
	}()

	return cancel
}
