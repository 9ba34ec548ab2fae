package audio

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/sagaplayer/internal/app/playback"
)

// SpeakerConfig holds the speaker backend settings.
type SpeakerConfig struct {
	SampleRate      int `yaml:"sample_rate" mapstructure:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs        int `yaml:"buffer_ms" mapstructure:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
	ResampleQuality int `yaml:"resample_quality" mapstructure:"resample_quality" default:"4" validate:"gte=1,lte=64"`
}

// sink is the output device. The speaker package satisfies it; tests
// substitute a sink they can drain by hand.
type sink interface {
	Init(sampleRate beep.SampleRate, bufferSize int) error
	Play(s beep.Streamer)
	Lock()
	Unlock()
}

type speakerSink struct{}

func (speakerSink) Init(sampleRate beep.SampleRate, bufferSize int) error {
	return speaker.Init(sampleRate, bufferSize)
}

func (speakerSink) Play(s beep.Streamer) { speaker.Play(s) }

func (speakerSink) Lock() { speaker.Lock() }

func (speakerSink) Unlock() { speaker.Unlock() }

// SpeakerBackend plays decoded files on the default audio device.
// The device is opened lazily on the first successful decode.
type SpeakerBackend struct {
	config     *SpeakerConfig
	sink       sink
	sampleRate beep.SampleRate

	initOnce sync.Once
	initErr  error
}

// NewSpeakerBackend creates a speaker backend from raw settings.
func NewSpeakerBackend(settings map[string]any) (*SpeakerBackend, error) {
	var config SpeakerConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("speaker backend config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	return newSpeakerBackend(&config, speakerSink{}), nil
}

func newSpeakerBackend(config *SpeakerConfig, s sink) *SpeakerBackend {
	return &SpeakerBackend{
		config:     config,
		sink:       s,
		sampleRate: beep.SampleRate(config.SampleRate),
	}
}

// Open decodes the file at id and prepares it for playback.
func (b *SpeakerBackend) Open(id string) (playback.Handle, error) {
	streamer, format, err := decodeFile(id)
	if err != nil {
		return nil, err
	}

	if err := b.init(); err != nil {
		_ = streamer.Close()
		return nil, err
	}

	zlog.Debug().Msgf("speaker: opened: file=%s rate=%d channels=%d length=%v",
		id, format.SampleRate, format.NumChannels, format.SampleRate.D(streamer.Len()))

	return &speakerStream{
		id:      id,
		sink:    b.sink,
		source:  streamer,
		format:  format,
		rate:    b.sampleRate,
		quality: b.config.ResampleQuality,
		ctrl:    &beep.Ctrl{Streamer: streamer, Paused: true},
	}, nil
}

// init opens the output device once.
func (b *SpeakerBackend) init() error {
	b.initOnce.Do(func() {
		bufferSize := b.sampleRate.N(time.Duration(b.config.BufferMs) * time.Millisecond)
		if err := b.sink.Init(b.sampleRate, bufferSize); err != nil {
			b.initErr = errors.Mark(errors.Wrap(err, "failed to initialize speaker"), playback.ErrBackendUnavailable)
			return
		}
		zlog.Debug().Msgf("speaker: initialized: rate=%d buffer=%d", b.sampleRate, bufferSize)
	})
	return b.initErr
}

// speakerStream is one decoded file. All mutable fields are guarded by the
// sink lock, which the device also holds while calling finish.
type speakerStream struct {
	id      string
	sink    sink
	source  beep.StreamSeekCloser
	format  beep.Format
	rate    beep.SampleRate
	quality int
	ctrl    *beep.Ctrl

	queued bool // Pipeline handed to the sink and not yet drained
	closed bool
	onDone func()
}

// Start unpauses playback, queueing the stream on the sink if needed.
func (s *speakerStream) Start() error {
	s.sink.Lock()
	if s.closed {
		s.sink.Unlock()
		return errors.Newf("stream closed: %s", s.id)
	}
	s.ctrl.Paused = false
	enqueue := !s.queued
	s.queued = true
	s.sink.Unlock()

	if enqueue {
		s.sink.Play(beep.Seq(s.pipeline(), beep.Callback(s.finish)))
	}
	return nil
}

// Stop pauses playback at the current position.
func (s *speakerStream) Stop() error {
	s.sink.Lock()
	defer s.sink.Unlock()
	s.ctrl.Paused = true
	return nil
}

// Rewind seeks back to the first sample.
func (s *speakerStream) Rewind() error {
	s.sink.Lock()
	defer s.sink.Unlock()
	if s.closed {
		return errors.Newf("stream closed: %s", s.id)
	}
	if err := s.source.Seek(0); err != nil {
		return errors.Wrapf(err, "failed to seek %s", s.id)
	}
	return nil
}

// OnCompletion registers the natural end callback.
func (s *speakerStream) OnCompletion(fn func()) {
	s.sink.Lock()
	defer s.sink.Unlock()
	s.onDone = fn
}

// Close detaches the stream from the sink and closes the decoder.
func (s *speakerStream) Close() error {
	s.sink.Lock()
	if s.closed {
		s.sink.Unlock()
		return nil
	}
	s.closed = true
	// A nil streamer ends the sequence; finish sees closed and stays quiet
	s.ctrl.Streamer = nil
	s.sink.Unlock()

	if err := s.source.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", s.id)
	}
	return nil
}

// pipeline builds the streamer handed to the sink, resampling when the file
// rate differs from the device rate.
func (s *speakerStream) pipeline() beep.Streamer {
	if s.format.SampleRate == s.rate {
		return s.ctrl
	}
	return beep.Resample(s.quality, s.format.SampleRate, s.rate, s.ctrl)
}

// finish runs on the sink's goroutine with the sink lock held.
func (s *speakerStream) finish() {
	s.queued = false
	if s.closed || s.onDone == nil {
		return
	}
	if err := s.source.Err(); err != nil {
		zlog.Warn().Msgf("speaker: stream error: file=%s err=%v", s.id, err)
	}
	s.onDone()
}
