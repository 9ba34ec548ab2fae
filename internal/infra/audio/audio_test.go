package audio

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/sagaplayer/internal/app/playback"
	"github.com/osa030/sagaplayer/internal/infra/config"
)

// writeWav writes a silent 44.1kHz stereo wav file with the given number of samples.
func writeWav(t *testing.T, dir, name string, samples int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	format := beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Silence(samples), format))
	return path
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLookupDecoder(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{path: "a.wav"},
		{path: "a.WAV"},
		{path: "a.mp3"},
		{path: "a.flac"},
		{path: "a.ogg"},
		{path: "a.aiff", wantErr: true},
		{path: "noext", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := lookupDecoder(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, playback.ErrUnsupportedFormat))
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Len(t, SupportedExtensions(), 4)
}

func TestDecodeFile_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
		want error
	}{
		{
			name: "missing file",
			path: filepath.Join(dir, "missing.wav"),
			want: playback.ErrResourceNotFound,
		},
		{
			name: "directory",
			path: dir,
			want: playback.ErrResourceNotFound,
		},
		{
			name: "unknown extension",
			path: writeFile(t, dir, "notes.txt", "hello"),
			want: playback.ErrUnsupportedFormat,
		},
		{
			name: "corrupt wav",
			path: writeFile(t, dir, "corrupt.wav", "definitely not RIFF"),
			want: playback.ErrUnsupportedFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := decodeFile(tt.path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestNewBackendFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.AudioConfig
		wantErr bool
	}{
		{name: "speaker", cfg: config.AudioConfig{Backend: "speaker"}},
		{name: "silent", cfg: config.AudioConfig{Backend: "silent", Settings: map[string]any{"time_scale": 2}}},
		{name: "unknown", cfg: config.AudioConfig{Backend: "jack"}, wantErr: true},
		{
			name:    "invalid speaker settings",
			cfg:     config.AudioConfig{Backend: "speaker", Settings: map[string]any{"sample_rate": 100}},
			wantErr: true,
		},
		{
			name:    "invalid silent settings",
			cfg:     config.AudioConfig{Backend: "silent", Settings: map[string]any{"time_scale": -1.0}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBackendFromConfig(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, b)
		})
	}
}

func TestNewSpeakerBackend_Defaults(t *testing.T) {
	b, err := NewSpeakerBackend(nil)
	require.NoError(t, err)

	assert.Equal(t, 44100, b.config.SampleRate)
	assert.Equal(t, 100, b.config.BufferMs)
	assert.Equal(t, 4, b.config.ResampleQuality)
}

// fakeSink collects streamers and drains them on demand, holding its lock
// while streaming like the speaker does.
type fakeSink struct {
	mu        sync.Mutex
	initErr   error
	inits     int
	streamers []beep.Streamer
}

func (f *fakeSink) Init(sampleRate beep.SampleRate, bufferSize int) error {
	f.inits++
	return f.initErr
}

func (f *fakeSink) Play(s beep.Streamer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamers = append(f.streamers, s)
}

func (f *fakeSink) Lock()   { f.mu.Lock() }
func (f *fakeSink) Unlock() { f.mu.Unlock() }

// drain streams up to maxSamples from every queued streamer and drops the
// ones that finished.
func (f *fakeSink) drain(maxSamples int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	buf := make([][2]float64, 512)
	remaining := f.streamers[:0]
	for _, s := range f.streamers {
		done := false
		for total := 0; total < maxSamples; {
			n, ok := s.Stream(buf)
			total += n
			if !ok {
				done = true
				break
			}
		}
		if !done {
			remaining = append(remaining, s)
		}
	}
	f.streamers = remaining
}

func (f *fakeSink) queued() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streamers)
}

func newTestSpeaker(s *fakeSink) *SpeakerBackend {
	return newSpeakerBackend(&SpeakerConfig{SampleRate: 44100, BufferMs: 100, ResampleQuality: 4}, s)
}

func TestSpeakerStream_CompletionFiresAtNaturalEnd(t *testing.T) {
	path := writeWav(t, t.TempDir(), "short.wav", 4410)
	s := &fakeSink{}
	b := newTestSpeaker(s)

	h, err := b.Open(path)
	require.NoError(t, err)
	defer h.Close()

	done := make(chan struct{}, 4)
	h.OnCompletion(func() { done <- struct{}{} })

	require.NoError(t, h.Rewind())
	require.NoError(t, h.Start())
	assert.Equal(t, 1, s.queued())

	s.drain(1 << 20)
	assert.Len(t, done, 1)
	assert.Equal(t, 0, s.queued())

	// Replay after the end queues the stream again
	require.NoError(t, h.Rewind())
	require.NoError(t, h.Start())
	s.drain(1 << 20)
	assert.Len(t, done, 2)
	assert.Equal(t, 1, s.inits, "device is initialized once")
}

func TestSpeakerStream_StopDoesNotComplete(t *testing.T) {
	path := writeWav(t, t.TempDir(), "short.wav", 4410)
	s := &fakeSink{}
	b := newTestSpeaker(s)

	h, err := b.Open(path)
	require.NoError(t, err)
	defer h.Close()

	done := make(chan struct{}, 1)
	h.OnCompletion(func() { done <- struct{}{} })

	require.NoError(t, h.Start())
	require.NoError(t, h.Stop())
	s.drain(44100)
	assert.Len(t, done, 0)
	assert.Equal(t, 1, s.queued(), "paused stream stays queued")

	// Starting again does not queue a second copy
	require.NoError(t, h.Start())
	assert.Equal(t, 1, s.queued())
	s.drain(1 << 20)
	assert.Len(t, done, 1)
}

func TestSpeakerStream_CloseDoesNotComplete(t *testing.T) {
	path := writeWav(t, t.TempDir(), "short.wav", 4410)
	s := &fakeSink{}
	b := newTestSpeaker(s)

	h, err := b.Open(path)
	require.NoError(t, err)

	done := make(chan struct{}, 1)
	h.OnCompletion(func() { done <- struct{}{} })

	require.NoError(t, h.Start())
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	s.drain(1 << 20)

	assert.Len(t, done, 0)
	assert.Error(t, h.Start())
	assert.Error(t, h.Rewind())
}

func TestSpeakerStream_Resamples(t *testing.T) {
	path := writeWav(t, t.TempDir(), "short.wav", 4410)
	s := &fakeSink{}
	b := newSpeakerBackend(&SpeakerConfig{SampleRate: 48000, BufferMs: 100, ResampleQuality: 4}, s)

	h, err := b.Open(path)
	require.NoError(t, err)
	defer h.Close()

	done := make(chan struct{}, 1)
	h.OnCompletion(func() { done <- struct{}{} })

	require.NoError(t, h.Start())
	s.drain(1 << 20)
	assert.Len(t, done, 1)
}

func TestSpeakerBackend_DeviceUnavailable(t *testing.T) {
	path := writeWav(t, t.TempDir(), "short.wav", 441)
	s := &fakeSink{initErr: errors.New("no audio device")}
	b := newTestSpeaker(s)

	_, err := b.Open(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, playback.ErrBackendUnavailable))

	// The failure is sticky
	_, err = b.Open(path)
	assert.True(t, errors.Is(err, playback.ErrBackendUnavailable))
	assert.Equal(t, 1, s.inits)
}

func TestSpeakerBackend_MissingFileSkipsDevice(t *testing.T) {
	s := &fakeSink{}
	b := newTestSpeaker(s)

	_, err := b.Open(filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, playback.ErrResourceNotFound))
	assert.Equal(t, 0, s.inits)
}

func TestSilentBackend_Open(t *testing.T) {
	dir := t.TempDir()
	b, err := NewSilentBackend(map[string]any{"default_duration_ms": 50})
	require.NoError(t, err)

	_, err = b.Open(filepath.Join(dir, "missing.wav"))
	assert.True(t, errors.Is(err, playback.ErrResourceNotFound))

	_, err = b.Open(writeFile(t, dir, "cover.jpg", "jpeg"))
	assert.True(t, errors.Is(err, playback.ErrUnsupportedFormat))

	// Without probing the content is not decoded
	h, err := b.Open(writeFile(t, dir, "fake.wav", "not audio"))
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, h.(*silentStream).duration)
}

func TestSilentBackend_ProbeUsesFileLength(t *testing.T) {
	dir := t.TempDir()
	path := writeWav(t, dir, "tenth.wav", 4410)

	b, err := NewSilentBackend(map[string]any{"probe": true, "time_scale": 10})
	require.NoError(t, err)

	h, err := b.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, h.(*silentStream).duration)

	_, err = b.Open(writeFile(t, dir, "fake.wav", "not audio"))
	assert.True(t, errors.Is(err, playback.ErrUnsupportedFormat))
}

func TestSilentStream_Completion(t *testing.T) {
	s := &silentStream{id: "a.wav", duration: 20 * time.Millisecond}
	done := make(chan struct{}, 2)
	s.OnCompletion(func() { done <- struct{}{} })

	require.NoError(t, s.Rewind())
	require.NoError(t, s.Start())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("completion not fired")
	}

	// At the end Start is a no-op until rewound
	require.NoError(t, s.Start())
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, done, 0)
}

func TestSilentStream_StopAndCloseSuppressCompletion(t *testing.T) {
	tests := []struct {
		name string
		halt func(s *silentStream) error
	}{
		{name: "stop", halt: func(s *silentStream) error { return s.Stop() }},
		{name: "close", halt: func(s *silentStream) error { return s.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &silentStream{id: "a.wav", duration: 30 * time.Millisecond}
			done := make(chan struct{}, 1)
			s.OnCompletion(func() { done <- struct{}{} })

			require.NoError(t, s.Start())
			require.NoError(t, tt.halt(s))

			time.Sleep(80 * time.Millisecond)
			assert.Len(t, done, 0)
		})
	}
}

func TestSilentStream_ResumeKeepsPosition(t *testing.T) {
	s := &silentStream{id: "a.wav", duration: time.Hour}

	require.NoError(t, s.Start())
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Stop())
	assert.Greater(t, s.elapsed, time.Duration(0))

	require.NoError(t, s.Rewind())
	assert.Equal(t, time.Duration(0), s.elapsed)
	require.NoError(t, s.Close())
	assert.Error(t, s.Start())
}

func TestProbeDuration(t *testing.T) {
	dir := t.TempDir()

	d, err := ProbeDuration(writeWav(t, dir, "half.wav", 22050))
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, d)

	_, err = ProbeDuration(filepath.Join(dir, "missing.wav"))
	assert.True(t, errors.Is(err, playback.ErrResourceNotFound))
}
