// Package audio provides audio backends for the player: a speaker backend
// decoding files with beep, and a silent backend that only simulates timing.
package audio

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/sagaplayer/internal/app/playback"
	"github.com/osa030/sagaplayer/internal/infra/config"
)

// decodeFunc decodes an opened file. The returned streamer owns the file.
type decodeFunc func(f *os.File) (beep.StreamSeekCloser, beep.Format, error)

// decoders maps lower-cased file extensions to decoders.
var decoders = map[string]decodeFunc{
	".wav":  func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(f) },
	".mp3":  func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return mp3.Decode(f) },
	".flac": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return flac.Decode(f) },
	".ogg":  func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return vorbis.Decode(f) },
}

// SupportedExtensions returns the file extensions the backends can decode.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(decoders))
	for ext := range decoders {
		exts = append(exts, ext)
	}
	return exts
}

// NewBackendFromConfig creates the backend selected by the configuration.
func NewBackendFromConfig(cfg config.AudioConfig) (playback.Backend, error) {
	zlog.Debug().Msgf("creating audio backend: type=%s settings=%+v", cfg.Backend, cfg.Settings)

	switch cfg.Backend {
	case "speaker", "":
		b, err := NewSpeakerBackend(cfg.Settings)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create speaker backend")
		}
		return b, nil
	case "silent":
		b, err := NewSilentBackend(cfg.Settings)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create silent backend")
		}
		return b, nil
	default:
		return nil, errors.Newf("unsupported audio backend: %s", cfg.Backend)
	}
}

// lookupDecoder returns the decoder for the path's extension.
func lookupDecoder(path string) (decodeFunc, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return nil, errors.Mark(
			errors.Newf("no decoder for %q files: %s", ext, path),
			playback.ErrUnsupportedFormat,
		)
	}
	return decode, nil
}

// checkResource verifies that path names a regular file.
func checkResource(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errors.Mark(errors.Wrapf(err, "file does not exist: %s", path), playback.ErrResourceNotFound)
		}
		return errors.Mark(errors.Wrapf(err, "cannot access %s", path), playback.ErrResourceNotFound)
	}
	if info.IsDir() {
		return errors.Mark(errors.Newf("not a file: %s", path), playback.ErrResourceNotFound)
	}
	return nil
}

// decodeFile opens and decodes path.
func decodeFile(path string) (beep.StreamSeekCloser, beep.Format, error) {
	if err := checkResource(path); err != nil {
		return nil, beep.Format{}, err
	}
	decode, err := lookupDecoder(path)
	if err != nil {
		return nil, beep.Format{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, errors.Mark(errors.Wrapf(err, "failed to open %s", path), playback.ErrResourceNotFound)
	}

	streamer, format, err := decode(f)
	if err != nil {
		_ = f.Close()
		return nil, beep.Format{}, errors.Mark(errors.Wrapf(err, "failed to decode %s", path), playback.ErrUnsupportedFormat)
	}
	return streamer, format, nil
}

// ProbeDuration decodes the file header and returns its playback length.
func ProbeDuration(path string) (time.Duration, error) {
	streamer, format, err := decodeFile(path)
	if err != nil {
		return 0, err
	}
	defer streamer.Close()
	return format.SampleRate.D(streamer.Len()), nil
}
