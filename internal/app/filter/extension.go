package filter

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/sagaplayer/internal/domain/playlist"
	"github.com/osa030/sagaplayer/internal/domain/track"
)

// ExtensionConfig represents the configuration for ExtensionFilter.
type ExtensionConfig struct {
	// Allowed restricts the accepted extensions. Empty allows every
	// extension the backend can decode.
	Allowed []string `yaml:"allowed" mapstructure:"allowed"`
}

// ExtensionFilter rejects files the audio backend cannot decode.
type ExtensionFilter struct {
	supported []string
	allowed   map[string]bool
}

// NewExtensionFilter creates a filter for the given decodable extensions.
func NewExtensionFilter(supported []string) *ExtensionFilter {
	return &ExtensionFilter{supported: supported}
}

func (f *ExtensionFilter) Name() string {
	return "extension_filter"
}

func (f *ExtensionFilter) Description() string {
	return "Rejects files whose extension cannot be decoded"
}

func (f *ExtensionFilter) ReturnCodes() []string {
	return []string{"unsupported_format"}
}

func (f *ExtensionFilter) ValidateConfig(settings map[string]any) error {
	var config ExtensionConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}

	supported := make(map[string]bool, len(f.supported))
	for _, ext := range f.supported {
		supported[normalizeExt(ext)] = true
	}

	if len(config.Allowed) == 0 {
		f.allowed = supported
		return nil
	}

	allowed := make(map[string]bool, len(config.Allowed))
	for _, ext := range config.Allowed {
		ext = normalizeExt(ext)
		if len(supported) > 0 && !supported[ext] {
			return errors.Newf("extension %s cannot be decoded", ext)
		}
		allowed[ext] = true
	}
	f.allowed = allowed
	zlog.Debug().Msgf("extension filter config: %+v", config)
	return nil
}

func (f *ExtensionFilter) Check(ctx context.Context, t track.Track, pl *playlist.Playlist) Result {
	// If config is not set, accept all tracks
	if len(f.allowed) == 0 {
		return Accept()
	}
	if !f.allowed[t.Ext()] {
		return Reject("unsupported_format")
	}
	return Accept()
}

// normalizeExt lower-cases ext and adds the leading dot.
func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func init() {
	Register("extension_filter", func(deps Deps) Filter {
		return NewExtensionFilter(deps.Extensions)
	})
}
