// Package filter provides the admission chain for tracks added to a
// running playlist.
package filter

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/sagaplayer/internal/domain/playlist"
	"github.com/osa030/sagaplayer/internal/domain/track"
)

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "unsupported_format", "duplicate_track"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for add filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
	// Check decides whether t may be appended to pl.
	Check(ctx context.Context, t track.Track, pl *playlist.Playlist) Result
}

// Prober reports the playback length of a track file.
type Prober interface {
	Probe(id string) (time.Duration, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(id string) (time.Duration, error)

// Probe calls f(id).
func (f ProberFunc) Probe(id string) (time.Duration, error) {
	return f(id)
}

// Deps are the collaborators filters are created with.
type Deps struct {
	// Extensions the audio backend can decode, e.g. ".wav".
	Extensions []string
	// Prober measures track length. Nil disables length checks.
	Prober Prober
}

// Factory creates a filter.
type Factory func(deps Deps) Filter

// registry holds registered filter factories.
var registry = make(map[string]Factory)

// Register registers a filter factory.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]Factory {
	return registry
}

// decodeSettings decodes settings into config, applies defaults and
// validates the result.
func decodeSettings(settings map[string]any, config any) error {
	// Decode map[string]any to struct using mapstructure
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  config,
		TagName: "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	// Set defaults
	if err := defaults.Set(config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	// Validate using validator
	if err := validator.New().Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
