package filter

import (
	"context"
	"regexp"
	"strings"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/sagaplayer/internal/domain/playlist"
	"github.com/osa030/sagaplayer/internal/domain/track"
)

// DuplicateTrackConfig represents the configuration for DuplicateTrackFilter.
type DuplicateTrackConfig struct {
	// ExactOnly disables version detection; only identical files match.
	ExactOnly bool `yaml:"exact_only" mapstructure:"exact_only"`
}

// DuplicateTrackFilter checks for duplicate tracks in the playlist.
// Detects:
// - Exact track ID matches
// - Other versions of the same song (remaster, live, edit) by display name
type DuplicateTrackFilter struct {
	config *DuplicateTrackConfig
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Rejects tracks already in the playlist, including other versions of the same song"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(settings map[string]any) error {
	var config DuplicateTrackConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = &config
	zlog.Debug().Msgf("duplicate track filter config: %+v", config)
	return nil
}

// Check checks if the track is a duplicate.
func (f *DuplicateTrackFilter) Check(ctx context.Context, requested track.Track, pl *playlist.Playlist) Result {
	if pl == nil {
		return Accept()
	}
	exactOnly := f.config != nil && f.config.ExactOnly
	requestedName := normalizeTrackName(requested.Name())

	for _, existing := range pl.Tracks() {
		// 1. Exact track ID match
		if existing.ID == requested.ID {
			return Reject("duplicate_track")
		}

		// 2. Version detection: normalized names match
		if !exactOnly && normalizeTrackName(existing.Name()) == requestedName {
			return Reject("duplicate_track")
		}
	}

	return Accept()
}

var (
	// Common remaster patterns
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}

	// Other common version indicators
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
		regexp.MustCompile(`\s*\(live\)`),              // "(Live)"
		regexp.MustCompile(`\s*-\s*live\b`),            // "- Live"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
	}

	separators = regexp.MustCompile(`[_\s]+`)
)

// normalizeTrackName removes remaster information and version details.
func normalizeTrackName(name string) string {
	// Convert to lowercase, file names often use underscores for spaces
	normalized := separators.ReplaceAllString(strings.ToLower(name), " ")

	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	// Remove extra whitespace
	normalized = strings.TrimSpace(separators.ReplaceAllString(normalized, " "))

	// Remove trailing dashes
	normalized = strings.TrimRight(normalized, " -")

	return normalized
}

func init() {
	Register("duplicate_track_filter", func(Deps) Filter {
		return &DuplicateTrackFilter{}
	})
}
