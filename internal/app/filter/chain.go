package filter

import (
	"context"
	"maps"
	"slices"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/sagaplayer/internal/domain/playlist"
	"github.com/osa030/sagaplayer/internal/domain/track"
	"github.com/osa030/sagaplayer/internal/infra/config"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// BuildChain creates the enabled filters in name order and applies their
// settings. Unknown filter names and invalid settings are errors.
func BuildChain(cfg map[string]config.FilterConfig, deps Deps) (*Chain, error) {
	chain := NewChain()

	for _, name := range slices.Sorted(maps.Keys(cfg)) {
		fc := cfg[name]
		if !fc.Enabled {
			continue
		}

		factory, ok := registry[name]
		if !ok {
			return nil, errors.Newf("unknown filter: %s", name)
		}

		f := factory(deps)
		if err := f.ValidateConfig(fc.Settings); err != nil {
			return nil, errors.Wrapf(err, "filter %s", name)
		}
		chain.Add(f)
		zlog.Debug().Msgf("filter: enabled: name=%s", name)
	}

	return chain, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the track.
func (c *Chain) Execute(ctx context.Context, t track.Track, pl *playlist.Playlist) Result {
	for _, f := range c.filters {
		result := f.Check(ctx, t, pl)
		if !result.Accepted {
			zlog.Debug().Msgf("filter: rejected: filter=%s track=%s code=%s", f.Name(), t.ID, result.Code)
			return result
		}
	}
	return Accept()
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
