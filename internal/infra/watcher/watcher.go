// Package watcher reloads the saga catalog when the configuration file changes.
package watcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/sagaplayer/internal/domain/catalog"
	"github.com/osa030/sagaplayer/internal/infra/config"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 250 * time.Millisecond

// LoadFunc loads a catalog from the configuration file.
type LoadFunc func(path string) (*catalog.Catalog, error)

// Watcher watches one configuration file and replaces the catalog in the
// store after every successful reload. A file that fails to load leaves the
// previous catalog in place.
type Watcher struct {
	path     string
	store    *catalog.Store
	load     LoadFunc
	debounce time.Duration
	reloaded func(*catalog.Catalog)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLoader overrides config.LoadCatalog.
func WithLoader(load LoadFunc) Option {
	return func(w *Watcher) { w.load = load }
}

// WithOnReload registers a callback run after each successful reload.
func WithOnReload(fn func(*catalog.Catalog)) Option {
	return func(w *Watcher) { w.reloaded = fn }
}

// New creates a watcher for the configuration file at path.
func New(path string, store *catalog.Store, opts ...Option) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		store:    store,
		load:     config.LoadCatalog,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled. The parent directory is watched so
// that editors replacing the file atomically are still noticed.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer func() {
		if err := fw.Close(); err != nil {
			zlog.Error().Msgf("watcher: failed to close file watcher: %v", err)
		}
	}()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return errors.Wrapf(err, "failed to watch %s", dir)
	}
	zlog.Debug().Msgf("watcher: started: file=%s", w.path)

	w.processEvents(ctx, fw)
	zlog.Debug().Msgf("watcher: stopped: file=%s", w.path)
	return nil
}

// processEvents handles file system events until ctx is done or the
// watcher is closed.
func (w *Watcher) processEvents(ctx context.Context, fw *fsnotify.Watcher) {
	// Armed by the first relevant event
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			zlog.Debug().Msgf("watcher: event: file=%s op=%s", event.Name, event.Op)
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			zlog.Error().Msgf("watcher: error: %v", err)

		case <-timer.C:
			w.reload()
		}
	}
}

// relevant reports whether the event touches the watched file's content.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// reload loads the file and swaps the catalog in.
func (w *Watcher) reload() {
	c, err := w.load(w.path)
	if err != nil {
		zlog.Error().Msgf("watcher: reload failed, keeping current catalog: file=%s err=%v", w.path, err)
		return
	}

	w.store.Replace(c)
	zlog.Info().Msgf("watcher: catalog reloaded: sagas=%d", len(c.Sagas))

	if w.reloaded != nil {
		w.reloaded(c)
	}
}
