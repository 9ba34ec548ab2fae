// Package main provides the saga player entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/osa030/sagaplayer/internal/app/filter"
	"github.com/osa030/sagaplayer/internal/app/playback"
	"github.com/osa030/sagaplayer/internal/app/session"
	"github.com/osa030/sagaplayer/internal/domain/catalog"
	"github.com/osa030/sagaplayer/internal/infra/audio"
	"github.com/osa030/sagaplayer/internal/infra/config"
	"github.com/osa030/sagaplayer/internal/infra/logger"
	"github.com/osa030/sagaplayer/internal/infra/watcher"
)

var (
	app        = kingpin.New("sagaplayer", "Interactive saga playlist player")
	configPath = app.Flag("config", "Path to config file").Default("config/sagaplayer.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()

	// list-sagas command
	listSagasCmd = app.Command("list-sagas", "List the configured sagas and exit")

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available add filters and exit")
)

func init() {
	// play command (default) - no need to store the command
	app.Command("play", "Show the saga menu (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Handle list-filters command
	if command == listFiltersCmd.FullCommand() {
		printFilters(os.Stdout)
		return
	}

	// Console logger until the config is loaded
	bootstrap := logger.Config{Output: "stderr", Level: "info"}
	if *verbose {
		bootstrap.Level = "debug"
	}
	if _, err := logger.Init(bootstrap); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Load config
	zlog.Debug().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Error().Msgf("Failed to load config: %v", err)
		os.Exit(1)
	}

	closer, err := logger.Init(loggerConfig(cfg.Log))
	if err != nil {
		zlog.Error().Msgf("Failed to initialize logger: %v", err)
		os.Exit(1)
	}
	defer closer.Close()

	if command == listSagasCmd.FullCommand() {
		printSagas(os.Stdout, cfg.Catalog.Build())
		return
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		_ = closer.Close()
		os.Exit(1)
	}
}

// run executes the interactive player. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := audio.NewBackendFromConfig(cfg.Audio)
	if err != nil {
		return errors.Wrap(err, "failed to create audio backend")
	}

	addFilter, err := filter.BuildChain(cfg.Filters, filterDeps())
	if err != nil {
		return errors.Wrap(err, "invalid filter config")
	}

	store := catalog.NewStore(cfg.Catalog.Build())

	if cfg.Catalog.Watch {
		w := watcher.New(*configPath, store)
		go func() {
			if err := w.Run(ctx); err != nil {
				zlog.Warn().Msgf("Catalog watcher stopped: %v", err)
			}
		}()
	}

	controller := session.New(session.Config{
		Catalog:      store,
		Player:       playback.NewPlayer(backend),
		In:           os.Stdin,
		Out:          os.Stdout,
		Echo:         !term.IsTerminal(int(os.Stdin.Fd())),
		ResolveTrack: cfg.Catalog.Resolve,
		AddFilter:    addFilter,
	})

	zlog.Info().Msgf("Starting player: backend=%s sagas=%d", cfg.Audio.Backend, len(cfg.Catalog.Sagas))
	if err := controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	zlog.Info().Msg("Player stopped")
	return nil
}

// loggerConfig applies the command-line flags to the configured logging.
func loggerConfig(c config.LogConfig) logger.Config {
	lc := logger.Config{
		Output:     c.Output,
		Level:      c.Level,
		File:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
	// Override with command-line flags if specified
	if *verbose {
		lc.Level = "debug"
	}
	if *logfile != "" {
		lc.Output = "file"
		lc.File = *logfile
	}
	return lc
}

// printSagas prints the catalog, marking tracks whose files are missing.
func printSagas(w io.Writer, c *catalog.Catalog) {
	fmt.Fprintf(w, "%s\n", c.Title)
	for i, s := range c.Sagas {
		fmt.Fprintf(w, "  %d. %s (%d track(s))\n", i+1, s.Name, len(s.Tracks))
		for _, t := range s.Tracks {
			status := ""
			if _, err := os.Stat(t.ID); err != nil {
				status = " [missing]"
			}
			fmt.Fprintf(w, "       - %s%s\n", t.Name(), status)
		}
	}
}

// filterDeps wires the audio package into the add filters.
func filterDeps() filter.Deps {
	return filter.Deps{
		Extensions: audio.SupportedExtensions(),
		Prober:     filter.ProberFunc(audio.ProbeDuration),
	}
}

// printFilters prints available filters.
func printFilters(w io.Writer) {
	registered := filter.GetRegistered()
	deps := filterDeps()

	fmt.Fprintln(w, "Available Filters:")
	for _, name := range slices.Sorted(maps.Keys(registered)) {
		f := registered[name](deps)
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Fprintf(w, "  %-24s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}
