// Package session provides the interactive menu and the in-saga command loop.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/sagaplayer/internal/app/filter"
	"github.com/osa030/sagaplayer/internal/app/playback"
	"github.com/osa030/sagaplayer/internal/domain/catalog"
	"github.com/osa030/sagaplayer/internal/domain/playlist"
	"github.com/osa030/sagaplayer/internal/domain/track"
)

// Errors
var (
	ErrInvalidCommand = errors.New("invalid command")
	ErrEmptyPlaylist  = errors.New("empty playlist")
)

const (
	bannerWidth = 46
	controls    = "Controls: [pause] [resume] [stop] [next] [add <file>] [list] [exit]"
)

// Config holds the controller dependencies.
type Config struct {
	Catalog *catalog.Store
	Player  *playback.Player
	In      io.Reader
	Out     io.Writer

	// Echo writes each input line back after its prompt, for non-terminal input.
	Echo bool

	// ResolveTrack maps a path typed with add to a track identifier.
	// Paths are used as typed when nil.
	ResolveTrack func(path string) string

	// AddFilter screens tracks added with the add command. Nil accepts all.
	AddFilter *filter.Chain
}

// Controller drives the player from line-oriented user input.
// Run and PlaySaga must be called from a single goroutine.
type Controller struct {
	store   *catalog.Store
	player  *playback.Player
	in      io.Reader
	out     io.Writer
	echo    bool
	resolve func(string) string
	filters *filter.Chain

	readOnce sync.Once
	lines    chan string
	done     chan struct{}
}

// New creates a controller.
func New(cfg Config) *Controller {
	resolve := cfg.ResolveTrack
	if resolve == nil {
		resolve = func(p string) string { return p }
	}
	return &Controller{
		store:   cfg.Catalog,
		player:  cfg.Player,
		in:      cfg.In,
		out:     cfg.Out,
		echo:    cfg.Echo,
		resolve: resolve,
		filters: cfg.AddFilter,
		lines:   make(chan string),
		done:    make(chan struct{}),
	}
}

// Run shows the saga menu until the user exits, input ends or ctx is
// cancelled. The player is closed on return.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	defer func() {
		if err := c.player.Close(); err != nil {
			zlog.Warn().Msgf("session: failed to close player: %v", err)
		}
	}()
	c.startReader()

	for {
		cat := c.store.Get()
		c.printMenu(cat)

		line, err := c.readLine(ctx)
		if err != nil {
			return c.finish(err)
		}

		sel, err := cat.Select(line)
		if err != nil {
			zlog.Debug().Msgf("session: %v", errors.Mark(err, ErrInvalidCommand))
			c.println("Invalid choice. Please try again.")
			continue
		}
		if sel.Exit {
			c.println("Exiting...")
			return nil
		}

		if err := c.PlaySaga(ctx, sel.Saga); err != nil {
			if errors.Is(err, ErrEmptyPlaylist) {
				continue
			}
			return c.finish(err)
		}
	}
}

// PlaySaga plays a saga until the user stops, exits or input ends.
// Leaving the saga stops the player and clears its playlist.
func (c *Controller) PlaySaga(ctx context.Context, saga catalog.Saga) error {
	c.startReader()

	pl := saga.Playlist()
	if pl.IsEmpty() {
		c.println("The selected saga playlist is empty.")
		return errors.Wrapf(ErrEmptyPlaylist, "saga %s", saga.Name)
	}

	sessionID := uuid.NewString()
	log := zlog.With().Str("session", sessionID).Str("saga", saga.Name).Logger()
	log.Info().Msgf("session: saga started: tracks=%d", pl.Len())
	c.printf("Playlist initialized with %d track(s).\n", pl.Len())

	c.player.SetPlaylist(pl)
	defer c.leaveSaga(&log)

	for {
		t, _ := pl.Next()
		c.printf("Loading track: %s\n", t.Name())
		c.playTrack(&log, t)

		next, err := c.commandLoop(ctx, &log, pl)
		if err != nil {
			return err
		}
		if !next {
			return nil
		}
	}
}

// playTrack stops whatever plays, then loads and plays t.
func (c *Controller) playTrack(log *zerolog.Logger, t track.Track) {
	_ = c.player.Stop()

	if err := c.player.LoadTrack(t); err != nil {
		log.Warn().Msgf("session: load failed: track=%s err=%v", t.ID, err)
		c.reportLoadError(t, err)
		return
	}
	if err := c.player.Play(); err != nil {
		log.Warn().Msgf("session: play failed: track=%s err=%v", t.ID, err)
		c.printf("Error playing audio file: %v\n", err)
		return
	}
	c.println("Playing...")
}

// commandLoop handles commands and player events for the current track.
// It returns true when the user asked for the next track.
func (c *Controller) commandLoop(ctx context.Context, log *zerolog.Logger, pl *playlist.Playlist) (bool, error) {
	c.printf("\n%s\n", controls)
	c.print("Enter command: ")

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()

		case ev := <-c.player.Events():
			if c.handleEvent(log, ev) {
				c.print("Enter command: ")
			}

		case line, ok := <-c.lines:
			if !ok {
				return false, io.EOF
			}
			c.echoLine(line)

			next, leave := c.handleCommand(ctx, log, pl, line)
			if next || leave {
				return next, nil
			}
			c.printf("\n%s\n", controls)
			c.print("Enter command: ")
		}
	}
}

// handleEvent passes completion events to the player. It returns true when
// something was printed.
func (c *Controller) handleEvent(log *zerolog.Logger, ev playback.Event) bool {
	if ev.Type != playback.EventTrackEnded {
		log.Debug().Msgf("session: playback event: type=%s track=%s state=%s", ev.Type, ev.Track.ID, ev.State)
		return false
	}

	next, advanced, err := c.player.HandleEnded(ev)
	if err != nil {
		log.Warn().Msgf("session: auto-advance failed: track=%s err=%v", next.ID, err)
		c.println("")
		c.reportLoadError(next, err)
		return true
	}
	if !advanced {
		return false
	}

	c.printf("\nAuto-playing next track: %s\n", next.Name())
	return true
}

// handleCommand runs one command line. It returns whether to load the next
// track and whether to leave the saga.
func (c *Controller) handleCommand(ctx context.Context, log *zerolog.Logger, pl *playlist.Playlist, line string) (next, leave bool) {
	cmd, arg, err := ParseCommand(line)
	if err != nil {
		log.Debug().Msgf("session: %v", err)
		c.println("Invalid command. Try again.")
		return false, false
	}
	log.Debug().Msgf("session: command: %s", cmd)

	switch cmd {
	case CommandPause:
		c.reportStopStatus(c.player.Stop())
		c.println("Paused.")

	case CommandResume:
		if err := c.player.Play(); err != nil {
			c.reportPlayError(err)
			return false, false
		}
		c.println("Resumed.")

	case CommandStop:
		c.reportStopStatus(c.player.Stop())
		c.println("Playback stopped.")
		return false, true

	case CommandNext:
		c.println("Loading next track...")
		return true, false

	case CommandExit:
		c.println("Exiting saga...")
		c.reportStopStatus(c.player.Stop())
		return false, true

	case CommandAdd:
		t := track.New(c.resolve(arg))
		if c.filters != nil {
			if result := c.filters.Execute(ctx, t, pl); !result.Accepted {
				log.Info().Msgf("session: add rejected: track=%s code=%s", t.ID, result.Code)
				c.printf("Cannot add %s: %s\n", arg, result.Code)
				return false, false
			}
		}
		pl.Add(t)
		c.printf("Added to playlist: %s\n", arg)

	case CommandList:
		c.printPlaylist(pl)
	}
	return false, false
}

// leaveSaga stops playback and drops the playlist association.
func (c *Controller) leaveSaga(log *zerolog.Logger) {
	_ = c.player.Stop()
	c.player.SetPlaylist(nil)
	log.Info().Msg("session: saga ended")
}

// finish converts the end of input into a normal exit.
func (c *Controller) finish(err error) error {
	if errors.Is(err, io.EOF) {
		c.println("")
		c.println("Exiting...")
		return nil
	}
	return err
}

func (c *Controller) reportLoadError(t track.Track, err error) {
	switch {
	case errors.Is(err, playback.ErrResourceNotFound):
		c.printf("File does not exist: %s\n", t.ID)
	case errors.Is(err, playback.ErrUnsupportedFormat):
		c.printf("Unsupported audio format: %s\n", t.ID)
	case errors.Is(err, playback.ErrBackendUnavailable):
		c.printf("Audio device unavailable: %v\n", err)
	default:
		c.printf("Error loading audio file: %v\n", err)
	}
}

func (c *Controller) reportStopStatus(err error) {
	switch {
	case err == nil:
	case errors.Is(err, playback.ErrNothingLoaded):
		c.println("No audio loaded to stop.")
	case errors.Is(err, playback.ErrNotPlaying):
		c.println("Audio is not playing.")
	default:
		c.printf("Error stopping audio: %v\n", err)
	}
}

func (c *Controller) reportPlayError(err error) {
	if errors.Is(err, playback.ErrNothingLoaded) {
		c.println("No audio loaded.")
		return
	}
	c.printf("Error playing audio file: %v\n", err)
}

func (c *Controller) printMenu(cat *catalog.Catalog) {
	rule := strings.Repeat("=", bannerWidth)
	line := strings.Repeat("-", bannerWidth)

	c.println(rule)
	c.println(center(cat.Title))
	if cat.Subtitle != "" {
		c.println(center(cat.Subtitle))
	}
	c.println(rule)
	c.println(center("Choose a Saga"))
	c.println(line)
	for i, s := range cat.Sagas {
		c.printf("  %d. %s\n", i+1, s.Name)
	}
	c.printf("  %d. Exit\n", cat.ExitChoice())
	c.println(line)
	c.printf("Select a Saga (1-%d): ", cat.ExitChoice())
}

func (c *Controller) printPlaylist(pl *playlist.Playlist) {
	c.printf("%s (%d track(s)):\n", pl.Name, pl.Len())
	for i, t := range pl.Tracks() {
		marker := " "
		if i == pl.Position() {
			marker = ">"
		}
		c.printf(" %s %d. %s\n", marker, i+1, t.Name())
	}
}

// startReader starts the goroutine that feeds input lines to the loop.
// The channel is closed at the end of input.
func (c *Controller) startReader() {
	c.readOnce.Do(func() {
		go func() {
			defer close(c.lines)
			scanner := bufio.NewScanner(c.in)
			for scanner.Scan() {
				select {
				case c.lines <- scanner.Text():
				case <-c.done:
					return
				}
			}
			if err := scanner.Err(); err != nil {
				zlog.Error().Msgf("session: failed to read input: %v", err)
			}
		}()
	})
}

// readLine waits for the next input line.
func (c *Controller) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		c.echoLine(line)
		return line, nil
	}
}

func (c *Controller) echoLine(line string) {
	if c.echo {
		c.println(line)
	}
}

func (c *Controller) print(s string) {
	_, _ = io.WriteString(c.out, s)
}

func (c *Controller) println(s string) {
	_, _ = fmt.Fprintln(c.out, s)
}

func (c *Controller) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

// center pads s to center it in the banner.
func center(s string) string {
	pad := (bannerWidth - len(s)) / 2
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}
