package session

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Command is an in-saga user command.
type Command int

const (
	CommandPause Command = iota + 1
	CommandResume
	CommandStop
	CommandNext
	CommandExit
	CommandAdd
	CommandList
)

var commandNames = map[string]Command{
	"pause":  CommandPause,
	"resume": CommandResume,
	"stop":   CommandStop,
	"next":   CommandNext,
	"exit":   CommandExit,
	"add":    CommandAdd,
	"list":   CommandList,
}

// String returns the string representation of the command.
func (c Command) String() string {
	for name, cmd := range commandNames {
		if cmd == c {
			return name
		}
	}
	return "unknown"
}

// ParseCommand parses a command line. Commands are case-insensitive and
// surrounding whitespace is ignored. Only add takes an argument, which is
// returned with its case preserved.
func ParseCommand(line string) (Command, string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, "", errors.Wrap(ErrInvalidCommand, "empty command")
	}

	cmd, ok := commandNames[strings.ToLower(fields[0])]
	if !ok {
		return 0, "", errors.Wrapf(ErrInvalidCommand, "unknown command: %q", fields[0])
	}

	if cmd == CommandAdd {
		arg := strings.TrimSpace(strings.TrimSpace(line)[len(fields[0]):])
		if arg == "" {
			return 0, "", errors.Wrap(ErrInvalidCommand, "usage: add <path>")
		}
		return cmd, arg, nil
	}
	if len(fields) > 1 {
		return 0, "", errors.Wrapf(ErrInvalidCommand, "%s takes no arguments", cmd)
	}
	return cmd, "", nil
}
