package logger

import (
	"strings"

	"github.com/pkg/errors"
)

// Level is the level at which a logger is configured. All messages sent
// to a level which is below the current level are filtered.
type Level uint32

// Level constants.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

// levelNames holds the tag used in log lines and the name accepted on the
// command line for every level.
var levelNames = [...]struct{ tag, name string }{
	LevelTrace:    {"TRC", "trace"},
	LevelDebug:    {"DBG", "debug"},
	LevelInfo:     {"INF", "info"},
	LevelWarn:     {"WRN", "warn"},
	LevelError:    {"ERR", "error"},
	LevelCritical: {"CRT", "critical"},
	LevelOff:      {"OFF", "off"},
}

// ParseLevel returns the level named by s. Both the long names and the tags
// are accepted, in any case.
func ParseLevel(s string) (Level, error) {
	trimmed := strings.TrimSpace(s)
	for level, names := range levelNames {
		if strings.EqualFold(trimmed, names.name) || strings.EqualFold(trimmed, names.tag) {
			return Level(level), nil
		}
	}
	return LevelInfo, errors.Errorf("invalid log level [%s], expected one of %s",
		s, strings.Join(LevelNames(), ", "))
}

// LevelNames returns the long names of all levels, lowest first.
func LevelNames() []string {
	names := make([]string, len(levelNames))
	for i, level := range levelNames {
		names[i] = level.name
	}
	return names
}

// String returns the tag of the level used in log lines, or "OFF" if the
// level produces no output.
func (l Level) String() string {
	if l >= LevelOff {
		return levelNames[LevelOff].tag
	}
	return levelNames[l].tag
}
