// Package logging builds the zerolog loggers used by every tool: readable
// lines on the console and, optionally, JSON lines in a per-run log file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures New
type Options struct {
	Level   string    // debug, info, warn or error
	Dir     string    // directory for log files
	Tool    string    // prefixes the log file name
	Console io.Writer // defaults to stderr
	File    bool      // also write <Dir>/<Tool>_<timestamp>.log
}

// Logger is a zerolog logger plus the file it writes to, if any
type Logger struct {
	zerolog.Logger
	Path string
	file *os.File
}

// Close closes the log file
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel maps a level name to a zerolog level. Empty means info.
func ParseLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q", name)
}

// New creates the logger described by opts
func New(opts Options, now time.Time) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05"}}
	l := &Logger{}
	if opts.File {
		dir := opts.Dir
		if dir == "" {
			dir = "logs"
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		tool := opts.Tool
		if tool == "" {
			tool = "mhw"
		}
		l.Path = filepath.Join(dir, fmt.Sprintf("%s_%s.log", tool, now.Format("20060102_150405")))
		f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		l.file = f
		writers = append(writers, f)
	}

	l.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Str("tool", opts.Tool).
		Logger()
	return l, nil
}
