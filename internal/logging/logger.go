// Package logging provides structured logging for the shell and one-shot commands.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/canfiles/canfiles/internal/constants"
)

const timeFormat = "15:04:05"

// Logger wraps zerolog.
type Logger struct {
	zlog   zerolog.Logger
	output io.Writer // current console writer
	file   *lumberjack.Logger
}

// Options configures New.
type Options struct {
	// Console receives human-readable output. Defaults to stderr so that
	// command output on stdout stays clean.
	Console io.Writer

	// File, when set, also writes JSON lines to a rotated log file.
	File string

	// Level is one of debug, info, warn, error. Empty means info.
	Level string
}

// New creates a logger from opts and applies its level globally.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	SetGlobalLevel(level)

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	l := &Logger{output: console}
	var out io.Writer = zerolog.ConsoleWriter{Out: console, TimeFormat: timeFormat}
	if opts.File != "" {
		l.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    constants.LogFileMaxSizeMB,
			MaxBackups: constants.LogFileMaxBackups,
			MaxAge:     constants.LogFileMaxAgeDays,
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(out, l.file)
	}
	l.zlog = zerolog.New(out).With().Timestamp().Logger()
	return l, nil
}

// NewLogger creates a console logger writing to w.
func NewLogger(w io.Writer) *Logger {
	return &Logger{
		zlog:   zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: timeFormat}).With().Timestamp().Logger(),
		output: w,
	}
}

// NewDefaultCLILogger creates a default CLI logger.
func NewDefaultCLILogger() *Logger {
	return NewLogger(os.Stderr)
}

// Nop returns a logger that discards everything. Tests use it.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop(), output: io.Discard}
}

// OrDefault returns l, or a default CLI logger when l is nil.
func OrDefault(l *Logger) *Logger {
	if l == nil {
		return NewDefaultCLILogger()
	}
	return l
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{
		zlog:   l.zlog.With().Str("component", name).Logger(),
		output: l.output,
		file:   l.file,
	}
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// With creates a child logger with additional context.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// SetOutput redirects console output, for example through a progress bar container.
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
	var out io.Writer = zerolog.ConsoleWriter{Out: w, TimeFormat: timeFormat}
	if l.file != nil {
		out = zerolog.MultiLevelWriter(out, l.file)
	}
	l.zlog = l.zlog.Output(out)
}

// Output returns the current console writer.
func (l *Logger) Output() io.Writer {
	return l.output
}

// Debugf logs a debug message with printf-style formatting.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel maps a config level name to a zerolog level.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: timeFormat,
	})
}
