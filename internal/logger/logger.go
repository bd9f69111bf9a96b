// Package logger provides structured logging with file and console output.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog for structured logging.
type Logger struct {
	zerolog.Logger
}

// New creates a new logger with the specified level and optional file output.
func New(level string, logFile string) (*Logger, error) {
	return NewWithWriter(level, logFile, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
}

// NewWithWriter builds a logger that writes to console plus the optional log
// file. Tests pass a buffer as console to inspect records.
func NewWithWriter(level string, logFile string, console io.Writer) (*Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	writers := []io.Writer{console}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return nil, err
		}

		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, err
		}
		writers = append(writers, file)
	}

	multi := zerolog.MultiLevelWriter(writers...)

	logger := zerolog.New(multi).
		Level(lvl).
		With().
		Timestamp().
		Caller().
		Logger()

	return &Logger{logger}, nil
}

// Component returns a child logger tagged with component=name.
func (l *Logger) Component(name string) *zerolog.Logger {
	child := l.With().Str("component", name).Logger()
	return &child
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// Global is the global logger instance for convenience.
var Global *Logger

// Init initializes the global logger.
func Init(level string, logFile string) error {
	l, err := New(level, logFile)
	if err != nil {
		return err
	}
	Global = l
	return nil
}

// Get returns the global logger.
// Returns a no-op logger if not initialized.
func Get() *Logger {
	if Global == nil {
		return Nop()
	}
	return Global
}

// Info logs an info message using the global logger.
func Info(msg string) {
	if Global != nil {
		Global.Info().Msg(msg)
	}
}

// Error logs an error message using the global logger.
func Error(msg string, err error) {
	if Global != nil {
		Global.Error().Err(err).Msg(msg)
	}
}
