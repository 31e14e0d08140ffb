// Package logger provides structured, component-scoped logging for the SDK.
// It wraps logrus so that every log line carries the emitting component and
// any request-scoped fields attached via WithField/WithError.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LoggingConfig controls logger construction.
type LoggingConfig struct {
	// Level is the minimum severity to emit: debug, info, warn, error.
	Level string
	// Format selects the output encoding: text or json.
	Format string
	// Output receives log lines. Defaults to stderr.
	Output io.Writer
}

// Logger is a component-scoped structured logger.
type Logger struct {
	base  *logrus.Logger
	entry *logrus.Entry
}

// New constructs a logger for the named component using the given config.
func New(component string, cfg LoggingConfig) *Logger {
	base := logrus.New()

	if cfg.Output != nil {
		base.SetOutput(cfg.Output)
	} else {
		base.SetOutput(os.Stderr)
	}

	switch strings.ToLower(cfg.Format) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	return &Logger{
		base:  base,
		entry: base.WithField("component", component),
	}
}

// NewDefault constructs an info-level text logger for the named component.
func NewDefault(component string) *Logger {
	return New(component, LoggingConfig{Level: "info"})
}

// SetOutput redirects log output. Useful for silencing loggers in tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.base.SetOutput(w)
}

// SetLevel adjusts the minimum severity.
func (l *Logger) SetLevel(level string) {
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return
	}
	l.base.SetLevel(parsed)
}

// WithField returns a logger that includes the given field on every line.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{base: l.base, entry: l.entry.WithField(key, value)}
}

// WithError returns a logger that includes the error on every line.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{base: l.base, entry: l.entry.WithError(err)}
}

func (l *Logger) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Info(args ...interface{})                  { l.entry.Info(args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warn(args ...interface{})                  { l.entry.Warn(args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
