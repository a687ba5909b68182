package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string, err error)
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// Options controls how the logrus logger is built.
type Options struct {
	Level  string
	Format string // text or json
	File   string // optional append-only log file, written in addition to Output
	Output io.Writer
}

type LogrusLogger struct {
	logger *logrus.Logger
	entry  *logrus.Entry
	closer io.Closer
}

func NewLogrus() Logger {
	logger := logrus.New()
	return &LogrusLogger{
		logger: logger,
		entry:  logrus.NewEntry(logger),
	}
}

// New builds a logger from options. The returned close function releases the log file.
func New(opts Options) (*LogrusLogger, func() error, error) {
	logger := logrus.New()

	level := opts.Level
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(lvl)

	switch opts.Format {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, nil, fmt.Errorf("invalid log format %q", opts.Format)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	l := &LogrusLogger{logger: logger}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		out = io.MultiWriter(out, f)
		l.closer = f
	}
	logger.SetOutput(out)
	l.entry = logrus.NewEntry(logger)

	return l, l.Close, nil
}

func (l *LogrusLogger) Debug(msg string) {
	l.entry.Debug(msg)
}

func (l *LogrusLogger) Info(msg string) {
	l.entry.Info(msg)
}

func (l *LogrusLogger) Warn(msg string) {
	l.entry.Warn(msg)
}

func (l *LogrusLogger) Error(msg string, err error) {
	l.entry.WithError(err).Error(msg)
}

func (l *LogrusLogger) WithField(key string, value interface{}) Logger {
	return &LogrusLogger{
		logger: l.logger,
		entry:  l.entry.WithField(key, value),
	}
}

func (l *LogrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &LogrusLogger{
		logger: l.logger,
		entry:  l.entry.WithFields(fields),
	}
}

// Close releases the log file, if any.
func (l *LogrusLogger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

type nopLogger struct{}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

func (nopLogger) Debug(string) {}
func (nopLogger) Info(string) {}
func (nopLogger) Warn(string) {}
func (nopLogger) Error(string, error) {}
func (n nopLogger) WithField(string, interface{}) Logger { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger { return n }
