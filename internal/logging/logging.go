// Package logging builds the process logger from configuration.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hpungsan/tripkit/internal/config"
)

// Fields represents a map of fields for structured logging.
type Fields = logrus.Fields

// New creates a logger from cfg. baseDir anchors a relative log file path.
func New(cfg *config.Config, baseDir string) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	switch cfg.LogFormat {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	var output io.Writer
	switch cfg.LogOutput {
	case "file":
		path := cfg.LogFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, err
		}
		output = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   true,
		}
	default:
		output = os.Stderr
	}
	logger.SetOutput(output)

	return logger, nil
}

// Discard returns a logger that drops everything. Used by tests and by
// commands that run before configuration is available.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// Component returns an entry tagged with the component name. A nil logger,
// including a nil *logrus.Logger or *logrus.Entry, logs nowhere.
func Component(logger logrus.FieldLogger, name string) *logrus.Entry {
	switch l := logger.(type) {
	case nil:
		logger = Discard()
	case *logrus.Logger:
		if l == nil {
			logger = Discard()
		}
	case *logrus.Entry:
		if l == nil {
			logger = Discard()
		}
	}
	return logger.WithField("component", name)
}
