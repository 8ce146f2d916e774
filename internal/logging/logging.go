// Package logging configures the logrus logger shared by the file host and
// optionally forwards warnings and errors to Sentry.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"filehost/internal/config"
)

// New returns a logger writing to stdout with the configured level and format.
func New(cfg config.LogConfig) (*logrus.Logger, error) {
	return NewWithOutput(cfg, os.Stdout)
}

func NewWithOutput(cfg config.LogConfig, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger, nil
}

// InitSentry initialises the Sentry client and attaches a hook to logger.
// The returned func flushes buffered events and must be called on shutdown.
// With an empty DSN it does nothing.
func InitSentry(cfg config.SentryConfig, release string, logger *logrus.Logger) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          "filehost@" + release,
		AttachStacktrace: true,
	})
	if err != nil {
		return func() {}, fmt.Errorf("sentry init: %w", err)
	}

	logger.AddHook(NewSentryHook(sentry.CurrentHub(), nil))
	return func() { sentry.Flush(2 * time.Second) }, nil
}
