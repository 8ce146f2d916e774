package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"filehost/internal/config"
	"filehost/internal/logging"
	"filehost/internal/server"
	"filehost/internal/storage"
)

// Set at link time with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "filehost",
		Short:         "Minimal keyed or anonymous file hosting over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "optional YAML config file; environment variables take precedence")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL")
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "filehost %s (%s)\n", version, commit)
		},
	}
}

func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// run serves until ctx is cancelled or the listener fails.
func run(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}

	flush, err := logging.InitSentry(cfg.Sentry, version, logger)
	if err != nil {
		logger.WithError(err).Warn("sentry disabled")
	}
	defer flush()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("storage unavailable")
		return err
	}

	srv, err := server.New(server.Config{
		Settings: cfg,
		Store:    store,
		Logger:   logger,
		Build:    server.BuildInfo{Version: version, Commit: commit},
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":     srv.Addr(),
			"base_url": cfg.BaseURL(),
			"storage":  store.Kind(),
			"keyed":    cfg.HasKey(),
			"version":  version,
			"commit":   commit,
		}).Info("starting")
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("shutdown failed")
			return err
		}
		logger.Info("shutdown complete")
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server failed")
			return err
		}
		return nil
	}
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendFilesystem:
		return storage.NewFilesystemBackend(cfg.RootDir)
	case config.BackendS3:
		return storage.NewMinioBackend(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
