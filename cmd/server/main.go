package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/guestbook-server/internal/app"
	"github.com/vovakirdan/guestbook-server/internal/config"
	applog "github.com/vovakirdan/guestbook-server/internal/log"
	"github.com/vovakirdan/guestbook-server/internal/store/jsonfile"
)

type options struct {
	configPath string
	overrides  config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "guestbook",
		Short:         "Serve the guestbook web application",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config.yaml (default ./config.yaml)")
	flags.StringVar(&opts.overrides.Addr, "addr", "", "HTTP listen address")
	flags.StringVar(&opts.overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.overrides.Storage.Path, "storage", "", "storage document path")
	flags.BoolVar(&opts.overrides.LiveReload, "live-reload", false, "push template reloads to open browser tabs")

	root.AddCommand(newInitCmd(opts))
	return root
}

func newInitCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create an empty storage document if none exists",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger := applog.New(cfg.LogLevel)

			if cfg.Storage.Driver != config.DriverJSON {
				logger.Info().Str("driver", cfg.Storage.Driver).Msg("nothing to initialize; schema is created on start")
				return nil
			}

			created, err := jsonfile.Init(cfg.Storage.Path)
			if err != nil {
				logger.Error().Err(err).Str("path", cfg.Storage.Path).Msg("failed to initialize storage")
				return err
			}
			if created {
				logger.Info().Str("path", cfg.Storage.Path).Msg("created empty storage document")
			} else {
				logger.Info().Str("path", cfg.Storage.Path).Msg("storage document already exists")
			}
			return nil
		},
	}
}

func loadConfig(opts *options) (config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env file: %v\n", err)
	}

	bootstrap := applog.New("info")
	cfg, path, err := config.Load(bootstrap, opts.configPath)
	if err != nil {
		bootstrap.Error().Err(err).Str("path", path).Msg("failed to load config")
		return cfg, err
	}
	cfg.UpdateFrom(opts.overrides)
	return cfg, nil
}

func serve(parent context.Context, opts *options) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := applog.New(cfg.LogLevel)
	gin.SetMode(ginMode(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize application")
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Bool("live_reload", cfg.LiveReload).Msg("starting guestbook server")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// ginMode prints gin's route table only when debugging.
func ginMode(level string) string {
	if applog.ParseLevel(level) <= zerolog.DebugLevel {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}
