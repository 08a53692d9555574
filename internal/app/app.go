package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/guestbook-server/internal/config"
	"github.com/vovakirdan/guestbook-server/internal/core"
	"github.com/vovakirdan/guestbook-server/internal/render"
	"github.com/vovakirdan/guestbook-server/internal/store"
	"github.com/vovakirdan/guestbook-server/internal/store/jsonfile"
	"github.com/vovakirdan/guestbook-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/guestbook-server/internal/transport/http"
	"github.com/vovakirdan/guestbook-server/internal/watcher"
)

// App wires together storage, rendering, the file watcher and transport.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.ReloadHub
	watcher         *watcher.Watcher
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := OpenStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("driver", cfg.Storage.Driver).Str("path", cfg.Storage.Path).Msg("storage initialized")

	renderer, err := render.New(cfg.TemplatesDir, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load templates: %w", err)
	}

	hub := core.NewHub()

	w, err := watcher.New(logger, []string{cfg.TemplatesDir, cfg.StaticDir}, cfg.WatchExtensions, reloadOnChange(renderer, hub))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init watcher: %w", err)
	}

	var liveHub *core.ReloadHub
	if cfg.LiveReload {
		liveHub = hub
	}
	server := transporthttp.NewServer(st, renderer, liveHub, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		watcher:         w,
		store:           st,
		log:             logger,
	}, nil
}

// OpenStore opens the backend named by cfg.Driver.
func OpenStore(cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverJSON, "":
		return jsonfile.New(cfg.Path), nil
	case config.DriverSQLite:
		return sqlite.New(cfg.Path)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.Driver)
	}
}

// reloadOnChange rebuilds the templates and tells live-reload clients.
func reloadOnChange(renderer *render.Renderer, hub *core.ReloadHub) watcher.ChangeFunc {
	return func(path string) {
		if err := renderer.Reload(); err != nil {
			return
		}
		hub.Publish(core.ReloadEvent{Path: path, At: time.Now()})
	}
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the HTTP server, the hub and the watcher, and blocks until
// context cancellation or fatal error. Background goroutines are joined
// before it returns.
func (a *App) Run(ctx context.Context) error {
	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.hub.Run(bgCtx)
	}()
	go func() {
		defer wg.Done()
		if err := a.watcher.Run(bgCtx); err != nil {
			a.log.Warn().Err(err).Msg("file watcher stopped")
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("server is running")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down the server")
		stopBackground()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			runErr = err
		} else {
			runErr = <-serverErr
		}
	}

	stopBackground()
	wg.Wait()
	a.cleanup()
	return runErr
}

// cleanup closes the watcher and the store.
func (a *App) cleanup() {
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			a.log.Debug().Err(err).Msg("failed to close watcher")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
