package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/guestbook-server/internal/config"
	"github.com/vovakirdan/guestbook-server/internal/core"
	"github.com/vovakirdan/guestbook-server/internal/render"
	"github.com/vovakirdan/guestbook-server/internal/store"
)

// NewServer builds the guestbook HTTP server.
// hub may be nil when live reload is disabled.
func NewServer(st store.MessageStore, renderer *render.Renderer, hub *core.ReloadHub, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(st, renderer, hub, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewHandler routes GET /ws/reload straight to the WebSocket handler when
// live reload is on and everything else to the gin engine.
func NewHandler(st store.MessageStore, renderer *render.Renderer, hub *core.ReloadHub, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	router := NewRouter(st, renderer, hub, cfg, logger)
	if !cfg.LiveReload || hub == nil {
		return router
	}

	reload := NewReloadWSHandler(hub, logger)
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if r.Method == stdhttp.MethodGet && r.URL.Path == ReloadPath {
			reload.ServeHTTP(w, r)
			return
		}
		router.ServeHTTP(w, r)
	})
}

// NewRouter wires the page routes onto a gin engine. The live-reload
// endpoint is mounted by NewHandler. Callers choose the gin mode.
func NewRouter(st store.MessageStore, renderer *render.Renderer, hub *core.ReloadHub, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	router := gin.New()
	// Unknown paths are 404s, never redirects.
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(logger))

	liveReload := cfg.LiveReload && hub != nil
	pages := NewPageHandlers(st, renderer, cfg.StaticDir, liveReload, logger)

	router.GET("/", pages.Index)
	router.GET("/message.html", pages.MessageForm)
	router.GET("/read", pages.Read)
	router.GET("/static/*name", pages.Static)
	router.GET("/healthz", healthHandler)

	limiter := NewIPRateLimiter(cfg.HTTP.SubmitRateLimit, logger)
	router.POST("/message", limiter.Middleware(), pages.Submit)

	router.NoRoute(pages.NotFound)

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
