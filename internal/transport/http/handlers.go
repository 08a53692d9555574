package http

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/guestbook-server/internal/core"
	"github.com/vovakirdan/guestbook-server/internal/render"
	"github.com/vovakirdan/guestbook-server/internal/store"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"

	// maxFormBytes caps the submission body.
	maxFormBytes = 1 << 20
)

// staticTypes lists the extensions that get an explicit Content-Type.
var staticTypes = map[string]string{
	".css": "text/css",
	".png": "image/png",
}

// PageHandlers serves the guestbook pages, static assets and submissions.
type PageHandlers struct {
	store      store.MessageStore
	renderer   *render.Renderer
	staticDir  string
	liveReload bool
	log        *zerolog.Logger
}

// NewPageHandlers creates a new page handlers instance.
func NewPageHandlers(st store.MessageStore, renderer *render.Renderer, staticDir string, liveReload bool, logger *zerolog.Logger) *PageHandlers {
	return &PageHandlers{
		store:      st,
		renderer:   renderer,
		staticDir:  staticDir,
		liveReload: liveReload,
		log:        logger,
	}
}

// Index renders the landing page.
// GET /
func (h *PageHandlers) Index(c *gin.Context) {
	h.renderPage(c, http.StatusOK, render.PageIndex, render.PageData{})
}

// MessageForm renders the submission form.
// GET /message.html
func (h *PageHandlers) MessageForm(c *gin.Context) {
	h.renderPage(c, http.StatusOK, render.PageMessage, render.PageData{})
}

// Read lists every stored record, newest first.
// GET /read
func (h *PageHandlers) Read(c *gin.Context) {
	doc, err := h.store.Load(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to load messages")
		h.internalError(c)
		return
	}

	h.renderPage(c, http.StatusOK, render.PageRead, render.PageData{
		Messages: core.BuildListing(doc),
	})
}

// Static streams a file from the static root. Only the last path element of
// the request is used, so lookups never leave the static directory.
// GET /static/*name
func (h *PageHandlers) Static(c *gin.Context) {
	name := path.Base(c.Param("name"))
	if name == "/" || name == "." || name == ".." {
		c.String(http.StatusNotFound, core.ErrStaticNotFound.Message)
		return
	}

	f, err := os.Open(filepath.Join(h.staticDir, name))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			h.log.Warn().Err(err).Str("name", name).Msg("failed to open static file")
		}
		c.String(http.StatusNotFound, core.ErrStaticNotFound.Message)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		c.String(http.StatusNotFound, core.ErrStaticNotFound.Message)
		return
	}

	if ct, ok := staticTypes[strings.ToLower(filepath.Ext(name))]; ok {
		c.Header("Content-Type", ct)
	} else {
		// A nil entry stops net/http from sniffing a type on first write.
		c.Writer.Header()["Content-Type"] = nil
	}
	c.Header("Content-Length", strconv.FormatInt(info.Size(), 10))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, f); err != nil {
		h.log.Debug().Err(err).Str("name", name).Msg("static copy interrupted")
	}
}

// Submit stores a new record and redirects home.
// POST /message
func (h *PageHandlers) Submit(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFormBytes)

	rec, err := core.NewRecord(c.PostForm("username"), c.PostForm("message"))
	if err != nil {
		h.log.Debug().Err(err).Msg("invalid submission")
		c.String(http.StatusBadRequest, core.ErrBadSubmission.Message)
		return
	}

	key, err := h.store.Append(c.Request.Context(), rec)
	if err != nil {
		h.log.Error().Err(err).Str("username", rec.Username).Msg("failed to store message")
		h.internalError(c)
		return
	}

	h.log.Info().Str("username", rec.Username).Str("key", key).Msg("message stored")
	c.Redirect(http.StatusSeeOther, "/")
}

// NotFound renders the error page for GET and answers other methods in plain text.
func (h *PageHandlers) NotFound(c *gin.Context) {
	if c.Request.Method == http.MethodGet {
		h.renderPage(c, http.StatusNotFound, render.PageError, render.PageData{})
		return
	}
	c.String(http.StatusNotFound, core.ErrRouteNotFound.Message)
}

func (h *PageHandlers) renderPage(c *gin.Context, status int, page render.Page, data render.PageData) {
	data.LiveReload = h.liveReload

	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, page, data); err != nil {
		h.log.Error().Err(err).Str("page", page.String()).Msg("failed to render page")
		h.internalError(c)
		return
	}
	c.Data(status, contentTypeHTML, buf.Bytes())
}

func (h *PageHandlers) internalError(c *gin.Context) {
	c.String(http.StatusInternalServerError, core.ErrInternal.Message)
}
