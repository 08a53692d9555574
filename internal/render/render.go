package render

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/guestbook-server/internal/core"
)

// Page is one of the known templated pages.
type Page int

const (
	// PageIndex is the landing page.
	PageIndex Page = iota
	// PageMessage is the submission form.
	PageMessage
	// PageRead lists stored records.
	PageRead
	// PageError is shown for unknown routes.
	PageError
)

// ErrUnknownPage is returned when rendering a value outside the Page enumeration.
var ErrUnknownPage = errors.New("unknown page")

// partialsGlob matches shared templates parsed into every page.
const partialsGlob = "partials/*.html"

var pageFiles = map[Page]string{
	PageIndex:   "index.html",
	PageMessage: "message.html",
	PageRead:    "read.html",
	PageError:   "error.html",
}

// Pages returns every known page.
func Pages() []Page {
	return []Page{PageIndex, PageMessage, PageRead, PageError}
}

// File is the template file name for p, relative to the templates directory.
func (p Page) File() string {
	return pageFiles[p]
}

func (p Page) String() string {
	switch p {
	case PageIndex:
		return "index"
	case PageMessage:
		return "message"
	case PageRead:
		return "read"
	case PageError:
		return "error"
	default:
		return fmt.Sprintf("page(%d)", int(p))
	}
}

// PageData is the context every page is executed with.
type PageData struct {
	LiveReload bool
	// Messages is only populated for PageRead.
	Messages []core.Entry
}

// environment is an immutable compiled template set.
type environment struct {
	pages    map[Page]*template.Template
	loadedAt time.Time
}

// Renderer executes pages from the current template environment. Reload
// swaps the environment atomically; in-flight renders finish on the set they
// started with.
type Renderer struct {
	dir     string
	log     *zerolog.Logger
	env     atomic.Pointer[environment]
	reloads atomic.Uint64
}

// New compiles every page in dir. It fails if any page is missing or invalid.
func New(dir string, logger *zerolog.Logger) (*Renderer, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	r := &Renderer{dir: dir, log: logger}

	env, err := compile(dir)
	if err != nil {
		return nil, err
	}
	r.env.Store(env)
	return r, nil
}

// Dir returns the templates directory.
func (r *Renderer) Dir() string {
	return r.dir
}

// Reload rebuilds the whole environment. On failure the previous one stays active.
func (r *Renderer) Reload() error {
	env, err := compile(r.dir)
	if err != nil {
		r.log.Warn().Err(err).Str("dir", r.dir).Msg("template reload failed; keeping previous templates")
		return err
	}
	r.env.Store(env)
	n := r.reloads.Add(1)
	r.log.Info().Str("dir", r.dir).Uint64("generation", n).Msg("templates reloaded")
	return nil
}

// Generation counts successful reloads since New.
func (r *Renderer) Generation() uint64 {
	return r.reloads.Load()
}

// LoadedAt reports when the active environment was compiled.
func (r *Renderer) LoadedAt() time.Time {
	return r.env.Load().loadedAt
}

// Render executes page into a buffer and copies it to w. Nothing is written
// when execution fails.
func (r *Renderer) Render(w io.Writer, page Page, data PageData) error {
	env := r.env.Load()
	tmpl, ok := env.pages[page]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPage, page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, page.File(), data); err != nil {
		return fmt.Errorf("execute %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

func compile(dir string) (*environment, error) {
	partials, err := filepath.Glob(filepath.Join(dir, partialsGlob))
	if err != nil {
		return nil, fmt.Errorf("glob partials: %w", err)
	}

	env := &environment{
		pages:    make(map[Page]*template.Template, len(pageFiles)),
		loadedAt: time.Now(),
	}
	for _, page := range Pages() {
		path := filepath.Join(dir, page.File())
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("template %s: %w", page, err)
		}

		files := append([]string{path}, partials...)
		tmpl, err := template.New(page.File()).ParseFiles(files...)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		env.pages[page] = tmpl
	}
	return env, nil
}
