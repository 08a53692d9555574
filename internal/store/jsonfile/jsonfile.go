package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vovakirdan/guestbook-server/internal/core"
	"github.com/vovakirdan/guestbook-server/internal/store"
)

const indent = "    "

// JSONStore implements store.Store on a single JSON document.
// Every append is a read-modify-write performed by one writer goroutine, so
// concurrent submissions cannot overwrite each other.
type JSONStore struct {
	path string
	now  store.Clock

	requests  chan appendRequest
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type appendRequest struct {
	rec   core.Record
	reply chan appendResult
}

type appendResult struct {
	key string
	err error
}

// Option configures a JSONStore.
type Option func(*JSONStore)

// WithClock overrides the clock used to stamp new records.
func WithClock(now store.Clock) Option {
	return func(s *JSONStore) {
		if now != nil {
			s.now = now
		}
	}
}

// New opens the document at path and starts its writer.
// The file is not required to exist yet; Load and Append report
// store.ErrNotInitialized until it does.
func New(path string, opts ...Option) *JSONStore {
	s := &JSONStore{
		path:     path,
		now:      time.Now,
		requests: make(chan appendRequest),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.writeLoop()
	return s
}

// Path returns the document location.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the whole document.
func (s *JSONStore) Load(ctx context.Context) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return readDocument(s.path)
}

// Append queues rec for the writer and waits for the result.
// If ctx ends after the request was accepted the write may still complete.
func (s *JSONStore) Append(ctx context.Context, rec core.Record) (string, error) {
	req := appendRequest{rec: rec, reply: make(chan appendResult, 1)}

	select {
	case s.requests <- req:
	case <-s.quit:
		return "", store.ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case res := <-req.reply:
		return res.key, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops the writer after any in-flight append finishes.
func (s *JSONStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
	<-s.done
	return nil
}

func (s *JSONStore) writeLoop() {
	defer close(s.done)

	for {
		select {
		case <-s.quit:
			return
		case req := <-s.requests:
			key, err := s.apply(req.rec)
			req.reply <- appendResult{key: key, err: err}
		}
	}
}

func (s *JSONStore) apply(rec core.Record) (string, error) {
	doc, err := readDocument(s.path)
	if err != nil {
		return "", err
	}

	key := core.NextKey(s.now(), func(k string) bool {
		_, ok := doc[k]
		return ok
	})
	doc[key] = rec

	if err := writeDocument(s.path, doc); err != nil {
		return "", err
	}
	return key, nil
}

// Init creates an empty document at path if none exists. It reports whether
// a file was created.
func Init(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create storage dir: %w", err)
	}
	if err := writeDocument(path, core.Document{}); err != nil {
		return false, err
	}
	return true, nil
}

func readDocument(path string) (core.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotInitialized, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc core.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc == nil {
		doc = core.Document{}
	}
	return doc, nil
}

// writeDocument replaces path atomically: readers see either the old or the
// new document, never a partial one.
func writeDocument(path string, doc core.Document) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
