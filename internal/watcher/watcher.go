package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ChangeFunc is called with the path of every relevant modification.
type ChangeFunc func(path string)

// Watcher observes directory trees and reports writes to files with
// watched extensions. Events are delivered one at a time, undebounced.
type Watcher struct {
	fsw      *fsnotify.Watcher
	dirs     []string
	exts     []string
	onChange ChangeFunc
	log      *zerolog.Logger
}

// New watches every directory under dirs. Extensions are matched
// case-insensitively and may be given with or without the leading dot.
func New(logger *zerolog.Logger, dirs, exts []string, onChange ChangeFunc) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("watcher: onChange is required")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		dirs:     dirs,
		exts:     normalizeExts(exts),
		onChange: onChange,
		log:      logger,
	}

	for _, dir := range dirs {
		if err := w.addTree(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Run delivers changes until ctx is cancelled, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	w.log.Info().Strs("dirs", w.dirs).Strs("extensions", w.exts).Msg("watching for file changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("file watcher error")
		}
	}
}

// Close stops the watcher without waiting for Run.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.log.Warn().Err(err).Str("path", ev.Name).Msg("failed to watch new directory")
			}
			return
		}
	}

	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}
	if !w.matches(ev.Name) {
		return
	}

	w.log.Info().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("file changed")
	w.onChange(ev.Name)
}

func (w *Watcher) matches(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range w.exts {
		if ext == want {
			return true
		}
	}
	return false
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}
