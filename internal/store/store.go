package store

import (
	"context"
	"errors"
	"time"

	"github.com/vovakirdan/guestbook-server/internal/core"
)

var (
	// ErrNotInitialized is returned when the storage document does not exist yet.
	ErrNotInitialized = errors.New("storage not initialized")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
)

// Clock returns the current time. Stores use it to stamp new records.
type Clock func() time.Time

// MessageStore handles guestbook record persistence.
type MessageStore interface {
	// Load returns every stored record keyed by timestamp.
	Load(ctx context.Context) (core.Document, error)

	// Append stores rec under the current timestamp and returns that key.
	Append(ctx context.Context, rec core.Record) (string, error)
}

// Store is a MessageStore that owns resources.
type Store interface {
	MessageStore

	// Close releases the underlying file or database handle.
	Close() error
}
