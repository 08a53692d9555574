package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/guestbook-server/internal/core"
	"github.com/vovakirdan/guestbook-server/internal/store"
)

// Schema creates the records table. Timestamps are the primary key; Append
// moves a colliding key forward instead of replacing the stored row.
const Schema = `
CREATE TABLE IF NOT EXISTS records (
	ts       TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	message  TEXT NOT NULL
);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now store.Clock
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to seed data alongside the schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Set connection pool limits before setup
	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)

	// Run setup function (e.g., apply schema)
	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// SetClock overrides the clock used to stamp new records.
func (s *SQLiteStore) SetClock(now store.Clock) {
	if now != nil {
		s.now = now
	}
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns every record keyed by timestamp.
func (s *SQLiteStore) Load(ctx context.Context) (core.Document, error) {
	query := `SELECT ts, username, message FROM records`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	doc := make(core.Document)
	for rows.Next() {
		var (
			ts  string
			rec core.Record
		)
		if err := rows.Scan(&ts, &rec.Username, &rec.Message); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		doc[ts] = rec
	}
	return doc, rows.Err()
}

// maxKeyAttempts bounds how far Append walks past taken timestamps.
const maxKeyAttempts = 1000

// Append stores rec under the current timestamp, or the next free
// microsecond after it.
func (s *SQLiteStore) Append(ctx context.Context, rec core.Record) (string, error) {
	query := `
		INSERT OR IGNORE INTO records (ts, username, message)
		VALUES (?, ?, ?)
	`
	ts := s.now()
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key := core.Timestamp(ts)
		res, err := s.db.ExecContext(ctx, query, key, rec.Username, rec.Message)
		if err != nil {
			return "", fmt.Errorf("insert record: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return "", fmt.Errorf("insert record: %w", err)
		}
		if n == 1 {
			return key, nil
		}
		ts = ts.Add(time.Microsecond)
	}
	return "", fmt.Errorf("insert record: no free key after %s", core.Timestamp(s.now()))
}
