package jsonfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/guestbook-server/internal/core"
	"github.com/vovakirdan/guestbook-server/internal/store"
)

// stepClock returns start, start+1s, start+2s, ... on successive calls.
func stepClock(start time.Time) store.Clock {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(time.Second)
		return t
	}
}

func newTestStore(t *testing.T) (*JSONStore, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "storage", "data.json")
	if _, err := Init(path); err != nil {
		t.Fatalf("init: %v", err)
	}

	start := time.Date(2024, time.February, 10, 14, 30, 0, 0, time.Local)
	s := New(path, WithClock(stepClock(start)))
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestInitCreatesEmptyDocumentOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage", "data.json")

	created, err := Init(path)
	if err != nil || !created {
		t.Fatalf("expected document to be created, got created=%v err=%v", created, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.TrimSpace(string(data)) != "{}" {
		t.Fatalf("unexpected initial document %q", data)
	}

	if err := os.WriteFile(path, []byte(`{"2024-01-01T00:00:00":{"username":"a","message":"b"}}`), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	created, err = Init(path)
	if err != nil || created {
		t.Fatalf("existing document must be left alone, got created=%v err=%v", created, err)
	}

	s := New(path)
	defer s.Close()
	doc, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc) != 1 {
		t.Fatalf("expected seeded record to survive, got %v", doc)
	}
}

func TestAppendAndLoad(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	key, err := s.Append(ctx, core.Record{Username: "alice", Message: "hello <world>"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if key != "2024-02-10T14:30:00.000000" {
		t.Fatalf("unexpected key %q", key)
	}

	doc, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rec, ok := doc[key]
	if !ok || rec.Username != "alice" || rec.Message != "hello <world>" {
		t.Fatalf("record not stored: %+v", doc)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "{\n    \"2024-02-10T14:30:00.000000\": {\n        \"username\": \"alice\",\n        \"message\": \"hello <world>\"\n    }\n}\n"
	if string(data) != want {
		t.Fatalf("unexpected document layout:\n%s", data)
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing.json"))
	defer s.Close()

	if _, err := s.Load(context.Background()); !errors.Is(err, store.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := s.Append(context.Background(), core.Record{Username: "a", Message: "b"}); !errors.Is(err, store.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized on append, got %v", err)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s := New(path)
	defer s.Close()

	_, err := s.Load(context.Background())
	if err == nil || errors.Is(err, store.ErrNotInitialized) {
		t.Fatalf("expected parse error, got %v", err)
	}

	// A failed append must leave the file untouched.
	if _, err := s.Append(context.Background(), core.Record{Username: "a", Message: "b"}); err == nil {
		t.Fatalf("expected append to fail on corrupt document")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "{not json" {
		t.Fatalf("corrupt document was modified: %q", data)
	}
}

func TestConcurrentAppendsAllSurvive(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	const writers = 25
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Append(ctx, core.Record{Username: "user", Message: string(rune('a' + i))}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("append: %v", err)
	}

	doc, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc) != writers {
		t.Fatalf("expected %d records, got %d", writers, len(doc))
	}
}

func TestSequentialAppendsWithWallClock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if _, err := Init(path); err != nil {
		t.Fatalf("init: %v", err)
	}
	s := New(path)
	defer s.Close()
	ctx := context.Background()

	const n = 50
	keys := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		key, err := s.Append(ctx, core.Record{Username: "u", Message: "m"})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		keys[key] = true
	}
	if len(keys) != n {
		t.Fatalf("expected %d distinct keys, got %d", n, len(keys))
	}

	doc, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc) != n {
		t.Fatalf("expected %d records, got %d", n, len(doc))
	}
}

func TestFrozenClockStillAddsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if _, err := Init(path); err != nil {
		t.Fatalf("init: %v", err)
	}
	frozen := time.Date(2024, time.February, 10, 14, 30, 0, 0, time.Local)
	s := New(path, WithClock(func() time.Time { return frozen }))
	defer s.Close()
	ctx := context.Background()

	var got []string
	for _, msg := range []string{"one", "two", "three"} {
		key, err := s.Append(ctx, core.Record{Username: "u", Message: msg})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		got = append(got, key)
	}

	want := []string{
		"2024-02-10T14:30:00.000000",
		"2024-02-10T14:30:00.000001",
		"2024-02-10T14:30:00.000002",
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("key %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	doc, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc[want[0]].Message != "one" || doc[want[2]].Message != "three" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestAppendAfterClose(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	if _, err := s.Append(context.Background(), core.Record{Username: "a", Message: "b"}); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestLoadCancelledContext(t *testing.T) {
	s, _ := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Load(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from Load, got %v", err)
	}
}
