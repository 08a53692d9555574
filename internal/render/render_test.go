package render

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/vovakirdan/guestbook-server/internal/core"
)

func writeTemplates(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func basicTemplates() map[string]string {
	return map[string]string{
		"partials/nav.html": `{{define "nav"}}<nav>home</nav>{{end}}`,
		"index.html":        `{{template "nav" .}}index v1`,
		"message.html":      `<form method="post" action="/message"></form>`,
		"read.html":         `{{range .Messages}}[{{.Date}}|{{.Username}}|{{.Message}}]{{end}}`,
		"error.html":        `not found`,
	}
}

func TestRenderPages(t *testing.T) {
	dir := t.TempDir()
	writeTemplates(t, dir, basicTemplates())

	r, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		page Page
		data PageData
		want string
	}{
		{page: PageIndex, want: "<nav>home</nav>index v1"},
		{page: PageMessage, want: `<form method="post" action="/message"></form>`},
		{page: PageError, want: "not found"},
		{
			page: PageRead,
			data: PageData{Messages: []core.Entry{
				{Date: "May 01, 2024, 08:15 AM", Username: "bob", Message: "<b>hi</b>"},
			}},
			want: "[May 01, 2024, 08:15 AM|bob|&lt;b&gt;hi&lt;/b&gt;]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.page.String(), func(t *testing.T) {
			var buf bytes.Buffer
			if err := r.Render(&buf, tt.page, tt.data); err != nil {
				t.Fatalf("Render: %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, buf.String())
			}
		})
	}
}

func TestRenderUnknownPage(t *testing.T) {
	dir := t.TempDir()
	writeTemplates(t, dir, basicTemplates())

	r, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var buf bytes.Buffer
	if err := r.Render(&buf, Page(42), PageData{}); !errors.Is(err, ErrUnknownPage) {
		t.Fatalf("expected ErrUnknownPage, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing should be written, got %q", buf.String())
	}
}

func TestNewFailsOnMissingPage(t *testing.T) {
	dir := t.TempDir()
	files := basicTemplates()
	delete(files, "error.html")
	writeTemplates(t, dir, files)

	if _, err := New(dir, nil); err == nil {
		t.Fatalf("expected error for missing error.html")
	}
}

func TestReloadSwapsEnvironment(t *testing.T) {
	dir := t.TempDir()
	writeTemplates(t, dir, basicTemplates())

	r, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	writeTemplates(t, dir, map[string]string{"index.html": `index v2`})

	var buf bytes.Buffer
	if err := r.Render(&buf, PageIndex, PageData{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "v1") {
		t.Fatalf("templates must not change before Reload, got %q", buf.String())
	}

	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if r.Generation() != 1 {
		t.Fatalf("expected generation 1, got %d", r.Generation())
	}

	buf.Reset()
	if err := r.Render(&buf, PageIndex, PageData{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if buf.String() != "index v2" {
		t.Fatalf("expected reloaded template, got %q", buf.String())
	}
}

func TestFailedReloadKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	writeTemplates(t, dir, basicTemplates())

	r, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	writeTemplates(t, dir, map[string]string{"index.html": `{{if}}broken`})
	if err := r.Reload(); err == nil {
		t.Fatalf("expected reload error")
	}
	if r.Generation() != 0 {
		t.Fatalf("failed reload must not bump generation")
	}

	var buf bytes.Buffer
	if err := r.Render(&buf, PageIndex, PageData{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "index v1") {
		t.Fatalf("expected previous templates, got %q", buf.String())
	}
}

func TestRenderExecutionErrorWritesNothing(t *testing.T) {
	dir := t.TempDir()
	files := basicTemplates()
	files["error.html"] = `partial output {{template "missing" .}}`
	writeTemplates(t, dir, files)

	r, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var buf bytes.Buffer
	if err := r.Render(&buf, PageError, PageData{}); err == nil {
		t.Fatalf("expected execution error")
	}
	if buf.Len() != 0 {
		t.Fatalf("partial output leaked: %q", buf.String())
	}
}

func TestConcurrentRenderDuringReload(t *testing.T) {
	dir := t.TempDir()
	writeTemplates(t, dir, basicTemplates())

	r, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				var buf bytes.Buffer
				if err := r.Render(&buf, PageIndex, PageData{}); err != nil {
					t.Errorf("Render: %v", err)
					return
				}
			}
		}()
	}
	for i := 0; i < 10; i++ {
		if err := r.Reload(); err != nil {
			t.Fatalf("Reload: %v", err)
		}
	}
	wg.Wait()
}
