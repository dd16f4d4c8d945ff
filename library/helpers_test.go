package library

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

var (
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

type updateCall struct {
	id   string
	form BookForm
}

// fakeAPI records calls. Hooks, when set, replace the default behavior.
type fakeAPI struct {
	mu      sync.Mutex
	books   []Book
	creates []BookForm
	updates []updateCall
	deletes []string
	lists   int

	listFn   func(ctx context.Context, call int) ([]Book, error)
	createFn func(ctx context.Context, form BookForm) (*Book, error)
	updateFn func(ctx context.Context, id string, form BookForm) (*Book, error)
	deleteFn func(ctx context.Context, id string) error
}

func (f *fakeAPI) List(ctx context.Context) ([]Book, error) {
	f.mu.Lock()
	f.lists++
	call := f.lists
	books := append([]Book(nil), f.books...)
	fn := f.listFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, call)
	}
	return books, nil
}

func (f *fakeAPI) Create(ctx context.Context, form BookForm) (*Book, error) {
	f.mu.Lock()
	f.creates = append(f.creates, form)
	fn := f.createFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, form)
	}
	return &Book{ID: "new", Title: form.Title}, nil
}

func (f *fakeAPI) Update(ctx context.Context, id string, form BookForm) (*Book, error) {
	f.mu.Lock()
	f.updates = append(f.updates, updateCall{id: id, form: form})
	fn := f.updateFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, id, form)
	}
	return &Book{ID: id, Title: form.Title}, nil
}

func (f *fakeAPI) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	f.deletes = append(f.deletes, id)
	fn := f.deleteFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, id)
	}
	return nil
}

func (f *fakeAPI) calls() (lists, creates, updates, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists, len(f.creates), len(f.updates), len(f.deletes)
}

type note struct {
	level Level
	msg   string
}

type fakeScreen struct {
	mu       sync.Mutex
	notes    []note
	confirm  bool
	prompts  []string
	scrolled int
}

func (s *fakeScreen) Notify(level Level, msg string) {
	s.mu.Lock()
	s.notes = append(s.notes, note{level, msg})
	s.mu.Unlock()
}

func (s *fakeScreen) Confirm(prompt string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	return s.confirm
}

func (s *fakeScreen) ScrollToTop() {
	s.mu.Lock()
	s.scrolled++
	s.mu.Unlock()
}

func (s *fakeScreen) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, n.msg)
	}
	return out
}

type memRecorder struct {
	mu      sync.Mutex
	actions []Action
}

func (r *memRecorder) Record(_ context.Context, a Action) error {
	r.mu.Lock()
	r.actions = append(r.actions, a)
	r.mu.Unlock()
	return nil
}

// chdir is a Go 1.21-compatible stand-in for testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore cwd %s: %v", prev, err)
		}
	})
}
