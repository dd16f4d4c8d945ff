package library

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
)

// User-facing notification texts.
const (
	MsgLoadFailed    = "Failed to load books"
	MsgTitleRequired = "Title required"
	MsgFilesRequired = "PDF & Cover required"
	MsgAdded         = "Added"
	MsgUpdated       = "Updated"
	MsgSaveFailed    = "Save failed"
	MsgDeleted       = "Deleted"
	MsgDeleteFailed  = "Delete failed"
	MsgBusy          = "Request already in progress"

	deletePrompt = "Delete this book?"
	createSlot   = "\x00create"
)

// ErrDeclined is returned by Delete when the admin does not confirm.
var ErrDeclined = errors.New("delete not confirmed")

// AdminManager drives the books admin screen: the cached list, the search
// string, the create/edit draft and the three mutations. The list is only
// ever replaced wholesale after a load.
type AdminManager struct {
	api     BookAPI
	screen  Screen
	journal Recorder

	pdf   *FilePicker
	cover *FilePicker

	mu        sync.Mutex
	books     []Book
	loading   bool
	search    string
	editingID string
	title     string
	author    string
	category  string
	busy      map[string]struct{}
	loadSeq   uint64
}

// NewAdminManager wires the screen controller. journal may be nil.
func NewAdminManager(api BookAPI, screen Screen, journal Recorder) *AdminManager {
	return &AdminManager{
		api:     api,
		screen:  screen,
		journal: journal,
		pdf:     NewPDFPicker(),
		cover:   NewCoverPicker(),
		books:   []Book{},
		busy:    make(map[string]struct{}),
	}
}

// ------------------ List loader ------------------

// LoadBooks fetches the full list and replaces the cache. On failure the
// previous list is kept. Responses to a load that has since been
// superseded by a newer one are dropped.
func (m *AdminManager) LoadBooks(ctx context.Context) error {
	ctx, reqID := withNewRequestID(ctx)

	m.mu.Lock()
	m.loadSeq++
	seq := m.loadSeq
	m.loading = true
	m.mu.Unlock()

	books, err := m.api.List(ctx)

	m.mu.Lock()
	stale := seq != m.loadSeq
	if !stale {
		m.loading = false
		if err == nil {
			m.books = books
		}
	}
	m.mu.Unlock()

	if stale {
		log.Printf("[admin] dropping stale list response seq=%d request_id=%s", seq, reqID)
		return nil
	}
	if err != nil {
		m.screen.Notify(LevelError, MsgLoadFailed)
		m.record(ctx, Action{RequestID: reqID, Kind: ActionLoad, Outcome: OutcomeFailed, Detail: err.Error()})
		return fmt.Errorf("load books: %w", err)
	}
	m.record(ctx, Action{RequestID: reqID, Kind: ActionLoad, Outcome: OutcomeOK, Detail: fmt.Sprintf("%d books", len(books))})
	return nil
}

// ------------------ Read accessors ------------------

// Books returns a copy of the cached list.
func (m *AdminManager) Books() []Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Book(nil), m.books...)
}

func (m *AdminManager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

func (m *AdminManager) Search() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.search
}

func (m *AdminManager) SetSearch(q string) {
	m.mu.Lock()
	m.search = q
	m.mu.Unlock()
}

// Visible is the cached list filtered by the current search string.
func (m *AdminManager) Visible() []Book {
	m.mu.Lock()
	books, q := m.books, m.search
	m.mu.Unlock()
	return FilterBooks(books, q)
}

// Find returns the cached record with id.
func (m *AdminManager) Find(id string) (Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.books {
		if b.ID == id {
			return b, nil
		}
	}
	return Book{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// ------------------ Form state ------------------

// Draft returns the current form state including selected files.
func (m *AdminManager) Draft() Draft {
	m.mu.Lock()
	d := Draft{
		EditingID: m.editingID,
		Title:     m.title,
		Author:    m.author,
		Category:  m.category,
	}
	m.mu.Unlock()
	d.PDF = m.pdf.Selected()
	d.Cover = m.cover.Selected()
	return d
}

func (m *AdminManager) Editing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.editingID != ""
}

func (m *AdminManager) SetTitle(v string) {
	m.mu.Lock()
	m.title = v
	m.mu.Unlock()
}

func (m *AdminManager) SetAuthor(v string) {
	m.mu.Lock()
	m.author = v
	m.mu.Unlock()
}

func (m *AdminManager) SetCategory(v string) {
	m.mu.Lock()
	m.category = v
	m.mu.Unlock()
}

func (m *AdminManager) SelectPDF(path string) (*FileHandle, error)   { return m.pdf.Select(path) }
func (m *AdminManager) SelectCover(path string) (*FileHandle, error) { return m.cover.Select(path) }

// Edit binds the draft to b and copies its text fields. Selected files are
// left alone; replacing a file means picking it again.
func (m *AdminManager) Edit(b Book) {
	m.mu.Lock()
	m.editingID = b.ID
	m.title = b.Title
	m.author = b.Author
	m.category = b.Category
	m.mu.Unlock()
	m.screen.ScrollToTop()
}

// EditByID looks id up in the cached list and edits it.
func (m *AdminManager) EditByID(id string) (Book, error) {
	b, err := m.Find(id)
	if err != nil {
		return Book{}, err
	}
	m.Edit(b)
	return b, nil
}

// Reset returns the form to create mode with every field and file cleared.
func (m *AdminManager) Reset() {
	m.mu.Lock()
	m.editingID = ""
	m.title = ""
	m.author = ""
	m.category = ""
	m.mu.Unlock()
	m.pdf.Clear()
	m.cover.Clear()
}

// ------------------ Mutations ------------------

// Submit creates or updates depending on the edit binding. Validation
// failures return before any request. On request failure the draft is
// kept so the admin can retry.
func (m *AdminManager) Submit(ctx context.Context) error {
	d := m.Draft()

	if strings.TrimSpace(d.Title) == "" {
		m.screen.Notify(LevelError, MsgTitleRequired)
		return ErrTitleRequired
	}
	if !d.Editing() && (d.PDF == nil || d.Cover == nil) {
		m.screen.Notify(LevelError, MsgFilesRequired)
		return ErrFilesRequired
	}

	key := createSlot
	if d.Editing() {
		key = d.EditingID
	}
	if !m.acquire(key) {
		m.screen.Notify(LevelError, MsgBusy)
		return ErrBusy
	}

	ctx, reqID := withNewRequestID(ctx)
	var (
		saved *Book
		err   error
		kind  = ActionCreate
		msg   = MsgAdded
	)
	if d.Editing() {
		kind, msg = ActionUpdate, MsgUpdated
		saved, err = m.api.Update(ctx, d.EditingID, d.form())
	} else {
		saved, err = m.api.Create(ctx, d.form())
	}
	m.release(key)

	bookID := d.EditingID
	if saved != nil && saved.ID != "" {
		bookID = saved.ID
	}
	if err != nil {
		log.Printf("[admin] %s failed request_id=%s: %v", kind, reqID, err)
		m.screen.Notify(LevelError, MsgSaveFailed)
		m.record(ctx, Action{RequestID: reqID, Kind: kind, BookID: bookID, Title: d.Title, Outcome: OutcomeFailed, Detail: err.Error()})
		return fmt.Errorf("save book: %w", err)
	}

	m.screen.Notify(LevelSuccess, msg)
	m.record(ctx, Action{RequestID: reqID, Kind: kind, BookID: bookID, Title: d.Title, Outcome: OutcomeOK})
	m.Reset()
	// The save went through; a failed reload is already reported by the loader.
	_ = m.LoadBooks(ctx)
	return nil
}

// Delete removes the record after the admin confirms. Declining issues no
// request and returns ErrDeclined.
func (m *AdminManager) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrNotFound)
	}
	if !m.screen.Confirm(deletePrompt) {
		return ErrDeclined
	}
	if !m.acquire(id) {
		m.screen.Notify(LevelError, MsgBusy)
		return ErrBusy
	}

	ctx, reqID := withNewRequestID(ctx)
	title := ""
	if b, err := m.Find(id); err == nil {
		title = b.Title
	}
	err := m.api.Delete(ctx, id)
	m.release(id)

	if err != nil {
		log.Printf("[admin] delete %s failed request_id=%s: %v", id, reqID, err)
		m.screen.Notify(LevelError, MsgDeleteFailed)
		m.record(ctx, Action{RequestID: reqID, Kind: ActionDelete, BookID: id, Title: title, Outcome: OutcomeFailed, Detail: err.Error()})
		return fmt.Errorf("delete book: %w", err)
	}

	m.screen.Notify(LevelSuccess, MsgDeleted)
	m.record(ctx, Action{RequestID: reqID, Kind: ActionDelete, BookID: id, Title: title, Outcome: OutcomeOK})

	// A draft bound to a record that no longer exists would turn the next
	// submit into an update of nothing.
	m.mu.Lock()
	orphaned := m.editingID == id
	m.mu.Unlock()
	if orphaned {
		m.Reset()
	}
	_ = m.LoadBooks(ctx)
	return nil
}

// ------------------ Helpers ------------------

func (m *AdminManager) acquire(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.busy[key]; held {
		return false
	}
	m.busy[key] = struct{}{}
	return true
}

func (m *AdminManager) release(key string) {
	m.mu.Lock()
	delete(m.busy, key)
	m.mu.Unlock()
}

func (m *AdminManager) record(ctx context.Context, a Action) {
	if m.journal == nil {
		return
	}
	if err := m.journal.Record(context.WithoutCancel(ctx), a); err != nil {
		log.Printf("[admin] journal: %v", err)
	}
}
