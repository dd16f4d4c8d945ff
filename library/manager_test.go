package library

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, api *fakeAPI) (*AdminManager, *fakeScreen, *memRecorder) {
	t.Helper()
	screen := &fakeScreen{confirm: true}
	rec := &memRecorder{}
	return NewAdminManager(api, screen, rec), screen, rec
}

func selectBoth(t *testing.T, m *AdminManager) {
	t.Helper()
	_, err := m.SelectPDF(writeTemp(t, "book.pdf", pdfBytes))
	require.NoError(t, err)
	_, err = m.SelectCover(writeTemp(t, "cover.png", pngBytes))
	require.NoError(t, err)
}

func TestLoadBooks(t *testing.T) {
	api := &fakeAPI{books: []Book{{ID: "1", Title: "Dune"}, {ID: "2", Title: "Emma"}}}
	m, screen, rec := newTestManager(t, api)

	require.NoError(t, m.LoadBooks(context.Background()))
	assert.Len(t, m.Books(), 2)
	assert.False(t, m.Loading())
	assert.Empty(t, screen.messages())
	require.Len(t, rec.actions, 1)
	assert.Equal(t, ActionLoad, rec.actions[0].Kind)
	assert.Equal(t, OutcomeOK, rec.actions[0].Outcome)
	assert.NotEmpty(t, rec.actions[0].RequestID)
}

func TestLoadBooksFailureKeepsPreviousList(t *testing.T) {
	api := &fakeAPI{books: []Book{{ID: "1", Title: "Dune"}}}
	m, screen, _ := newTestManager(t, api)
	require.NoError(t, m.LoadBooks(context.Background()))

	api.listFn = func(context.Context, int) ([]Book, error) { return nil, errors.New("boom") }
	err := m.LoadBooks(context.Background())
	require.Error(t, err)

	assert.Equal(t, []Book{{ID: "1", Title: "Dune"}}, m.Books())
	assert.False(t, m.Loading())
	assert.Equal(t, []string{MsgLoadFailed}, screen.messages())
}

func TestLoadBooksDropsStaleResponse(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	api := &fakeAPI{}
	api.listFn = func(_ context.Context, call int) ([]Book, error) {
		if call == 1 {
			close(entered)
			<-release
			return []Book{{ID: "old", Title: "Stale"}}, nil
		}
		return []Book{{ID: "new", Title: "Fresh"}}, nil
	}
	m, _, _ := newTestManager(t, api)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = m.LoadBooks(context.Background())
	}()
	<-entered
	assert.True(t, m.Loading())

	require.NoError(t, m.LoadBooks(context.Background()))
	assert.False(t, m.Loading())

	close(release)
	wg.Wait()

	assert.Equal(t, []Book{{ID: "new", Title: "Fresh"}}, m.Books())
	assert.False(t, m.Loading())
}

func TestVisibleFollowsSearchAndReload(t *testing.T) {
	api := &fakeAPI{books: []Book{
		{ID: "1", Title: "Dune", Author: "Frank Herbert", Category: "Novel"},
		{ID: "2", Title: "Go in Action", Author: "Kennedy", Category: "Technology"},
	}}
	m, _, _ := newTestManager(t, api)
	require.NoError(t, m.LoadBooks(context.Background()))

	m.SetSearch("TECH")
	require.Len(t, m.Visible(), 1)
	assert.Equal(t, "2", m.Visible()[0].ID)

	api.mu.Lock()
	api.books = append(api.books, Book{ID: "3", Title: "Tech Debt"})
	api.mu.Unlock()
	require.NoError(t, m.LoadBooks(context.Background()))
	assert.Len(t, m.Visible(), 2)

	m.SetSearch("")
	assert.Len(t, m.Visible(), 3)
}

func TestSubmitEmptyTitleIssuesNoRequest(t *testing.T) {
	api := &fakeAPI{}
	m, screen, _ := newTestManager(t, api)
	selectBoth(t, m)
	m.SetTitle("   ")

	err := m.Submit(context.Background())
	assert.ErrorIs(t, err, ErrTitleRequired)

	lists, creates, updates, deletes := api.calls()
	assert.Zero(t, lists+creates+updates+deletes)
	assert.Equal(t, []string{MsgTitleRequired}, screen.messages())
}

func TestSubmitCreateWithoutFiles(t *testing.T) {
	api := &fakeAPI{}
	m, screen, _ := newTestManager(t, api)
	m.SetTitle("Dune")
	m.SetAuthor("")
	m.SetCategory("")

	err := m.Submit(context.Background())
	assert.ErrorIs(t, err, ErrFilesRequired)
	assert.Equal(t, []string{MsgFilesRequired}, screen.messages())

	lists, creates, updates, deletes := api.calls()
	assert.Zero(t, lists+creates+updates+deletes)

	// One file is still not enough.
	_, err = m.SelectPDF(writeTemp(t, "book.pdf", pdfBytes))
	require.NoError(t, err)
	assert.ErrorIs(t, m.Submit(context.Background()), ErrFilesRequired)
	_, creates, _, _ = api.calls()
	assert.Zero(t, creates)
}

func TestSubmitCreate(t *testing.T) {
	api := &fakeAPI{}
	m, screen, rec := newTestManager(t, api)
	m.SetTitle("Dune")
	m.SetAuthor("Frank Herbert")
	m.SetCategory("Novel")
	selectBoth(t, m)

	require.NoError(t, m.Submit(context.Background()))

	lists, creates, updates, _ := api.calls()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 0, updates)
	assert.Equal(t, 1, lists)

	form := api.creates[0]
	assert.Equal(t, "Dune", form.Title)
	assert.Equal(t, "Frank Herbert", form.Author)
	assert.Equal(t, "Novel", form.Category)
	require.NotNil(t, form.PDF)
	require.NotNil(t, form.Cover)
	assert.Equal(t, "application/pdf", form.PDF.ContentType)
	assert.Equal(t, "image/png", form.Cover.ContentType)

	assert.Equal(t, Draft{}, m.Draft())
	assert.Equal(t, []string{MsgAdded}, screen.messages())

	require.Len(t, rec.actions, 2)
	assert.Equal(t, ActionCreate, rec.actions[0].Kind)
	assert.Equal(t, "new", rec.actions[0].BookID)
	assert.Equal(t, ActionLoad, rec.actions[1].Kind)
}

func TestSubmitUpdateWithoutFiles(t *testing.T) {
	api := &fakeAPI{books: []Book{{ID: "42", Title: "Old", Author: "A", Category: "C"}}}
	m, screen, _ := newTestManager(t, api)
	require.NoError(t, m.LoadBooks(context.Background()))

	_, err := m.EditByID("42")
	require.NoError(t, err)
	assert.True(t, m.Editing())
	m.SetTitle("New")

	require.NoError(t, m.Submit(context.Background()))

	lists, creates, updates, _ := api.calls()
	assert.Equal(t, 0, creates)
	require.Equal(t, 1, updates)
	assert.Equal(t, 2, lists)

	call := api.updates[0]
	assert.Equal(t, "42", call.id)
	assert.Equal(t, "New", call.form.Title)
	assert.Equal(t, "A", call.form.Author)
	assert.Nil(t, call.form.PDF)
	assert.Nil(t, call.form.Cover)

	assert.False(t, m.Editing())
	assert.Equal(t, []string{MsgUpdated}, screen.messages())
}

func TestSubmitUpdateWithFiles(t *testing.T) {
	api := &fakeAPI{books: []Book{{ID: "42", Title: "Old"}}}
	m, _, _ := newTestManager(t, api)
	require.NoError(t, m.LoadBooks(context.Background()))
	_, err := m.EditByID("42")
	require.NoError(t, err)
	_, err = m.SelectCover(writeTemp(t, "cover.png", pngBytes))
	require.NoError(t, err)

	require.NoError(t, m.Submit(context.Background()))
	require.Len(t, api.updates, 1)
	assert.Nil(t, api.updates[0].form.PDF)
	require.NotNil(t, api.updates[0].form.Cover)
	assert.Nil(t, m.Draft().Cover)
}

func TestSubmitFailurePreservesDraft(t *testing.T) {
	api := &fakeAPI{createFn: func(context.Context, BookForm) (*Book, error) {
		return nil, &APIError{Status: 500}
	}}
	m, screen, rec := newTestManager(t, api)
	m.SetTitle("Dune")
	selectBoth(t, m)

	err := m.Submit(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.Status)

	d := m.Draft()
	assert.Equal(t, "Dune", d.Title)
	assert.NotNil(t, d.PDF)
	assert.NotNil(t, d.Cover)
	assert.Equal(t, []string{MsgSaveFailed}, screen.messages())

	lists, _, _, _ := api.calls()
	assert.Zero(t, lists)
	require.Len(t, rec.actions, 1)
	assert.Equal(t, OutcomeFailed, rec.actions[0].Outcome)

	// Retry goes through once the backend recovers.
	api.createFn = nil
	require.NoError(t, m.Submit(context.Background()))
	assert.Len(t, api.creates, 2)
}

func TestSubmitBusyLock(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	api := &fakeAPI{books: []Book{{ID: "42", Title: "Old"}}}
	api.updateFn = func(_ context.Context, id string, form BookForm) (*Book, error) {
		close(entered)
		<-release
		return &Book{ID: id, Title: form.Title}, nil
	}
	m, screen, _ := newTestManager(t, api)
	require.NoError(t, m.LoadBooks(context.Background()))
	_, err := m.EditByID("42")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- m.Submit(context.Background()) }()
	<-entered

	assert.ErrorIs(t, m.Submit(context.Background()), ErrBusy)
	assert.ErrorIs(t, m.Delete(context.Background(), "42"), ErrBusy)
	assert.Contains(t, screen.messages(), MsgBusy)

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("submit did not finish")
	}
	_, _, updates, deletes := api.calls()
	assert.Equal(t, 1, updates)
	assert.Equal(t, 0, deletes)
}

func TestEditCopiesFieldsAndScrolls(t *testing.T) {
	api := &fakeAPI{}
	m, screen, _ := newTestManager(t, api)
	_, err := m.SelectPDF(writeTemp(t, "book.pdf", pdfBytes))
	require.NoError(t, err)

	m.Edit(Book{ID: "7", Title: "Emma", Author: "Austen", Category: "Novel", Cover: "c.png", PDF: "e.pdf"})

	d := m.Draft()
	assert.Equal(t, "7", d.EditingID)
	assert.Equal(t, "Emma", d.Title)
	assert.Equal(t, "Austen", d.Author)
	assert.Equal(t, "Novel", d.Category)
	assert.NotNil(t, d.PDF, "edit leaves an existing file selection alone")
	assert.Nil(t, d.Cover)
	assert.Equal(t, 1, screen.scrolled)
}

func TestEditByIDUnknown(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeAPI{})
	_, err := m.EditByID("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, m.Editing())
}

func TestResetCancelsEdit(t *testing.T) {
	api := &fakeAPI{}
	m, _, _ := newTestManager(t, api)
	selectBoth(t, m)
	m.Edit(Book{ID: "7", Title: "Emma"})

	m.Reset()

	assert.Equal(t, Draft{}, m.Draft())
	assert.False(t, m.Editing())
	lists, creates, updates, deletes := api.calls()
	assert.Zero(t, lists+creates+updates+deletes)
}

func TestDelete(t *testing.T) {
	api := &fakeAPI{books: []Book{{ID: "1", Title: "Dune"}}}
	m, screen, rec := newTestManager(t, api)

	require.NoError(t, m.Delete(context.Background(), "1"))

	lists, _, _, deletes := api.calls()
	assert.Equal(t, 1, deletes)
	assert.Equal(t, 1, lists)
	assert.Equal(t, []string{deletePrompt}, screen.prompts)
	assert.Equal(t, []string{MsgDeleted}, screen.messages())
	assert.Equal(t, ActionDelete, rec.actions[0].Kind)
	assert.Equal(t, "1", rec.actions[0].BookID)
}

func TestDeleteDeclined(t *testing.T) {
	api := &fakeAPI{}
	m, screen, _ := newTestManager(t, api)
	screen.confirm = false

	assert.ErrorIs(t, m.Delete(context.Background(), "1"), ErrDeclined)
	lists, _, _, deletes := api.calls()
	assert.Zero(t, lists+deletes)
	assert.Empty(t, screen.messages())
}

func TestDeleteFailureKeepsList(t *testing.T) {
	api := &fakeAPI{books: []Book{{ID: "1", Title: "Dune"}}}
	m, screen, _ := newTestManager(t, api)
	require.NoError(t, m.LoadBooks(context.Background()))
	api.deleteFn = func(context.Context, string) error { return errors.New("down") }

	require.Error(t, m.Delete(context.Background(), "1"))

	lists, _, _, _ := api.calls()
	assert.Equal(t, 1, lists)
	assert.Len(t, m.Books(), 1)
	assert.Equal(t, []string{MsgDeleteFailed}, screen.messages())
}

func TestDeleteOfEditedRecordResetsDraft(t *testing.T) {
	api := &fakeAPI{books: []Book{{ID: "1", Title: "Dune"}}}
	m, _, _ := newTestManager(t, api)
	require.NoError(t, m.LoadBooks(context.Background()))
	_, err := m.EditByID("1")
	require.NoError(t, err)

	require.NoError(t, m.Delete(context.Background(), "1"))
	assert.False(t, m.Editing())
	assert.Empty(t, m.Draft().Title)
}
