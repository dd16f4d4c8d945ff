package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"library-admin/library"
)

type shell struct {
	sc  *bufio.Scanner
	out io.Writer
	app *app
}

func (s *shell) run(ctx context.Context) error {
	mgr := s.app.mgr

	fmt.Fprintln(s.out, "📚 Library Management")
	fmt.Fprintln(s.out, "Available commands:")
	fmt.Fprintln(s.out, "  Books: list books, search, reload, delete book")
	fmt.Fprintln(s.out, "  Form:  add book, edit book, set title|author|category, pick pdf|cover, draft, submit, cancel")
	fmt.Fprintln(s.out, "  System: history, exit")

	fmt.Fprintln(s.out, "Loading...")
	_ = mgr.LoadBooks(ctx)
	fmt.Fprintf(s.out, "%d book(s) loaded.\n", len(mgr.Books()))

	for {
		fmt.Fprintf(s.out, "\n%s> ", s.mode())
		if !s.sc.Scan() {
			break
		}
		cmd := strings.TrimSpace(s.sc.Text())

		switch {
		case cmd == "":
		case cmd == "list books" || cmd == "list":
			s.handleList()
		case cmd == "search":
			s.handleSearch()
		case cmd == "reload":
			fmt.Fprintln(s.out, "Loading...")
			_ = mgr.LoadBooks(ctx)
		case cmd == "add book":
			s.handleAdd(ctx)
		case cmd == "edit book":
			s.handleEdit(ctx)
		case strings.HasPrefix(cmd, "set "):
			s.handleSet(strings.TrimSpace(strings.TrimPrefix(cmd, "set ")))
		case strings.HasPrefix(cmd, "pick "):
			s.handlePick(strings.TrimSpace(strings.TrimPrefix(cmd, "pick ")))
		case cmd == "draft":
			s.handleDraft()
		case cmd == "submit":
			_ = mgr.Submit(ctx)
		case cmd == "cancel":
			mgr.Reset()
			fmt.Fprintln(s.out, "Form cleared.")
		case cmd == "delete book":
			s.handleDelete(ctx)
		case cmd == "history":
			s.handleHistory(ctx)
		case cmd == "exit" || cmd == "quit":
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		default:
			fmt.Fprintln(s.out, "Unknown command. Type one of the available commands listed above.")
		}
	}
	return s.sc.Err()
}

func (s *shell) mode() string {
	if s.app.mgr.Editing() {
		return "edit"
	}
	return "add"
}

// prompt prints label and returns the trimmed line. ok is false on EOF.
func (s *shell) prompt(label string) (string, bool) {
	fmt.Fprint(s.out, label)
	if !s.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.sc.Text()), true
}

func (s *shell) handleList() {
	mgr := s.app.mgr
	if mgr.Loading() {
		fmt.Fprintln(s.out, "Loading...")
		return
	}
	if q := mgr.Search(); q != "" {
		fmt.Fprintf(s.out, "Filter: %q\n", q)
	}
	printBooks(s.out, s.app.client, mgr.Visible())
}

func (s *shell) handleSearch() {
	q, ok := s.prompt("Search (Enter to clear): ")
	if !ok {
		return
	}
	mgr := s.app.mgr
	mgr.SetSearch(q)
	visible := mgr.Visible()
	if q == "" {
		fmt.Fprintf(s.out, "Filter cleared, %d book(s).\n", len(visible))
	} else {
		fmt.Fprintf(s.out, "Found %d book(s) matching '%s':\n", len(visible), q)
	}
	printBooks(s.out, s.app.client, visible)
}

func (s *shell) handleAdd(ctx context.Context) {
	mgr := s.app.mgr
	mgr.Reset()

	title, ok := s.prompt("Book title: ")
	if !ok {
		return
	}
	author, ok := s.prompt("Author: ")
	if !ok {
		return
	}
	category, ok := s.prompt("Category (Eg. Education, Novel, Technology): ")
	if !ok {
		return
	}
	mgr.SetTitle(title)
	mgr.SetAuthor(author)
	mgr.SetCategory(category)

	if !s.pickInto("PDF path: ", mgr.SelectPDF) || !s.pickInto("Cover path: ", mgr.SelectCover) {
		return
	}
	_ = mgr.Submit(ctx)
}

func (s *shell) handleEdit(ctx context.Context) {
	mgr := s.app.mgr
	id, ok := s.prompt("Book ID: ")
	if !ok {
		return
	}
	b, err := mgr.EditByID(id)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}

	fields := []struct {
		label   string
		current string
		set     func(string)
	}{
		{"Book title", b.Title, mgr.SetTitle},
		{"Author", b.Author, mgr.SetAuthor},
		{"Category", b.Category, mgr.SetCategory},
	}
	for _, f := range fields {
		v, ok := s.prompt(fmt.Sprintf("%s [%s]: ", f.label, f.current))
		if !ok {
			return
		}
		if v != "" {
			f.set(v)
		}
	}

	if !s.pickInto("New PDF path (Enter to keep current): ", mgr.SelectPDF) ||
		!s.pickInto("New cover path (Enter to keep current): ", mgr.SelectCover) {
		return
	}
	_ = mgr.Submit(ctx)
}

// pickInto prompts for a path and selects it. An empty answer selects
// nothing. It returns false on EOF or a rejected file.
func (s *shell) pickInto(label string, pick func(string) (*library.FileHandle, error)) bool {
	path, ok := s.prompt(label)
	if !ok {
		return false
	}
	if path == "" {
		return true
	}
	fh, err := pick(path)
	if err != nil {
		fmt.Fprintf(s.out, "File error: %v\n", err)
		return false
	}
	fmt.Fprintf(s.out, "Selected %s (%s, %d bytes)\n", fh.Name, fh.ContentType, fh.Size)
	return true
}

func (s *shell) handleSet(field string) {
	mgr := s.app.mgr
	var set func(string)
	switch field {
	case "title":
		set = mgr.SetTitle
	case "author":
		set = mgr.SetAuthor
	case "category":
		set = mgr.SetCategory
	default:
		fmt.Fprintln(s.out, "Usage: set title|author|category")
		return
	}
	v, ok := s.prompt(strings.ToUpper(field[:1]) + field[1:] + ": ")
	if !ok {
		return
	}
	set(v)
}

func (s *shell) handlePick(which string) {
	mgr := s.app.mgr
	switch which {
	case "pdf":
		s.pickInto("PDF path: ", mgr.SelectPDF)
	case "cover":
		s.pickInto("Cover path: ", mgr.SelectCover)
	default:
		fmt.Fprintln(s.out, "Usage: pick pdf|cover")
	}
}

func (s *shell) handleDraft() {
	d := s.app.mgr.Draft()
	if d.Editing() {
		fmt.Fprintf(s.out, "✏️ Edit Book %s\n", d.EditingID)
	} else {
		fmt.Fprintln(s.out, "➕ Add New Book")
	}
	fmt.Fprintf(s.out, "  Title:    %s\n", d.Title)
	fmt.Fprintf(s.out, "  Author:   %s\n", d.Author)
	fmt.Fprintf(s.out, "  Category: %s\n", d.Category)
	fmt.Fprintf(s.out, "  PDF:      %s\n", fileLabel(d.PDF))
	fmt.Fprintf(s.out, "  Cover:    %s\n", fileLabel(d.Cover))
}

func fileLabel(fh *library.FileHandle) string {
	if fh == nil {
		return "(none)"
	}
	return fh.Name
}

func (s *shell) handleDelete(ctx context.Context) {
	id, ok := s.prompt("Book ID: ")
	if !ok {
		return
	}
	if err := s.app.mgr.Delete(ctx, id); errors.Is(err, library.ErrDeclined) {
		fmt.Fprintln(s.out, "Aborted.")
	}
}

func (s *shell) handleHistory(ctx context.Context) {
	if s.app.journal == nil {
		fmt.Fprintln(s.out, "Journal is disabled.")
		return
	}
	if err := printHistory(ctx, s.out, s.app.journal, library.HistoryFilter{Limit: 20}); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}
