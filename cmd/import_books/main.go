package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"library-admin/library"
)

// importRow is one manifest line: title,author,category,pdf,cover.
// File paths are relative to the manifest's directory.
type importRow struct {
	line                    int
	title, author, category string
	pdf, cover              string
}

// quietScreen collects the last notification instead of printing it, so
// the importer can report one line per row.
type quietScreen struct {
	last string
}

func (q *quietScreen) Notify(_ library.Level, msg string) { q.last = msg }
func (q *quietScreen) Confirm(string) bool                { return false }
func (q *quietScreen) ScrollToTop()                       {}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: import_books MANIFEST.csv")
		os.Exit(2)
	}
	log.SetOutput(io.Discard)

	cfg, err := library.LoadConfig()
	if err == nil {
		err = cfg.Validate(time.Now())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	rows, err := readManifest(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading manifest: %v\n", err)
		os.Exit(1)
	}

	var rec library.Recorder
	if cfg.JournalEnabled() {
		db, err := library.NewDatabase(cfg.JournalPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening journal: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
		rec = db
	}

	screen := &quietScreen{}
	client := library.NewClient(cfg.APIURL, cfg.Token, cfg.Timeout)
	mgr := library.NewAdminManager(client, screen, rec)

	fmt.Printf("Importing %d book(s) into %s...\n", len(rows), client.BaseURL())
	successCount, errorCount := importAll(context.Background(), os.Stdout, mgr, screen, rows)

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d books\n", successCount)
	fmt.Printf("Errors: %d\n", errorCount)

	if successCount > 0 {
		fmt.Println("\nCatalogue now holds:")
		fmt.Printf("%-26s %-50s %-30s\n", "ID", "Title", "Author")
		fmt.Println(strings.Repeat("-", 108))
		for _, b := range mgr.Books() {
			fmt.Printf("%-26s %-50s %-30s\n", b.ID, truncateString(b.Title, 50), truncateString(b.Author, 30))
		}
	}
	if errorCount > 0 {
		os.Exit(1)
	}
}

func importAll(ctx context.Context, out io.Writer, mgr *library.AdminManager, screen *quietScreen, rows []importRow) (int, int) {
	successCount, errorCount := 0, 0
	for _, r := range rows {
		fmt.Fprintf(out, "Importing: %s by %s... ", r.title, r.author)

		mgr.Reset()
		mgr.SetTitle(r.title)
		mgr.SetAuthor(r.author)
		mgr.SetCategory(r.category)
		if err := selectFiles(mgr, r); err != nil {
			fmt.Fprintf(out, "ERROR - line %d: %v\n", r.line, err)
			errorCount++
			continue
		}
		if err := mgr.Submit(ctx); err != nil {
			fmt.Fprintf(out, "ERROR - %s: %v\n", screen.last, err)
			errorCount++
			continue
		}
		fmt.Fprintln(out, "SUCCESS")
		successCount++
	}
	mgr.Reset()
	return successCount, errorCount
}

// selectFiles picks the row's files. Empty paths are left unselected so
// Submit reports them as missing.
func selectFiles(mgr *library.AdminManager, r importRow) error {
	if r.pdf != "" {
		if _, err := mgr.SelectPDF(r.pdf); err != nil {
			return fmt.Errorf("pdf: %w", err)
		}
	}
	if r.cover != "" {
		if _, err := mgr.SelectCover(r.cover); err != nil {
			return fmt.Errorf("cover: %w", err)
		}
	}
	return nil
}

func readManifest(path string) ([]importRow, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	base := filepath.Dir(path)
	cr := csv.NewReader(f)
	cr.FieldsPerRecord = 5
	cr.TrimLeadingSpace = true

	var rows []importRow
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "title") {
			continue
		}
		rows = append(rows, importRow{
			line:     line,
			title:    strings.TrimSpace(rec[0]),
			author:   strings.TrimSpace(rec[1]),
			category: strings.TrimSpace(rec[2]),
			pdf:      resolve(base, rec[3]),
			cover:    resolve(base, rec[4]),
		})
	}
	return rows, nil
}

func resolve(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
