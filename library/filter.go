package library

import (
	"strings"

	"golang.org/x/text/cases"
)

// FilterBooks returns the books whose title, author or category contains
// query, ignoring case. An empty query matches everything. The input
// slice is never modified.
func FilterBooks(books []Book, query string) []Book {
	out := make([]Book, 0, len(books))
	if query == "" {
		return append(out, books...)
	}
	fold := cases.Fold()
	needle := fold.String(query)
	for _, b := range books {
		if containsFolded(fold, b.Title, needle) ||
			containsFolded(fold, b.Author, needle) ||
			containsFolded(fold, b.Category, needle) {
			out = append(out, b)
		}
	}
	return out
}

func containsFolded(fold cases.Caser, field, needle string) bool {
	if field == "" {
		return false
	}
	return strings.Contains(fold.String(field), needle)
}
