package library

import (
	"errors"
	"fmt"
)

var (
	ErrTitleRequired = errors.New("title required")
	ErrFilesRequired = errors.New("pdf and cover required")
	ErrBusy          = errors.New("another request for this record is in flight")
	ErrNotFound      = errors.New("book not found")
	ErrTokenExpired  = errors.New("api token expired")
	ErrFileRejected  = errors.New("file type not accepted")
)

// APIError is a non-2xx response from the books API.
type APIError struct {
	Status    int
	RequestID string
	Body      string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("books api: status %d (request %s)", e.Status, e.RequestID)
	}
	return fmt.Sprintf("books api: status %d (request %s): %s", e.Status, e.RequestID, e.Body)
}
