package library

// Book is a record as returned by the admin books API.
// Cover and PDF hold the filenames assigned by the backend on upload.
type Book struct {
	ID       string `json:"_id"`
	Title    string `json:"title"`
	Author   string `json:"author,omitempty"`
	Category string `json:"category,omitempty"`
	Cover    string `json:"cover,omitempty"`
	PDF      string `json:"pdf,omitempty"`
}

// FileHandle is a local file chosen for upload.
type FileHandle struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// BookForm is the multipart payload sent on create and update.
// Nil files are not sent.
type BookForm struct {
	Title    string
	Author   string
	Category string
	PDF      *FileHandle
	Cover    *FileHandle
}

// Draft is the transient form state while composing a create or an edit.
// EditingID is empty in create mode.
type Draft struct {
	EditingID string
	Title     string
	Author    string
	Category  string
	PDF       *FileHandle
	Cover     *FileHandle
}

// Editing reports whether the draft is bound to an existing record.
func (d Draft) Editing() bool { return d.EditingID != "" }

func (d Draft) form() BookForm {
	return BookForm{
		Title:    d.Title,
		Author:   d.Author,
		Category: d.Category,
		PDF:      d.PDF,
		Cover:    d.Cover,
	}
}
