package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

// FilePicker holds at most one selected file and accepts only the
// content types it was built for. Clear drops the selection so a file
// chosen for a previous submit cannot be sent again.
type FilePicker struct {
	mu       sync.Mutex
	accept   string
	selected *FileHandle
}

// NewPDFPicker accepts application/pdf only.
func NewPDFPicker() *FilePicker { return &FilePicker{accept: "application/pdf"} }

// NewCoverPicker accepts any image/* type.
func NewCoverPicker() *FilePicker { return &FilePicker{accept: "image/*"} }

// Select sniffs the file at path and makes it the current selection.
// On error the previous selection is kept.
func (p *FilePicker) Select(path string) (*FileHandle, error) {
	path = filepath.Clean(strings.TrimSpace(path))
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect type: %w", err)
	}
	ct := mt.String()
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	if !p.accepts(ct) {
		return nil, fmt.Errorf("%w: %s is %s, want %s", ErrFileRejected, filepath.Base(path), ct, p.accept)
	}

	fh := &FileHandle{
		Path:        path,
		Name:        filepath.Base(path),
		ContentType: ct,
		Size:        info.Size(),
	}
	p.mu.Lock()
	p.selected = fh
	p.mu.Unlock()
	return fh, nil
}

// Selected returns a copy of the current selection, or nil.
func (p *FilePicker) Selected() *FileHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.selected == nil {
		return nil
	}
	fh := *p.selected
	return &fh
}

func (p *FilePicker) Clear() {
	p.mu.Lock()
	p.selected = nil
	p.mu.Unlock()
}

func (p *FilePicker) accepts(ct string) bool {
	if prefix, ok := strings.CutSuffix(p.accept, "/*"); ok {
		return strings.HasPrefix(ct, prefix+"/")
	}
	return ct == p.accept
}
