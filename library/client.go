package library

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

const (
	coversPrefix = "/uploads/covers/"
	maxErrorBody = 4 << 10
)

// BookAPI is the backend surface the admin manager talks to.
type BookAPI interface {
	List(ctx context.Context) ([]Book, error)
	Create(ctx context.Context, form BookForm) (*Book, error)
	Update(ctx context.Context, id string, form BookForm) (*Book, error)
	Delete(ctx context.Context, id string) error
}

// Client calls the admin books API over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	userAgent  string
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		userAgent:  "library-admin/1.0",
	}
}

// BaseURL returns the API base without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// CoverURL is where the backend serves a record's cover image.
func (c *Client) CoverURL(b Book) string {
	if b.Cover == "" {
		return ""
	}
	return c.baseURL + coversPrefix + url.PathEscape(b.Cover)
}

type listResponse struct {
	Books []Book `json:"books"`
}

func (c *Client) List(ctx context.Context) ([]Book, error) {
	var res listResponse
	if err := c.do(ctx, http.MethodGet, "/books", nil, "", &res); err != nil {
		return nil, err
	}
	if res.Books == nil {
		return []Book{}, nil
	}
	return res.Books, nil
}

// Create uploads a new record. Both files are expected; the manager
// validates that before calling.
func (c *Client) Create(ctx context.Context, form BookForm) (*Book, error) {
	return c.upload(ctx, http.MethodPost, "/books/add", form)
}

// Update sends a partial replacement. Files left nil are not sent.
func (c *Client) Update(ctx context.Context, id string, form BookForm) (*Book, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	return c.upload(ctx, http.MethodPut, "/books/"+url.PathEscape(id), form)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrNotFound
	}
	return c.do(ctx, http.MethodDelete, "/books/"+url.PathEscape(id), nil, "", nil)
}

func (c *Client) upload(ctx context.Context, method, path string, form BookForm) (*Book, error) {
	body, contentType, err := encodeForm(form)
	if err != nil {
		return nil, fmt.Errorf("encode form: %w", err)
	}
	var raw jsoniter.RawMessage
	if err := c.do(ctx, method, path, body, contentType, &raw); err != nil {
		return nil, err
	}
	return decodeRecord(raw)
}

// decodeRecord accepts either a bare record or {"book": record}.
func decodeRecord(raw []byte) (*Book, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var env struct {
		Book *Book `json:"book"`
	}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &env); err == nil && env.Book != nil {
		return env.Book, nil
	}
	var b Book
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if b.ID == "" && b.Title == "" {
		return nil, nil
	}
	return &b, nil
}

// encodeForm writes every string field and only the files that are set.
func encodeForm(form BookForm) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	fields := [][2]string{
		{"title", form.Title},
		{"author", form.Author},
		{"category", form.Category},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if form.PDF != nil {
		if err := writeFilePart(w, "pdf", form.PDF); err != nil {
			return nil, "", err
		}
	}
	if form.Cover != nil {
		if err := writeFilePart(w, "cover", form.Cover); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

func writeFilePart(w *multipart.Writer, field string, fh *FileHandle) error {
	f, err := os.Open(filepath.Clean(fh.Path))
	if err != nil {
		return err
	}
	defer f.Close()

	name := fh.Name
	if name == "" {
		name = filepath.Base(fh.Path)
	}
	ct := fh.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body *bytes.Buffer, contentType string, target any) error {
	var rdr io.Reader
	if body != nil {
		rdr = body
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.ContentLength = int64(body.Len())
		req.Header.Set("Content-Length", strconv.Itoa(body.Len()))
		req.Header.Set("Content-Type", contentType)
	}
	reqID := RequestIDFrom(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[api] %s %s request_id=%s err=%v", method, path, reqID, err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	log.Printf("[api] %s %s request_id=%s status=%d took=%s", method, path, reqID, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Status: resp.StatusCode, RequestID: reqID, Body: strings.TrimSpace(string(msg))}
	}
	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if raw, ok := target.(*jsoniter.RawMessage); ok {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		*raw = data
		return nil
	}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
