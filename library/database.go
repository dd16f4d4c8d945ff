package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Action kinds written to the journal.
const (
	ActionLoad   = "load"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Action outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Action is one journal row: a list load or a mutation and how it ended.
type Action struct {
	ID        int64  `db:"id" json:"id"`
	RequestID string `db:"request_id" json:"request_id"`
	Kind      string `db:"kind" json:"kind"`
	BookID    string `db:"book_id" json:"book_id,omitempty"`
	Title     string `db:"title" json:"title,omitempty"`
	Outcome   string `db:"outcome" json:"outcome"`
	Detail    string `db:"detail" json:"detail,omitempty"`
	CreatedAt int64  `db:"created_at" json:"created_at"` // unix millis
}

// At returns CreatedAt as a time.
func (a Action) At() time.Time { return time.UnixMilli(a.CreatedAt) }

// Recorder receives every action the manager performs.
type Recorder interface {
	Record(ctx context.Context, a Action) error
}

// HistoryFilter narrows History. Zero values mean no restriction.
type HistoryFilter struct {
	BookID string
	Kind   string
	Limit  uint
}

// Database is the local sqlite journal of admin actions.
type Database struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

// NewDatabase opens (or creates) the journal at dbPath and applies schema
// migrations.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", dbPath)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Database{db: db, dialect: goqu.Dialect("sqlite3")}, nil
}

func (d *Database) Close() error { return d.db.Close() }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sqlx.DB) error {
	// WAL lets the history command read while a shell is writing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS actions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            request_id TEXT NOT NULL DEFAULT '',
            kind TEXT NOT NULL,
            book_id TEXT NOT NULL DEFAULT '',
            title TEXT NOT NULL DEFAULT '',
            outcome TEXT NOT NULL,
            detail TEXT NOT NULL DEFAULT '',
            created_at INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_actions_book ON actions(book_id, id);`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Journal
// ---------------------------------------------------------------------------

// Record appends a. CreatedAt defaults to now.
func (d *Database) Record(ctx context.Context, a Action) error {
	if a.CreatedAt == 0 {
		a.CreatedAt = time.Now().UnixMilli()
	}
	q, args, err := d.dialect.Insert("actions").Prepared(true).Rows(goqu.Record{
		"request_id": a.RequestID,
		"kind":       a.Kind,
		"book_id":    a.BookID,
		"title":      a.Title,
		"outcome":    a.Outcome,
		"detail":     a.Detail,
		"created_at": a.CreatedAt,
	}).ToSQL()
	if err != nil {
		return errors.Join(errors.New("building the insert failed"), err)
	}
	if _, err := d.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	return nil
}

// History returns journal rows, newest first.
func (d *Database) History(ctx context.Context, f HistoryFilter) ([]Action, error) {
	ds := d.dialect.From("actions").Prepared(true).
		Select("id", "request_id", "kind", "book_id", "title", "outcome", "detail", "created_at").
		Order(goqu.I("id").Desc())
	if f.BookID != "" {
		ds = ds.Where(goqu.C("book_id").Eq(f.BookID))
	}
	if f.Kind != "" {
		ds = ds.Where(goqu.C("kind").Eq(f.Kind))
	}
	if f.Limit > 0 {
		ds = ds.Limit(f.Limit)
	}
	q, args, err := ds.ToSQL()
	if err != nil {
		return nil, errors.Join(errors.New("building the query failed"), err)
	}

	actions := []Action{}
	if err := d.db.SelectContext(ctx, &actions, q, args...); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return actions, nil
}
