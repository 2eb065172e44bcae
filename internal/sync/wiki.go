package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// SQL statements for the local wiki page store.
const (
	sqlLatestPage = `SELECT name, version, text, comment, time
		FROM wiki WHERE name = ?
		ORDER BY version DESC LIMIT 1`

	sqlPageAtVersion = `SELECT name, version, text, comment, time
		FROM wiki WHERE name = ? AND version = ?`

	sqlInsertPage = `INSERT INTO wiki (name, version, text, comment, time)
		VALUES (?, ?, ?, ?, ?)`
)

// Page is one revision of a local wiki page.
type Page struct {
	Name    string
	Version int
	Text    string
	Comment string
	Time    int64 // Unix nanoseconds
}

// Wiki is the local versioned document store. It shares the sync state
// database so record read views can join live page versions.
type Wiki struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time
}

// NewWiki creates a Wiki sharing the given database connection.
func NewWiki(db *sql.DB, logger *slog.Logger) *Wiki {
	return &Wiki{db: db, logger: logger, nowFunc: time.Now}
}

// Page returns the latest revision of the named page, or (nil, nil) when
// the page has no local copy.
func (w *Wiki) Page(ctx context.Context, name string) (*Page, error) {
	return scanPage(w.db.QueryRowContext(ctx, sqlLatestPage, name), name)
}

// PageAt returns a specific revision of the named page, or (nil, nil) when
// that revision does not exist.
func (w *Wiki) PageAt(ctx context.Context, name string, version int) (*Page, error) {
	return scanPage(w.db.QueryRowContext(ctx, sqlPageAtVersion, name, version), name)
}

func scanPage(row *sql.Row, name string) (*Page, error) {
	var p Page

	err := row.Scan(&p.Name, &p.Version, &p.Text, &p.Comment, &p.Time)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // nil page means "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("sync: reading page %q: %w", name, err)
	}

	return &p, nil
}

// Save writes a new revision of the named page and returns its version.
// The version counter is monotonic per name, starting at 1. Writing text
// identical to the current revision returns the current version together
// with ErrPageUnchanged, without inserting. Empty text is rejected; pages
// are deleted by removal, not by blanking.
func (w *Wiki) Save(ctx context.Context, name, text, comment string) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: page name required", ErrValidation)
	}

	if text == "" {
		return 0, fmt.Errorf("%w: %s: empty page text", ErrValidation, name)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sync: begin save tx for %q: %w", name, err)
	}

	version, err := w.saveInTx(ctx, tx, name, text, comment)
	if err != nil {
		rollbackErr := tx.Rollback()
		if errors.Is(err, ErrPageUnchanged) && rollbackErr == nil {
			return version, err
		}

		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sync: commit save tx for %q: %w", name, err)
	}

	w.logger.Debug("saved page revision",
		slog.String("name", name), slog.Int("version", version))

	return version, nil
}

func (w *Wiki) saveInTx(ctx context.Context, tx *sql.Tx, name, text, comment string) (int, error) {
	current, err := scanPage(tx.QueryRowContext(ctx, sqlLatestPage, name), name)
	if err != nil {
		return 0, err
	}

	version := 1

	if current != nil {
		if current.Text == text {
			return current.Version, fmt.Errorf("%w: %q", ErrPageUnchanged, name)
		}

		version = current.Version + 1
	}

	_, err = tx.ExecContext(ctx, sqlInsertPage,
		name, version, text, comment, w.nowFunc().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sync: saving page %q: %w", name, err)
	}

	return version, nil
}
