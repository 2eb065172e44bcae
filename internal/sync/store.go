package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// SQL statements for record operations. The read views join the wiki table
// so every materialized record carries the live local version.
const (
	sqlRecordColumns = `ws.name, ws."ignore", ws.ignore_attachment, ws.sync_time,
		ws.sync_remote_version, ws.sync_local_version, ws.remote_version,
		COALESCE(MAX(w.version), 0)`

	sqlAllRecords = `SELECT ` + sqlRecordColumns + `
		FROM wikisync ws
		LEFT JOIN wiki w ON w.name = ws.name
		GROUP BY ws.name
		ORDER BY ws.name`

	sqlFindRecord = `SELECT ` + sqlRecordColumns + `
		FROM wikisync ws
		LEFT JOIN wiki w ON w.name = ws.name
		WHERE ws.name = ?
		GROUP BY ws.name`

	sqlInsertRecord = `INSERT INTO wikisync
		(name, "ignore", ignore_attachment, sync_time,
		 sync_remote_version, sync_local_version, remote_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	sqlUpdateRecord = `UPDATE wikisync SET
		"ignore" = ?, ignore_attachment = ?, sync_time = ?,
		sync_remote_version = ?, sync_local_version = ?, remote_version = ?
		WHERE name = ?`

	sqlDeleteRecord = `DELETE FROM wikisync WHERE name = ?`

	sqlRecordNames = `SELECT name FROM wikisync`

	sqlUnrecordedLocalNames = `SELECT DISTINCT w.name FROM wiki w
		WHERE NOT EXISTS (SELECT 1 FROM wikisync ws WHERE ws.name = w.name)`
)

// Store is the sole writer to the sync state database. It persists
// reconciliation records and hosts the local wiki table the read views
// join against.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time // injectable for deterministic tests
}

// NewStore opens the SQLite database at dbPath, runs migrations, and
// returns a ready-to-use store. The database uses WAL mode with
// synchronous=FULL for crash-safe durability.
func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"+
			"&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sync: opening database %s: %w", dbPath, err)
	}

	// Sole-writer pattern: only one connection writes at a time.
	db.SetMaxOpenConns(1)

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sync state database ready", slog.String("db_path", dbPath))

	return &Store{
		db:      db,
		logger:  logger,
		nowFunc: time.Now,
	}, nil
}

// DB exposes the underlying connection for components sharing the database
// (the local wiki store).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.logger.Debug("closing sync state database")

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("sync: closing database: %w", err)
	}

	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for the shared scan helper.
type rowScanner interface {
	Scan(dest ...any) error
}

// querier abstracts *sql.DB and *sql.Tx so record reads work inside and
// outside transactions.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// scanRecord scans one joined record row.
func scanRecord(row rowScanner) (Record, error) {
	var r Record

	err := row.Scan(
		&r.Name, &r.Ignore, &r.IgnoreAttachment, &r.SyncTime,
		&r.SyncRemoteVersion, &r.SyncLocalVersion, &r.RemoteVersion,
		&r.LocalVersion,
	)

	return r, err
}

// Find returns the record for name, with the live local version joined in.
// Returns (nil, nil) when no record exists.
func (s *Store) Find(ctx context.Context, name string) (*Record, error) {
	return findRecord(ctx, s.db, name)
}

func findRecord(ctx context.Context, q querier, name string) (*Record, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: record name required", ErrValidation)
	}

	r, err := scanRecord(q.QueryRowContext(ctx, sqlFindRecord, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // nil record means "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("sync: finding record %q: %w", name, err)
	}

	return &r, nil
}

// All returns every record, ordered by name, each with its live local
// version joined in.
func (s *Store) All(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, sqlAllRecords)
	if err != nil {
		return nil, fmt.Errorf("sync: listing records: %w", err)
	}
	defer rows.Close()

	var records []Record

	for rows.Next() {
		r, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("sync: scanning record row: %w", scanErr)
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sync: iterating record rows: %w", err)
	}

	return records, nil
}

// Create inserts a new record.
func (s *Store) Create(ctx context.Context, r Record) error {
	return createRecord(ctx, s.db, r)
}

func createRecord(ctx context.Context, q querier, r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}

	_, err := q.ExecContext(ctx, sqlInsertRecord,
		r.Name, r.Ignore, r.IgnoreAttachment, r.SyncTime,
		r.SyncRemoteVersion, r.SyncLocalVersion, r.RemoteVersion,
	)
	if err != nil {
		return fmt.Errorf("sync: creating record %q: %w", r.Name, err)
	}

	return nil
}

// Update rewrites an existing record's persisted fields. Reports
// ErrRecordNotFound when the row vanished, e.g. deleted by a concurrent
// reconciliation pass.
func (s *Store) Update(ctx context.Context, r Record) error {
	return updateRecord(ctx, s.db, r)
}

func updateRecord(ctx context.Context, q querier, r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, sqlUpdateRecord,
		r.Ignore, r.IgnoreAttachment, r.SyncTime,
		r.SyncRemoteVersion, r.SyncLocalVersion, r.RemoteVersion,
		r.Name,
	)
	if err != nil {
		return fmt.Errorf("sync: updating record %q: %w", r.Name, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sync: updating record %q: %w", r.Name, err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %q", ErrRecordNotFound, r.Name)
	}

	return nil
}

// Delete removes a record by name. Reports ErrRecordNotFound when no row
// matched.
func (s *Store) Delete(ctx context.Context, name string) error {
	return deleteRecord(ctx, s.db, name)
}

func deleteRecord(ctx context.Context, q querier, name string) error {
	if name == "" {
		return fmt.Errorf("%w: record name required", ErrValidation)
	}

	result, err := q.ExecContext(ctx, sqlDeleteRecord, name)
	if err != nil {
		return fmt.Errorf("sync: deleting record %q: %w", name, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sync: deleting record %q: %w", name, err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %q", ErrRecordNotFound, name)
	}

	return nil
}

// SyncLocalNames creates a default record for every local page name that
// has none. Existing records are never touched; calling it repeatedly is a
// no-op once all names are recorded. Runs in a single transaction.
func (s *Store) SyncLocalNames(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sync: begin local-names tx: %w", err)
	}

	names, err := queryNames(ctx, tx, sqlUnrecordedLocalNames)
	if err != nil {
		rollbackErr := tx.Rollback()
		return fmt.Errorf("sync: listing unrecorded local names: %w (rollback: %v)", err, rollbackErr)
	}

	for _, name := range names {
		if createErr := createRecord(ctx, tx, NewRecord(name)); createErr != nil {
			rollbackErr := tx.Rollback()
			return fmt.Errorf("sync: recording local name %q: %w (rollback: %v)", name, createErr, rollbackErr)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sync: commit local-names tx: %w", err)
	}

	if len(names) > 0 {
		s.logger.Info("recorded local pages", slog.Int("count", len(names)))
	}

	return nil
}

// SyncRemoteBatch folds a complete remote snapshot into the record set in
// one transaction. Records are created for unknown names (consulting the
// ignore filter at creation, and for never-reconciled rows, only); every
// fact's remote version is merged and the sync time stamped. Names missing
// from the snapshot are treated as deleted remotely: remote-only records
// are removed, records with a local copy survive with their remote fields
// cleared.
//
// An empty snapshot is treated as a failed listing and folds nothing; it
// never wipes the record set.
func (s *Store) SyncRemoteBatch(ctx context.Context, facts []PageFact, filter *IgnoreFilter) error {
	if len(facts) == 0 {
		s.logger.Warn("remote snapshot empty, skipping batch")
		return nil
	}

	now := s.nowFunc().UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sync: begin remote-batch tx: %w", err)
	}

	if err := s.applyRemoteBatch(ctx, tx, facts, filter, now); err != nil {
		rollbackErr := tx.Rollback()
		return fmt.Errorf("%w (rollback: %v)", err, rollbackErr)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sync: commit remote-batch tx: %w", err)
	}

	s.logger.Info("remote snapshot folded", slog.Int("facts", len(facts)))

	return nil
}

func (s *Store) applyRemoteBatch(
	ctx context.Context, tx *sql.Tx, facts []PageFact, filter *IgnoreFilter, now int64,
) error {
	processed := make(map[string]bool, len(facts))

	for _, fact := range facts {
		if err := s.applyRemoteFact(ctx, tx, fact, filter, now); err != nil {
			return err
		}

		processed[fact.Name] = true
	}

	names, err := queryNames(ctx, tx, sqlRecordNames)
	if err != nil {
		return fmt.Errorf("sync: listing record names: %w", err)
	}

	for _, name := range names {
		if processed[name] {
			continue
		}

		if err := s.retireRemoteAbsentee(ctx, tx, name, now); err != nil {
			return err
		}
	}

	return nil
}

// applyRemoteFact merges one remote observation into the record set.
func (s *Store) applyRemoteFact(
	ctx context.Context, tx *sql.Tx, fact PageFact, filter *IgnoreFilter, now int64,
) error {
	rec, err := findRecord(ctx, tx, fact.Name)
	if err != nil {
		return err
	}

	if rec == nil {
		fresh := NewRecord(fact.Name)
		fresh.Ignore = filter.Matches(fact.Name)
		fresh.RemoteVersion = fact.RemoteVersion
		fresh.SyncTime = now

		return createRecord(ctx, tx, fresh)
	}

	// The filter seeds the ignore flag only while the record has never
	// been reconciled; afterwards the operator's choice stands.
	if rec.SyncTime == 0 && filter.Matches(rec.Name) {
		rec.Ignore = true
	}

	rec.RemoteVersion = fact.RemoteVersion
	rec.SyncTime = now

	return updateRecord(ctx, tx, *rec)
}

// retireRemoteAbsentee handles a record whose name was absent from the
// snapshot: the remote copy is gone. Remote-only ghosts are deleted;
// records with a surviving local copy keep it and lose their remote fields.
func (s *Store) retireRemoteAbsentee(ctx context.Context, tx *sql.Tx, name string, now int64) error {
	rec, err := findRecord(ctx, tx, name)
	if err != nil {
		return err
	}

	if rec == nil {
		return fmt.Errorf("%w: %q", ErrRecordNotFound, name)
	}

	if rec.LocalVersion == 0 {
		s.logger.Debug("deleting remote-only ghost", slog.String("name", name))
		return deleteRecord(ctx, tx, name)
	}

	rec.RemoteVersion = 0
	rec.SyncRemoteVersion = 0
	rec.SyncTime = now

	s.logger.Debug("remote copy gone, keeping local record", slog.String("name", name))

	return updateRecord(ctx, tx, *rec)
}

// queryNames runs a single-column name query and collects the results.
func queryNames(ctx context.Context, q querier, query string) ([]string, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}

		names = append(names, name)
	}

	return names, rows.Err()
}
