package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; the journal is history only, so a mismatched database can simply
// be deleted.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different
// schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 25 * time.Millisecond
	busyRetryMaxBackoff     = 400 * time.Millisecond
	sqliteBusyCode          = 5
)

// Entry statuses.
const (
	StatusPouring   = "pouring"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Operation kinds. Pours come from tape detections; the rest are operator
// maintenance.
const (
	OperationPour    = "pour"
	OperationPrime   = "prime"
	OperationClean   = "clean"
	OperationRunPump = "run_pump"
)

// Entry is one journal row.
type Entry struct {
	ID               string
	Tag              string
	Recipe           string
	Operation        string
	Status           string
	Fault            string
	IngredientsTotal int
	IngredientsDone  int
	StartedAt        time.Time
	FinishedAt       time.Time
}

// Stats summarizes the journal for the status display.
type Stats struct {
	Total     int
	Completed int
	Failed    int
}

// Store is the SQLite-backed journal.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the journal database at path, creating it and the schema
// on first use.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path reports the database file location.
func (s *Store) Path() string {
	return s.path
}

// BeginPour records the start of a pour job.
func (s *Store) BeginPour(ctx context.Context, id, tag, recipe string, ingredientsTotal int) error {
	return s.execWithRetry(ctx,
		`INSERT INTO pours (id, tag, recipe, operation, status, ingredients_total, ingredients_done, started_at)
         VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		id, tag, recipe, OperationPour, StatusPouring, ingredientsTotal, timestamp())
}

// MarkProgress updates the completed ingredient count for an active pour.
func (s *Store) MarkProgress(ctx context.Context, id string, ingredientsDone int) error {
	return s.execWithRetry(ctx,
		`UPDATE pours SET ingredients_done = ? WHERE id = ?`,
		ingredientsDone, id)
}

// CompletePour marks a pour finished successfully.
func (s *Store) CompletePour(ctx context.Context, id string) error {
	return s.execWithRetry(ctx,
		`UPDATE pours SET status = ?, ingredients_done = ingredients_total, finished_at = ? WHERE id = ?`,
		StatusCompleted, timestamp(), id)
}

// FailPour marks a pour failed with its fault kind.
func (s *Store) FailPour(ctx context.Context, id, fault string) error {
	return s.execWithRetry(ctx,
		`UPDATE pours SET status = ?, fault = ?, finished_at = ? WHERE id = ?`,
		StatusFailed, fault, timestamp(), id)
}

// RecordMaintenance writes one completed maintenance operation. The recipe
// column carries a human description of what ran.
func (s *Store) RecordMaintenance(ctx context.Context, id, operation, description string) error {
	now := timestamp()
	return s.execWithRetry(ctx,
		`INSERT INTO pours (id, tag, recipe, operation, status, ingredients_total, ingredients_done, started_at, finished_at)
         VALUES (?, '', ?, ?, ?, 0, 0, ?, ?)`,
		id, description, operation, StatusCompleted, now, now)
}

// List returns the most recent entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tag, recipe, operation, status, fault, ingredients_total, ingredients_done, started_at, finished_at
         FROM pours ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Get returns one entry by job ID.
func (s *Store) Get(ctx context.Context, id string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tag, recipe, operation, status, fault, ingredients_total, ingredients_done, started_at, finished_at
         FROM pours WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// Stats summarizes pour outcomes. Maintenance entries are excluded.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1),
                COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
                COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
         FROM pours WHERE operation = ?`,
		StatusCompleted, StatusFailed, OperationPour).Scan(&stats.Total, &stats.Completed, &stats.Failed)
	if err != nil {
		return Stats{}, fmt.Errorf("journal stats: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		entry      Entry
		fault      sql.NullString
		startedAt  string
		finishedAt sql.NullString
	)
	if err := row.Scan(&entry.ID, &entry.Tag, &entry.Recipe, &entry.Operation, &entry.Status,
		&fault, &entry.IngredientsTotal, &entry.IngredientsDone, &startedAt, &finishedAt); err != nil {
		return Entry{}, err
	}
	entry.Fault = fault.String
	entry.StartedAt = parseTimestamp(startedAt)
	if finishedAt.Valid {
		entry.FinishedAt = parseTimestamp(finishedAt.String)
	}
	return entry, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
