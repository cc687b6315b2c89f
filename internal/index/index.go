package index

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/litstore/internal/record"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - records table keyed by fingerprint
const currentSchemaVersion = 1

var (
	// ErrNotInIndex is returned by Retrieve when no curated record matches.
	ErrNotInIndex = errors.New("record not in index")

	// ErrNotEnoughData is returned when a record lacks author, title or year.
	ErrNotEnoughData = errors.New("record lacks author, title or year")
)

// Index is the SQLite-backed curated index.
type Index struct {
	db *sql.DB
}

// Open creates or opens the index database at path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to index: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close closes the database connection.
func (ix *Index) Close() error {
	if ix.db == nil {
		return nil
	}
	return ix.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Retrieve returns the curated ID of the work r describes.
//
// Returns ErrNotEnoughData if r cannot be fingerprinted and ErrNotInIndex
// if the index has no matching entry.
func (ix *Index) Retrieve(ctx context.Context, r *record.Record) (string, error) {
	fp, err := Fingerprint(r)
	if err != nil {
		return "", err
	}
	var id string
	err = ix.db.QueryRowContext(ctx, `SELECT id FROM records WHERE fingerprint = ?`, fp).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotInIndex
	}
	if err != nil {
		return "", fmt.Errorf("retrieve %s: %w", r.ID, err)
	}
	return id, nil
}

// Add inserts r or replaces the ID stored for its fingerprint.
func (ix *Index) Add(ctx context.Context, r *record.Record) error {
	if err := add(ctx, ix.db, r); err != nil {
		return fmt.Errorf("add %s: %w", r.ID, err)
	}
	return nil
}

// AddAll adds every record that can be fingerprinted in one transaction and
// returns how many were indexed. Records lacking data are skipped.
func (ix *Index) AddAll(ctx context.Context, records []*record.Record) (int, error) {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("add all: %w", err)
	}
	defer tx.Rollback()

	n := 0
	for _, r := range records {
		err := add(ctx, tx, r)
		if errors.Is(err, ErrNotEnoughData) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("add all: %s: %w", r.ID, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("add all: commit: %w", err)
	}
	return n, nil
}

// Len returns the number of indexed records.
func (ix *Index) Len(ctx context.Context) (int, error) {
	var n int
	if err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func add(ctx context.Context, db execer, r *record.Record) error {
	fp, err := Fingerprint(r)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO records (fingerprint, id, author, title, year)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			id = excluded.id,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
	`,
		fp,
		r.ID,
		r.Fields[record.FieldAuthor],
		r.Fields[record.FieldTitle],
		r.Fields[record.FieldYear],
	)
	return err
}
