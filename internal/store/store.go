package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/roach88/litstore/internal/backend"
	"github.com/roach88/litstore/internal/bib"
	"github.com/roach88/litstore/internal/ids"
	"github.com/roach88/litstore/internal/record"
)

// DefaultRecordsPath is the records file relative to the project root.
const DefaultRecordsPath = "data/records.bib"

// Store is the handle on one project's record file.
type Store struct {
	root        string
	recordsPath string
	backend     backend.Backend
	allocator   *ids.Allocator
	logger      *slog.Logger

	operation   record.Operation
	operationID string
}

// Option configures a Store.
type Option func(*Store)

// WithRecordsPath sets the records file, relative to the project root.
func WithRecordsPath(path string) Option {
	return func(s *Store) {
		if path != "" {
			s.recordsPath = filepath.ToSlash(path)
		}
	}
}

// WithAllocator sets the ID allocator used by SetIDs and Import.
func WithAllocator(a *ids.Allocator) Option {
	return func(s *Store) {
		if a != nil {
			s.allocator = a
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a store for the project at root. The backend must track the
// same tree.
func New(root string, b backend.Backend, opts ...Option) *Store {
	s := &Store{
		root:        root,
		recordsPath: DefaultRecordsPath,
		backend:     b,
		allocator:   &ids.Allocator{Pattern: ids.FirstAuthorYear},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the project root.
func (s *Store) Root() string { return s.root }

// RecordsPath returns the records file relative to the project root.
func (s *Store) RecordsPath() string { return s.recordsPath }

// Backend returns the backend the store stages through.
func (s *Store) Backend() backend.Backend { return s.backend }

func (s *Store) filePath() string {
	return filepath.Join(s.root, filepath.FromSlash(s.recordsPath))
}

// Notify declares the operation about to run and returns its ID.
// It replaces any earlier declaration.
func (s *Store) Notify(op record.Operation) string {
	s.operation = op
	s.operationID = uuid.Must(uuid.NewV7()).String()
	s.logger.Debug("operation declared",
		"operation", op,
		"operation_id", s.operationID)
	return s.operationID
}

// Operation returns the declared operation and its ID.
func (s *Store) Operation() (record.Operation, string) {
	return s.operation, s.operationID
}

func (s *Store) guard(call string) error {
	if s.operation == "" {
		return record.NewNotNotifiedError(call)
	}
	return nil
}

// Load reads the records file. With headerOnly, only IDs, origins, status
// and header fields are read. A missing file yields an empty mapping.
func (s *Store) Load(ctx context.Context, headerOnly bool) (map[string]*record.Record, error) {
	if err := s.guard("Load"); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.filePath())
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]*record.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	var records map[string]*record.Record
	if headerOnly {
		records, err = bib.ExtractHeaders(data)
	} else {
		records, err = bib.Parse(data)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.recordsPath, err)
	}
	return records, nil
}

// Save writes records to the records file and stages it.
//
// With partial=false the whole file is rendered. With partial=true only the
// entries of the given records are replaced in place; every record must
// already have an entry in the file.
//
// Every record is validated with record.ValidateForStore first. On a
// violation nothing is written and the MALFORMED_ENTRY error is returned.
func (s *Store) Save(ctx context.Context, records map[string]*record.Record, partial bool) error {
	if err := s.guard("Save"); err != nil {
		return err
	}
	for _, id := range record.SortedIDs(records) {
		r := records[id]
		if r.ID != id {
			return fmt.Errorf("save: %w", record.NewMalformedEntryError(r.ID, fmt.Sprintf("record is keyed as %s", id)))
		}
		if err := record.ValidateForStore(r); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	if partial {
		written, err := patchFile(s.filePath(), records)
		if err != nil {
			return fmt.Errorf("save: %w", err)
		}
		s.logger.Debug("records patched",
			"operation_id", s.operationID,
			"requested", len(records),
			"written", written)
	} else {
		if err := writeFile(s.filePath(), bib.Render(records)); err != nil {
			return fmt.Errorf("save: %w", err)
		}
		s.logger.Debug("records saved",
			"operation_id", s.operationID,
			"records", len(records))
	}
	return s.stage(ctx)
}

func (s *Store) stage(ctx context.Context) error {
	if err := s.backend.Stage(ctx, s.recordsPath); err != nil {
		return fmt.Errorf("stage %s: %w", s.recordsPath, err)
	}
	return nil
}

// writeFile replaces the content of path and syncs it to disk.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// HasChanges reports whether the records file has staged, unstaged or any
// changes.
func (s *Store) HasChanges(ctx context.Context, scope backend.Scope) (bool, error) {
	changed, err := s.backend.HasChanges(ctx, s.recordsPath, scope)
	if err != nil {
		return false, fmt.Errorf("has changes: %w", err)
	}
	return changed, nil
}
