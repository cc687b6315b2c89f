package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/litstore/internal/backend/memory"
	"github.com/roach88/litstore/internal/record"
)

// Project is a temporary review project backed by the memory backend.
type Project struct {
	Root    string
	Backend *memory.Backend
	Clock   *StepClock
}

// NewProject creates an empty project in a temporary directory. Commits
// are timestamped one minute apart starting at 2024-01-01 UTC.
func NewProject(t *testing.T) *Project {
	t.Helper()
	root := t.TempDir()
	clock := NewStepClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Minute)
	return &Project{
		Root:    root,
		Backend: memory.New(root, memory.WithAuthor("tester"), memory.WithClock(clock.Now)),
		Clock:   clock,
	}
}

// Path returns the absolute path of a project-relative file.
func (p *Project) Path(rel string) string {
	return filepath.Join(p.Root, filepath.FromSlash(rel))
}

// WriteFile writes a project-relative file, creating parent directories.
func (p *Project) WriteFile(t *testing.T, rel, content string) {
	t.Helper()
	path := p.Path(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// ReadFile returns the content of a project-relative file.
func (p *Project) ReadFile(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(p.Path(rel))
	require.NoError(t, err)
	return string(data)
}

// Commit stages the given files and commits them.
func (p *Project) Commit(t *testing.T, message string, paths ...string) string {
	t.Helper()
	ctx := context.Background()
	for _, path := range paths {
		require.NoError(t, p.Backend.Stage(ctx, path))
	}
	hash, err := p.Backend.Commit(ctx, message)
	require.NoError(t, err)
	return hash
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Record builds a record with the given fields as alternating key/value
// pairs.
func Record(id string, status record.Status, origins []string, kv ...string) *record.Record {
	r := record.New(id, "article", status, origins...)
	for i := 0; i+1 < len(kv); i += 2 {
		r.Set(kv[i], kv[i+1])
	}
	return r
}

// Records indexes records by ID.
func Records(rs ...*record.Record) map[string]*record.Record {
	m := make(map[string]*record.Record, len(rs))
	for _, r := range rs {
		m[r.ID] = r
	}
	return m
}
