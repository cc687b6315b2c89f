package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/litstore/internal/backend"
	"github.com/roach88/litstore/internal/backend/git"
	"github.com/roach88/litstore/internal/backend/memory"
	"github.com/roach88/litstore/internal/config"
	"github.com/roach88/litstore/internal/history"
	"github.com/roach88/litstore/internal/ids"
	"github.com/roach88/litstore/internal/index"
	"github.com/roach88/litstore/internal/store"
)

// project bundles everything a command needs to work on one project.
type project struct {
	root     string
	settings config.Settings
	backend  backend.Backend
	store    *store.Store
	history  *history.Inspector
	index    *index.Index // nil without index_path
	logger   *slog.Logger
}

func newLogger(opts *RootOptions, cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// openProject loads settings.yaml and opens the backend, the curated index
// and the store of the project at opts.Project.
func openProject(opts *RootOptions, cmd *cobra.Command) (*project, error) {
	root, err := filepath.Abs(opts.Project)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid project path", err)
	}
	settings, err := config.Load(root)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid settings", err)
	}
	logger := newLogger(opts, cmd)

	b := opts.Backend
	if b == nil {
		b, err = openBackend(root, settings.Backend, logger)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open backend", err)
		}
	}

	p := &project{root: root, settings: settings, backend: b, logger: logger}

	allocator := &ids.Allocator{
		Pattern:           settings.IDPattern,
		CuratedMasterdata: settings.CuratedMasterdata,
	}
	if settings.IndexPath != "" {
		path := settings.IndexPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		p.index, err = index.Open(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open index", err)
		}
		allocator.Index = p.index
	}

	p.store = store.New(root, b,
		store.WithRecordsPath(settings.RecordsFile),
		store.WithAllocator(allocator),
		store.WithLogger(logger))
	p.history = history.New(b, settings.RecordsFile)
	logger.Debug("project opened",
		"root", root,
		"driver", b.Driver(),
		"records", settings.RecordsFile)
	return p, nil
}

func openBackend(root string, s config.BackendSettings, logger *slog.Logger) (backend.Backend, error) {
	switch s.Driver {
	case backend.DriverGit:
		opts := []git.Option{
			git.WithTimeout(s.CommandTimeout.Std()),
			git.WithLockRetry(s.LockMaxAttempts, s.LockInitialInterval.Std()),
			git.WithLogger(logger),
		}
		if s.AuthorName != "" {
			opts = append(opts, git.WithIdentity(s.AuthorName, s.AuthorEmail))
		}
		return git.New(root, opts...)
	case backend.DriverMemory:
		return memory.New(root), nil
	default:
		return nil, fmt.Errorf("unknown backend driver %q", s.Driver)
	}
}

// Close releases the curated index.
func (p *project) Close() {
	if p.index == nil {
		return
	}
	if err := p.index.Close(); err != nil {
		p.logger.Error("error closing index", "error", err)
	}
}
