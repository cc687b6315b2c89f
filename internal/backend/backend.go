// Package backend defines the versioned-blob backend the record store
// persists through.
//
// A backend tracks files of a project tree across commits. The store only
// reads historical versions and stages the working copy; committing is left
// to the caller. Two drivers exist: git (the git command line) and memory
// (process-local history, for tests).
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Driver identifies a concrete backend implementation.
type Driver string

const (
	// DriverGit runs the git command line in the project root.
	DriverGit Driver = "git"
	// DriverMemory keeps history in process memory (tests).
	DriverMemory Driver = "memory"
)

// Scope selects which changes HasChanges looks at.
type Scope string

const (
	ScopeAll      Scope = "all"
	ScopeStaged   Scope = "staged"
	ScopeUnstaged Scope = "unstaged"
)

// ParseScope validates a scope name.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeAll, ScopeStaged, ScopeUnstaged:
		return Scope(s), nil
	}
	return "", fmt.Errorf("invalid change scope %q (want all, staged or unstaged)", s)
}

// Commit describes one commit that touched a file.
type Commit struct {
	Hash    string    `json:"hash"`
	Author  string    `json:"author"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// HunkKind classifies a diff hunk.
type HunkKind string

const (
	HunkAdded   HunkKind = "added"
	HunkRemoved HunkKind = "removed"
	HunkChanged HunkKind = "changed"
)

// Hunk is a contiguous change between the committed and the working
// version of a file. Line numbers are 1-based; OldStart/OldLines refer to
// the committed version and NewStart/NewLines to the working copy.
type Hunk struct {
	Kind     HunkKind
	OldStart int
	OldLines int
	NewStart int
	NewLines int
}

// Diff lists the hunks between the last commit and the working copy.
type Diff struct {
	Path  string
	Hunks []Hunk
}

// Empty reports whether the diff has no hunks.
func (d Diff) Empty() bool { return len(d.Hunks) == 0 }

// Backend is the versioned-blob backend consumed by the store.
//
// Paths are slash-separated and relative to the project root. An empty
// commit means the most recent one.
type Backend interface {
	// ReadBlob returns the content of path at commit. Returns an error
	// wrapping ErrNotFound if the file does not exist in that commit.
	ReadBlob(ctx context.Context, path, commit string) ([]byte, error)

	// Commits lists the commits that touched path, newest first.
	Commits(ctx context.Context, path string) ([]Commit, error)

	// Stage records the working copy of path for the next commit.
	// A path missing from the working tree is staged as deleted.
	Stage(ctx context.Context, path string) error

	// Remove deletes path from the working tree and stages the deletion.
	Remove(ctx context.Context, path string) error

	// IsDirty reports whether path differs from its committed version.
	IsDirty(ctx context.Context, path string) (bool, error)

	// HasChanges reports staged, unstaged or any differences for path.
	// Without any commit, every file counts as changed.
	HasChanges(ctx context.Context, path string, scope Scope) (bool, error)

	// Diff returns the hunks between the last commit and the working copy.
	// Drivers that cannot compute diffs return ErrUnsupported.
	Diff(ctx context.Context, path string) (Diff, error)

	// Driver returns the driver identifier.
	Driver() Driver
}

// Committer is implemented by backends that can create commits. The store
// itself never commits.
type Committer interface {
	Commit(ctx context.Context, message string) (string, error)
}

var (
	// ErrUnsupported is returned when an optional capability is not available.
	ErrUnsupported = errors.New("backend: unsupported operation")

	// ErrNotFound is returned when a file does not exist in a commit.
	ErrNotFound = errors.New("backend: file not found")
)

// ClassifyHunk derives the hunk kind from its line counts.
func ClassifyHunk(oldLines, newLines int) HunkKind {
	switch {
	case oldLines == 0:
		return HunkAdded
	case newLines == 0:
		return HunkRemoved
	default:
		return HunkChanged
	}
}
