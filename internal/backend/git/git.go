// Package git implements the versioned-blob backend on top of the git
// command line.
//
// Every command runs in the project root with a per-command timeout.
// Commands that write the index first wait for .git/index.lock to
// disappear, since another short-lived git process usually holds it only
// briefly.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/roach88/litstore/internal/backend"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultLockMaxAttempts = 30
	defaultLockInterval    = 100 * time.Millisecond
	defaultLockMaxInterval = 5 * time.Second

	// lockWarnAfter is the attempt after which waiting is logged.
	lockWarnAfter = 5
)

// Backend implements backend.Backend with the git CLI.
//
// Safe for concurrent use, though concurrent writers will contend for the
// index lock.
type Backend struct {
	root            string
	timeout         time.Duration
	lockMaxAttempts int
	lockInterval    time.Duration
	lockMaxInterval time.Duration
	identity        []string
	logger          *slog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithTimeout bounds every git invocation.
func WithTimeout(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithLockRetry sets how often and how fast the index lock is polled.
func WithLockRetry(maxAttempts int, initial time.Duration) Option {
	return func(b *Backend) {
		if maxAttempts > 0 {
			b.lockMaxAttempts = maxAttempts
		}
		if initial > 0 {
			b.lockInterval = initial
			if b.lockMaxInterval < initial {
				b.lockMaxInterval = initial
			}
		}
	}
}

// WithIdentity sets the author used by Commit, overriding git config.
func WithIdentity(name, email string) Option {
	return func(b *Backend) {
		b.identity = []string{"-c", "user.name=" + name, "-c", "user.email=" + email}
	}
}

// WithLogger sets the logger for lock contention messages.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a backend for the repository at root, which must be absolute.
func New(root string, opts ...Option) (*Backend, error) {
	if !filepath.IsAbs(root) {
		return nil, fmt.Errorf("repository root must be absolute: %s", root)
	}
	b := &Backend{
		root:            root,
		timeout:         defaultTimeout,
		lockMaxAttempts: defaultLockMaxAttempts,
		lockInterval:    defaultLockInterval,
		lockMaxInterval: defaultLockMaxInterval,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Driver returns the backend driver identifier.
func (b *Backend) Driver() backend.Driver { return backend.DriverGit }

// Root returns the repository root.
func (b *Backend) Root() string { return b.root }

// run executes a git command and returns its raw stdout.
func (b *Backend) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = b.root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("git %s: timeout after %v", args[0], b.timeout)
		}
		return nil, &commandError{args: args, err: err, stderr: strings.TrimSpace(stderr.String())}
	}
	return stdout.Bytes(), nil
}

// commandError keeps git's stderr so callers can classify failures.
type commandError struct {
	args   []string
	err    error
	stderr string
}

func (e *commandError) Error() string {
	return fmt.Sprintf("git %s: %v: %s", e.args[0], e.err, e.stderr)
}

func (e *commandError) Unwrap() error { return e.err }

// hasHead reports whether the repository has at least one commit.
func (b *Backend) hasHead(ctx context.Context) (bool, error) {
	_, err := b.run(ctx, "rev-parse", "--verify", "--quiet", "HEAD")
	if err == nil {
		return true, nil
	}
	var ce *commandError
	if errors.As(err, &ce) {
		return false, nil
	}
	return false, err
}

// ReadBlob returns the content of path at commit (HEAD if empty).
func (b *Backend) ReadBlob(ctx context.Context, path, commit string) ([]byte, error) {
	if commit == "" {
		commit = "HEAD"
	}
	out, err := b.run(ctx, "show", commit+":"+path)
	if err != nil {
		var ce *commandError
		if errors.As(err, &ce) && isMissingObject(ce.stderr) {
			return nil, fmt.Errorf("%s at %s: %w", path, commit, backend.ErrNotFound)
		}
		return nil, fmt.Errorf("read blob %s at %s: %w", path, commit, err)
	}
	return out, nil
}

func isMissingObject(stderr string) bool {
	for _, marker := range []string{
		"does not exist in",
		"exists on disk, but not in",
		"invalid object name",
		"bad revision",
		"unknown revision",
	} {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}

// Commits lists the commits that touched path, newest first.
func (b *Backend) Commits(ctx context.Context, path string) ([]backend.Commit, error) {
	ok, err := b.hasHead(ctx)
	if err != nil || !ok {
		return nil, err
	}
	out, err := b.run(ctx, "log", "--format=%H%x00%an%x00%ct%x00%s", "--", path)
	if err != nil {
		return nil, fmt.Errorf("list commits of %s: %w", path, err)
	}
	return parseLog(out)
}

func parseLog(out []byte) ([]backend.Commit, error) {
	var commits []backend.Commit
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\x00", 4)
		if len(parts) != 4 {
			return nil, fmt.Errorf("unexpected git log line %q", line)
		}
		secs, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("commit time %q: %w", parts[2], err)
		}
		commits = append(commits, backend.Commit{
			Hash:    parts[0],
			Author:  parts[1],
			Time:    time.Unix(secs, 0).UTC(),
			Message: parts[3],
		})
	}
	return commits, nil
}

// Stage adds path (or its deletion) to the index.
func (b *Backend) Stage(ctx context.Context, path string) error {
	if err := b.waitUnlocked(ctx); err != nil {
		return err
	}
	if _, err := b.run(ctx, "add", "--all", "--", path); err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	return nil
}

// Remove deletes path from the working tree and the index.
func (b *Backend) Remove(ctx context.Context, path string) error {
	if err := b.waitUnlocked(ctx); err != nil {
		return err
	}
	if _, err := b.run(ctx, "rm", "-q", "-f", "--ignore-unmatch", "--", path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	err := os.Remove(filepath.Join(b.root, filepath.FromSlash(path)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// IsDirty reports whether git status lists path.
func (b *Backend) IsDirty(ctx context.Context, path string) (bool, error) {
	out, err := b.run(ctx, "status", "--porcelain", "--", path)
	if err != nil {
		return false, fmt.Errorf("status of %s: %w", path, err)
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}

// HasChanges reports staged, unstaged (including untracked) or any
// differences for path.
func (b *Backend) HasChanges(ctx context.Context, path string, scope backend.Scope) (bool, error) {
	ok, err := b.hasHead(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}

	if scope != backend.ScopeUnstaged {
		out, err := b.run(ctx, "diff", "--cached", "--name-only", "--", path)
		if err != nil {
			return false, fmt.Errorf("staged changes of %s: %w", path, err)
		}
		if len(bytes.TrimSpace(out)) > 0 {
			return true, nil
		}
		if scope == backend.ScopeStaged {
			return false, nil
		}
	}

	out, err := b.run(ctx, "diff", "--name-only", "--", path)
	if err != nil {
		return false, fmt.Errorf("unstaged changes of %s: %w", path, err)
	}
	if len(bytes.TrimSpace(out)) > 0 {
		return true, nil
	}
	out, err = b.run(ctx, "ls-files", "--others", "--exclude-standard", "--", path)
	if err != nil {
		return false, fmt.Errorf("untracked files of %s: %w", path, err)
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}

// Diff returns the zero-context hunks between HEAD and the working copy.
// Without any commit the whole file is one added hunk.
func (b *Backend) Diff(ctx context.Context, path string) (backend.Diff, error) {
	result := backend.Diff{Path: path}

	ok, err := b.hasHead(ctx)
	if err != nil {
		return result, err
	}
	if !ok {
		data, err := os.ReadFile(filepath.Join(b.root, filepath.FromSlash(path)))
		if errors.Is(err, os.ErrNotExist) {
			return result, nil
		}
		if err != nil {
			return result, fmt.Errorf("diff %s: %w", path, err)
		}
		if n := countLines(data); n > 0 {
			result.Hunks = []backend.Hunk{{Kind: backend.HunkAdded, NewStart: 1, NewLines: n}}
		}
		return result, nil
	}

	out, err := b.run(ctx, "diff", "--no-color", "--no-ext-diff", "-U0", "HEAD", "--", path)
	if err != nil {
		return result, fmt.Errorf("diff %s: %w", path, err)
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return result, nil
	}
	fileDiffs, err := diff.NewMultiFileDiffReader(bytes.NewReader(out)).ReadAllFiles()
	if err != nil {
		return result, fmt.Errorf("parse diff of %s: %w", path, err)
	}
	for _, fd := range fileDiffs {
		for _, h := range fd.Hunks {
			oldLines, newLines := int(h.OrigLines), int(h.NewLines)
			result.Hunks = append(result.Hunks, backend.Hunk{
				Kind:     backend.ClassifyHunk(oldLines, newLines),
				OldStart: int(h.OrigStartLine),
				OldLines: oldLines,
				NewStart: int(h.NewStartLine),
				NewLines: newLines,
			})
		}
	}
	return result, nil
}

func countLines(data []byte) int {
	n := bytes.Count(data, []byte{'\n'})
	if len(data) > 0 && data[len(data)-1] != '\n' {
		n++
	}
	return n
}

// Commit commits the index and returns the new HEAD hash.
func (b *Backend) Commit(ctx context.Context, message string) (string, error) {
	if err := b.waitUnlocked(ctx); err != nil {
		return "", err
	}
	args := append(append([]string{}, b.identity...), "commit", "-q", "--allow-empty", "-m", message)
	if _, err := b.run(ctx, args...); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	out, err := b.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

var (
	_ backend.Backend   = (*Backend)(nil)
	_ backend.Committer = (*Backend)(nil)
)
