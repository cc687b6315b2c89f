// Package memory implements a backend with process-local history. Intended
// for tests.
//
// The working tree is a real directory, since the store writes files to
// disk; only the index and the commits live in memory.
package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/roach88/litstore/internal/backend"
)

type commit struct {
	info backend.Commit
	tree map[string][]byte
}

// Backend implements backend.Backend and backend.Committer.
type Backend struct {
	mu      sync.Mutex
	root    string
	index   map[string][]byte
	commits []commit // oldest first
	author  string
	now     func() time.Time
}

// Option configures a Backend.
type Option func(*Backend)

// WithAuthor sets the author recorded on commits.
func WithAuthor(name string) Option {
	return func(b *Backend) { b.author = name }
}

// WithClock sets the time source for commit timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// New returns a backend whose working tree is root.
func New(root string, opts ...Option) *Backend {
	b := &Backend{
		root:   root,
		index:  make(map[string][]byte),
		author: "memory",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Driver returns the backend driver identifier.
func (b *Backend) Driver() backend.Driver { return backend.DriverMemory }

// Root returns the working tree directory.
func (b *Backend) Root() string { return b.root }

func (b *Backend) head() map[string][]byte {
	if len(b.commits) == 0 {
		return nil
	}
	return b.commits[len(b.commits)-1].tree
}

func (b *Backend) readWorking(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(b.root, filepath.FromSlash(path)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	return data, true, nil
}

// ReadBlob returns the committed content of path.
func (b *Backend) ReadBlob(_ context.Context, path, hash string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var tree map[string][]byte
	if hash == "" {
		tree = b.head()
	} else {
		for _, c := range b.commits {
			if c.info.Hash == hash {
				tree = c.tree
				break
			}
		}
		if tree == nil {
			return nil, fmt.Errorf("unknown commit %s", hash)
		}
	}
	data, ok := tree[path]
	if !ok {
		return nil, fmt.Errorf("%s at %q: %w", path, hash, backend.ErrNotFound)
	}
	return bytes.Clone(data), nil
}

// Commits lists the commits in which path changed, newest first.
func (b *Backend) Commits(_ context.Context, path string) ([]backend.Commit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []backend.Commit
	var prev []byte
	var prevOK bool
	for _, c := range b.commits {
		data, ok := c.tree[path]
		if ok != prevOK || !bytes.Equal(data, prev) {
			out = append(out, c.info)
		}
		prev, prevOK = data, ok
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Stage copies the working file into the index.
func (b *Backend) Stage(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok, err := b.readWorking(path)
	if err != nil {
		return err
	}
	if !ok {
		delete(b.index, path)
		return nil
	}
	b.index[path] = data
	return nil
}

// Remove deletes the working file and stages the deletion.
func (b *Backend) Remove(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := os.Remove(filepath.Join(b.root, filepath.FromSlash(path)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	delete(b.index, path)
	return nil
}

// IsDirty reports whether the index or the working file differ from HEAD.
func (b *Backend) IsDirty(ctx context.Context, path string) (bool, error) {
	return b.HasChanges(ctx, path, backend.ScopeAll)
}

// HasChanges compares HEAD, index and working tree for path.
func (b *Backend) HasChanges(_ context.Context, path string, scope backend.Scope) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.commits) == 0 {
		return true, nil
	}
	headData, inHead := b.head()[path]
	indexData, inIndex := b.index[path]
	working, onDisk, err := b.readWorking(path)
	if err != nil {
		return false, err
	}
	staged := inHead != inIndex || !bytes.Equal(headData, indexData)
	unstaged := inIndex != onDisk || !bytes.Equal(indexData, working)

	switch scope {
	case backend.ScopeStaged:
		return staged, nil
	case backend.ScopeUnstaged:
		return unstaged, nil
	default:
		return staged || unstaged, nil
	}
}

// Diff is not supported by the memory backend.
func (b *Backend) Diff(context.Context, string) (backend.Diff, error) {
	return backend.Diff{}, backend.ErrUnsupported
}

// Commit snapshots the index and returns the new commit hash.
func (b *Backend) Commit(_ context.Context, message string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tree := maps.Clone(b.index)
	h := sha256.New()
	if parent := len(b.commits); parent > 0 {
		h.Write([]byte(b.commits[parent-1].info.Hash))
	}
	h.Write([]byte(message))
	for _, p := range slices.Sorted(maps.Keys(tree)) {
		h.Write([]byte(p))
		h.Write([]byte{0})
		h.Write(tree[p])
	}
	hash := hex.EncodeToString(h.Sum(nil))[:40]

	b.commits = append(b.commits, commit{
		info: backend.Commit{
			Hash:    hash,
			Author:  b.author,
			Time:    b.now().UTC().Truncate(time.Second),
			Message: message,
		},
		tree: tree,
	})
	return hash, nil
}

var (
	_ backend.Backend   = (*Backend)(nil)
	_ backend.Committer = (*Backend)(nil)
)
