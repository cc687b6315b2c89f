// Package history reads prior versions of the records file from the
// versioned-blob backend.
//
// All reads go against committed blobs. Nothing in this package touches
// the working tree.
package history

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/roach88/litstore/internal/backend"
	"github.com/roach88/litstore/internal/bib"
	"github.com/roach88/litstore/internal/record"
)

// Inspector reads the history of one records file.
type Inspector struct {
	backend     backend.Backend
	recordsPath string
}

// New creates an inspector for the records file at recordsPath (relative
// to the backend root).
func New(b backend.Backend, recordsPath string) *Inspector {
	return &Inspector{backend: b, recordsPath: recordsPath}
}

// Snapshot is the parsed records file at one commit.
type Snapshot struct {
	Commit  backend.Commit
	Records map[string]*record.Record
}

// blob reads the records file at commit. An empty commit selects the most
// recent commit that touched the file. ok is false if the file has no
// committed version.
func (h *Inspector) blob(ctx context.Context, commit string) (data []byte, ok bool, err error) {
	if commit == "" {
		commits, err := h.backend.Commits(ctx, h.recordsPath)
		if err != nil {
			return nil, false, err
		}
		if len(commits) == 0 {
			return nil, false, nil
		}
		commit = commits[0].Hash
	}
	data, err = h.backend.ReadBlob(ctx, h.recordsPath, commit)
	if errors.Is(err, backend.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// PriorHeaders returns the header of every entry at commit (the most
// recent one if empty), in file order. Duplicates and missing statuses are
// kept for the consistency checker to report.
func (h *Inspector) PriorHeaders(ctx context.Context, commit string) ([]*record.Record, error) {
	data, ok, err := h.blob(ctx, commit)
	if err != nil {
		return nil, fmt.Errorf("prior headers: %w", err)
	}
	if !ok {
		return nil, nil
	}
	headers, err := bib.ScanHeaders(data)
	if err != nil {
		return nil, fmt.Errorf("prior headers at %q: %w", commit, err)
	}
	return headers, nil
}

// OriginStates maps every origin at commit (the most recent one if empty)
// to the status of the record that owns it. A merged record contributes
// one key per origin.
func (h *Inspector) OriginStates(ctx context.Context, commit string) (map[string]record.Status, error) {
	headers, err := h.PriorHeaders(ctx, commit)
	if err != nil {
		return nil, fmt.Errorf("origin states: %w", err)
	}
	states := make(map[string]record.Status)
	for _, r := range headers {
		for _, o := range r.Origins {
			states[o] = r.Status
		}
	}
	return states, nil
}

// Iterate yields the parsed records file at every commit where it changed,
// oldest first. With from set, iteration starts at that commit. A commit
// that deleted the file yields an empty mapping.
//
// Each call walks the backend again, so the sequence can be restarted.
// Iteration stops after the first error.
func (h *Inspector) Iterate(ctx context.Context, from string) iter.Seq2[Snapshot, error] {
	return func(yield func(Snapshot, error) bool) {
		commits, err := h.backend.Commits(ctx, h.recordsPath)
		if err != nil {
			yield(Snapshot{}, fmt.Errorf("iterate history: %w", err))
			return
		}
		slices.Reverse(commits)

		if from != "" {
			i := slices.IndexFunc(commits, func(c backend.Commit) bool { return c.Hash == from })
			if i < 0 {
				yield(Snapshot{}, fmt.Errorf("iterate history: commit %s did not touch %s", from, h.recordsPath))
				return
			}
			commits = commits[i:]
		}

		var prev []byte
		first := true
		for _, c := range commits {
			if err := ctx.Err(); err != nil {
				yield(Snapshot{}, err)
				return
			}
			data, _, err := h.blob(ctx, c.Hash)
			if err != nil {
				yield(Snapshot{}, fmt.Errorf("iterate history at %s: %w", c.Hash, err))
				return
			}
			if !first && bytes.Equal(data, prev) {
				continue
			}
			first, prev = false, data

			records, err := bib.Parse(data)
			if err != nil {
				yield(Snapshot{}, fmt.Errorf("iterate history at %s: %w", c.Hash, err))
				return
			}
			if !yield(Snapshot{Commit: c, Records: records}, nil) {
				return
			}
		}
	}
}
