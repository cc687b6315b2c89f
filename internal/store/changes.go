package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/roach88/litstore/internal/backend"
	"github.com/roach88/litstore/internal/bib"
)

// Changes lists the IDs whose entries differ between the last commit and
// the working copy of the records file.
type Changes struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Changed []string `json:"changed"`
}

// Empty reports whether no entry changed.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// ChangedIDs maps the uncommitted changes of the records file to entry
// IDs. Backends without diff support fall back to comparing entries of the
// committed and the working version.
func (s *Store) ChangedIDs(ctx context.Context) (Changes, error) {
	committed, err := s.backend.ReadBlob(ctx, s.recordsPath, "")
	if err != nil && !errors.Is(err, backend.ErrNotFound) {
		return Changes{}, fmt.Errorf("changed ids: %w", err)
	}
	working, err := os.ReadFile(s.filePath())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Changes{}, fmt.Errorf("changed ids: %w", err)
	}

	oldSpans, err := bib.Spans(committed)
	if err != nil {
		return Changes{}, fmt.Errorf("changed ids: committed version: %w", err)
	}
	newSpans, err := bib.Spans(working)
	if err != nil {
		return Changes{}, fmt.Errorf("changed ids: working copy: %w", err)
	}

	d, err := s.backend.Diff(ctx, s.recordsPath)
	if errors.Is(err, backend.ErrUnsupported) {
		return compareEntries(committed, oldSpans, working, newSpans), nil
	}
	if err != nil {
		return Changes{}, fmt.Errorf("changed ids: %w", err)
	}
	c := classify(touched(oldSpans, d, true), touched(newSpans, d, false), oldSpans, newSpans)

	// A hunk may reach into the blank separator line of a neighbour.
	oldEntries := entryBytes(committed, oldSpans)
	newEntries := entryBytes(working, newSpans)
	c.Changed = slices.DeleteFunc(c.Changed, func(id string) bool {
		return bytes.Equal(oldEntries[id], newEntries[id])
	})
	return c, nil
}

// touched returns the IDs whose spans overlap the old (or new) side of the
// diff hunks.
func touched(spans []bib.Span, d backend.Diff, old bool) map[string]bool {
	ids := make(map[string]bool)
	for _, h := range d.Hunks {
		start, n := h.NewStart, h.NewLines
		if old {
			start, n = h.OldStart, h.OldLines
		}
		for line := start; line < start+n; line++ {
			for _, sp := range spans {
				if sp.Contains(line) {
					ids[sp.ID] = true
				}
			}
		}
	}
	return ids
}

func classify(oldTouched, newTouched map[string]bool, oldSpans, newSpans []bib.Span) Changes {
	inOld := spanIDs(oldSpans)
	inNew := spanIDs(newSpans)

	var c Changes
	seen := make(map[string]bool)
	for _, set := range []map[string]bool{oldTouched, newTouched} {
		for id := range set {
			if seen[id] {
				continue
			}
			seen[id] = true
			switch {
			case inOld[id] && inNew[id]:
				c.Changed = append(c.Changed, id)
			case inNew[id]:
				c.Added = append(c.Added, id)
			default:
				c.Removed = append(c.Removed, id)
			}
		}
	}
	slices.Sort(c.Added)
	slices.Sort(c.Removed)
	slices.Sort(c.Changed)
	return c
}

// compareEntries diffs two versions entry by entry. Only the entry text up
// to its closing brace is compared, so moved separators do not count.
func compareEntries(oldText []byte, oldSpans []bib.Span, newText []byte, newSpans []bib.Span) Changes {
	oldEntries := entryBytes(oldText, oldSpans)
	newEntries := entryBytes(newText, newSpans)

	var c Changes
	for id, entry := range newEntries {
		prev, ok := oldEntries[id]
		switch {
		case !ok:
			c.Added = append(c.Added, id)
		case !bytes.Equal(prev, entry):
			c.Changed = append(c.Changed, id)
		}
	}
	for id := range oldEntries {
		if _, ok := newEntries[id]; !ok {
			c.Removed = append(c.Removed, id)
		}
	}
	slices.Sort(c.Added)
	slices.Sort(c.Removed)
	slices.Sort(c.Changed)
	return c
}

func entryBytes(text []byte, spans []bib.Span) map[string][]byte {
	m := make(map[string][]byte, len(spans))
	for _, sp := range spans {
		m[sp.ID] = bytes.TrimRight(text[sp.Offset:sp.End()], " \t\r\n")
	}
	return m
}

func spanIDs(spans []bib.Span) map[string]bool {
	m := make(map[string]bool, len(spans))
	for _, sp := range spans {
		m[sp.ID] = true
	}
	return m
}
