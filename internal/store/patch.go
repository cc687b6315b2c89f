package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"sort"

	"github.com/roach88/litstore/internal/bib"
	"github.com/roach88/litstore/internal/record"
)

// patch replaces one entry's byte range.
type patch struct {
	span        bib.Span
	replacement []byte
}

// patchFile replaces the entries of records in the file at path and
// returns how many entries were rewritten.
//
// Entries are patched from the end of the file towards the start, so the
// offsets of pending patches stay valid. An entry whose rendering equals
// its current bytes is skipped.
func patchFile(path string, records map[string]*record.Record) (int, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if errors.Is(err, fs.ErrNotExist) {
		if len(records) == 0 {
			return 0, nil
		}
		return 0, fmt.Errorf("records not in file: %v", record.SortedIDs(records))
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	content, err := readAll(f)
	if err != nil {
		return 0, err
	}
	patches, err := planPatches(content, records)
	if err != nil {
		return 0, err
	}

	for _, p := range patches {
		content, err = applyPatch(f, content, p)
		if err != nil {
			return 0, fmt.Errorf("patch %s: %w", p.span.ID, err)
		}
	}
	if len(patches) > 0 {
		if err := f.Sync(); err != nil {
			return 0, err
		}
	}
	return len(patches), nil
}

func readAll(f *os.File) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// planPatches computes the replacements for records, ordered by
// descending offset. It fails without writing if a record has no entry.
func planPatches(content []byte, records map[string]*record.Record) ([]patch, error) {
	spans, err := bib.Spans(content)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]bib.Span, len(spans))
	for _, sp := range spans {
		if _, dup := byID[sp.ID]; dup {
			return nil, record.NewDuplicateIDError(sp.ID)
		}
		byID[sp.ID] = sp
	}

	var missing []string
	var patches []patch
	for _, id := range record.SortedIDs(records) {
		r := records[id]
		sp, ok := byID[r.ID]
		if !ok {
			missing = append(missing, r.ID)
			continue
		}
		old := content[sp.Offset:sp.End()]
		replacement := replacementFor(old, bib.RenderEntry(r))
		if bytes.Equal(old, replacement) {
			continue
		}
		patches = append(patches, patch{span: sp, replacement: replacement})
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("records not in file: %v", missing)
	}

	sort.Slice(patches, func(i, j int) bool {
		return patches[i].span.Offset > patches[j].span.Offset
	})
	return patches, nil
}

// replacementFor keeps the blank lines that separated the old entry from
// the next one.
func replacementFor(old, entry []byte) []byte {
	const space = " \t\r\n"
	trailing := old[len(bytes.TrimRight(old, space)):]
	out := bytes.TrimRight(entry, space)
	return append(bytes.Clone(out), trailing...)
}

// applyPatch writes p to f and returns the updated content.
func applyPatch(f *os.File, content []byte, p patch) ([]byte, error) {
	off := p.span.Offset
	if len(p.replacement) == p.span.Length {
		if _, err := f.WriteAt(p.replacement, int64(off)); err != nil {
			return nil, err
		}
		copy(content[off:], p.replacement)
		return content, nil
	}

	tail := content[p.span.End():]
	updated := make([]byte, 0, off+len(p.replacement)+len(tail))
	updated = append(updated, content[:off]...)
	updated = append(updated, p.replacement...)
	updated = append(updated, tail...)

	if _, err := f.WriteAt(updated[off:], int64(off)); err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(len(updated))); err != nil {
		return nil, err
	}
	return updated, nil
}
