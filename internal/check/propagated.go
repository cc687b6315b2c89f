package check

import (
	"context"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/litstore/internal/bib"
	"github.com/roach88/litstore/internal/record"
)

// textExtensions are the files whose content is searched for stale IDs.
var textExtensions = []string{".txt", ".csv", ".md", ".bib", ".yaml", ".yml", ".tex"}

func (c *Checker) propagatedIDs(ctx context.Context, prior, current []*record.Record) ([]error, error) {
	now := make(map[string]string)
	for _, r := range current {
		for _, o := range r.Origins {
			now[o] = r.ID
		}
	}

	renamed := make(map[string]string)
	for _, p := range prior {
		if !p.Propagated() {
			continue
		}
		for _, o := range p.Origins {
			if id, ok := now[o]; ok && id != p.ID {
				renamed[p.ID] = id
			}
		}
	}
	if len(renamed) == 0 {
		return nil, nil
	}

	oldIDs := slices.Sorted(maps.Keys(renamed))
	var notes []string
	for _, old := range oldIDs {
		refs, err := c.references(ctx, old, renamed[old])
		if err != nil {
			return nil, err
		}
		notes = append(notes, refs...)
		notes = append(notes, fmt.Sprintf("ID of processed record changed from %s to %s", old, renamed[old]))
	}
	return []error{&record.PropagatedIDChangeError{IDs: oldIDs, Notifications: notes}}, nil
}

// references lists the paths under the project root that mention oldID in
// their name or content. The records file and .git are skipped.
func (c *Checker) references(ctx context.Context, oldID, newID string) ([]string, error) {
	if c.opts.ProjectRoot == "" {
		return nil, nil
	}
	records := filepath.Join(c.opts.ProjectRoot, filepath.FromSlash(c.opts.RecordsPath))

	var notes []string
	err := filepath.WalkDir(c.opts.ProjectRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if path == c.opts.ProjectRoot || path == records {
			return nil
		}
		rel, err := filepath.Rel(c.opts.ProjectRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if strings.Contains(d.Name(), oldID) {
			notes = append(notes, fmt.Sprintf("old ID %s (now %s) found in path: %s", oldID, newID, rel))
		}
		if d.IsDir() || !slices.Contains(textExtensions, filepath.Ext(path)) {
			return nil
		}
		found, err := mentions(path, oldID)
		if err != nil {
			return err
		}
		if found {
			notes = append(notes, fmt.Sprintf("old ID %s (now %s) found in file: %s", oldID, newID, rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan for %s: %w", oldID, err)
	}
	return notes, nil
}

// mentions reports whether the file at path references id. In .bib files
// only entry keys count.
func mentions(path, id string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	if filepath.Ext(path) == ".bib" {
		return slices.Contains(bib.EntryIDs(data), id), nil
	}
	return strings.Contains(string(data), id), nil
}
