package check

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/litstore/internal/bib"
	"github.com/roach88/litstore/internal/record"
)

// maxSourceReaders bounds the number of source files read at once.
const maxSourceReaders = 8

func (c *Checker) origins(ctx context.Context, current []*record.Record) ([]error, error) {
	var errs []error
	for _, r := range current {
		if len(r.Origins) == 0 {
			errs = append(errs, record.NewMissingOriginError(r.ID))
		}
	}
	if len(errs) > 0 || c.opts.SourceDir == "" {
		return errs, nil
	}

	known, err := c.sourceEntries(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range current {
		for _, o := range r.Origins {
			if !known[o] {
				errs = append(errs, record.NewBrokenOriginError(r.ID, o))
			}
		}
	}
	return errs, nil
}

// sourceEntries returns the set of origins the source directory provides,
// one per entry of every .bib file in it.
func (c *Checker) sourceEntries(ctx context.Context) (map[string]bool, error) {
	dir := filepath.Join(c.opts.ProjectRoot, c.opts.SourceDir)
	files, err := filepath.Glob(filepath.Join(dir, "*.bib"))
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	known := make(map[string]bool)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxSourceReaders)
	for _, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			if err != nil {
				return err
			}
			name := filepath.Base(path)
			ids := bib.EntryIDs(data)

			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				known[record.Origin(name, id)] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	c.logger.Debug("source entries read", "files", len(files), "entries", len(known))
	return known, nil
}
