package history

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/litstore/internal/backend"
	"github.com/roach88/litstore/internal/record"
)

// EnsureAppendOnly checks that every committed version of the file at path
// extends the previous one, and that current (if not nil) extends the last
// committed version. Carriage returns are ignored.
func (h *Inspector) EnsureAppendOnly(ctx context.Context, path string, current []byte) error {
	commits, err := h.backend.Commits(ctx, path)
	if err != nil {
		return fmt.Errorf("ensure append-only %s: %w", path, err)
	}
	slices.Reverse(commits)

	var prior []byte
	for _, c := range commits {
		data, err := h.backend.ReadBlob(ctx, path, c.Hash)
		if errors.Is(err, backend.ErrNotFound) {
			return record.NewAppendOnlyViolationError(path, c.Hash)
		}
		if err != nil {
			return fmt.Errorf("ensure append-only %s: %w", path, err)
		}
		data = stripCR(data)
		if !bytes.HasPrefix(data, prior) {
			return record.NewAppendOnlyViolationError(path, c.Hash)
		}
		prior = data
	}
	if current != nil && !bytes.HasPrefix(stripCR(current), prior) {
		return record.NewAppendOnlyViolationError(path, "")
	}
	return nil
}

func stripCR(b []byte) []byte {
	return bytes.ReplaceAll(b, []byte("\r"), nil)
}
