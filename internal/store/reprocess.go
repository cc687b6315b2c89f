package store

import (
	"context"
	"fmt"
)

// ReprocessAll is the Reprocess argument that discards every record.
const ReprocessAll = "all"

// Reprocess removes the record with the given ID from the records file so
// it can be imported again. With ReprocessAll the records file itself is
// removed from the working tree and the index.
func (s *Store) Reprocess(ctx context.Context, id string) error {
	if err := s.guard("Reprocess"); err != nil {
		return err
	}
	if id == ReprocessAll {
		if err := s.backend.Remove(ctx, s.recordsPath); err != nil {
			return fmt.Errorf("reprocess all: %w", err)
		}
		s.logger.Warn("all records removed for reprocessing",
			"operation_id", s.operationID,
			"path", s.recordsPath)
		return nil
	}

	records, err := s.Load(ctx, false)
	if err != nil {
		return fmt.Errorf("reprocess %s: %w", id, err)
	}
	r, ok := records[id]
	if !ok {
		return fmt.Errorf("reprocess %s: record not found", id)
	}
	delete(records, id)
	if err := s.Save(ctx, records, false); err != nil {
		return fmt.Errorf("reprocess %s: %w", id, err)
	}
	s.logger.Info("record removed for reprocessing",
		"operation_id", s.operationID,
		"id", id,
		"origins", r.Origins)
	return nil
}
