package store

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/litstore/internal/record"
)

// SetIDs reassigns IDs with the store's allocator, saves the full file and
// returns the new mapping. The caller's records are not modified.
//
// If records is nil, the records file is loaded. With selectedIDs, only
// those records are considered; selecting a record at md_processed or
// later fails with a PropagatedIDChangeError before anything is changed.
// Without a selection, records at md_processed or later are skipped.
func (s *Store) SetIDs(ctx context.Context, records map[string]*record.Record, selectedIDs []string) (map[string]*record.Record, error) {
	if err := s.guard("SetIDs"); err != nil {
		return nil, err
	}
	if records == nil {
		var err error
		if records, err = s.Load(ctx, false); err != nil {
			return nil, fmt.Errorf("set ids: %w", err)
		}
	}

	if selectedIDs != nil {
		var frozen []string
		for _, id := range selectedIDs {
			r, ok := records[id]
			if !ok {
				return nil, fmt.Errorf("set ids: record %s not found", id)
			}
			if r.Propagated() {
				frozen = append(frozen, id)
			}
		}
		if len(frozen) > 0 {
			slices.Sort(frozen)
			return nil, &record.PropagatedIDChangeError{IDs: frozen}
		}
	}

	out := make(map[string]*record.Record, len(records))
	for id, r := range records {
		out[id] = r.Clone()
	}
	taken := slices.Collect(maps.Keys(out))

	for _, oldID := range record.SortedIDs(records) {
		if selectedIDs != nil && !slices.Contains(selectedIDs, oldID) {
			continue
		}
		r := out[oldID]
		if r.Propagated() {
			continue
		}
		others := slices.DeleteFunc(slices.Clone(taken), func(id string) bool { return id == oldID })
		newID, err := s.allocator.Generate(ctx, r, others)
		if err != nil {
			return nil, fmt.Errorf("set ids: %w", err)
		}
		if newID == oldID {
			continue
		}
		r.ID = newID
		delete(out, oldID)
		out[newID] = r
		taken = append(others, newID)
		s.logger.Info("id changed",
			"operation_id", s.operationID,
			"old_id", oldID,
			"new_id", newID)
	}

	if err := s.Save(ctx, out, false); err != nil {
		return nil, fmt.Errorf("set ids: %w", err)
	}
	return out, nil
}
