package store

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/litstore/internal/record"
)

// Import adds a candidate record produced by a search source to records.
//
// The candidate must carry exactly one origin, valid field keys and no
// store-maintained keys. It is moved from md_retrieved to md_imported,
// every field gets an initial provenance entry pointing at the origin,
// and it receives a collision-free ID. The record is added to records and
// returned; saving is left to the caller.
func (s *Store) Import(ctx context.Context, records map[string]*record.Record, candidate *record.Record) (*record.Record, error) {
	if err := s.guard("Import"); err != nil {
		return nil, err
	}
	if err := record.ValidateImport(candidate); err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	origin := candidate.Origins[0]
	for _, id := range record.SortedIDs(records) {
		if records[id].HasOrigin(origin) {
			return nil, fmt.Errorf("import: %w", record.NewNonUniqueOriginError(origin, id, candidate.ID))
		}
	}

	r := candidate.Clone()
	if r.Status == "" {
		r.Status = record.InitialStatus
	}
	if !record.ValidTransition(r.Status, record.MDImported) {
		return nil, fmt.Errorf("import: %w", record.NewIllegalTransitionError(r.ID, origin, r.Status, record.MDImported))
	}
	r.Status = record.MDImported
	setInitialProvenance(r, origin)

	id, err := s.allocator.Generate(ctx, r, slices.Collect(maps.Keys(records)))
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	r.ID = id
	records[id] = r

	s.logger.Debug("record imported",
		"operation_id", s.operationID,
		"id", id,
		"origin", origin)
	return r, nil
}

// setInitialProvenance attributes every field to origin: identifying
// fields in the masterdata provenance, all others in the data provenance.
func setInitialProvenance(r *record.Record, origin string) {
	r.MasterdataProvenance = make(record.Provenance)
	r.DataProvenance = make(record.Provenance)
	for key := range r.Fields {
		if isHeaderField(key) || key == record.KeyCurationID {
			continue
		}
		if slices.Contains(record.IdentifyingFields, key) {
			r.MasterdataProvenance[key] = record.ProvenanceEntry{Source: origin}
		} else {
			r.DataProvenance[key] = record.ProvenanceEntry{Source: origin}
		}
	}
	if len(r.DataProvenance) == 0 {
		r.DataProvenance = nil
	}
	if len(r.MasterdataProvenance) == 0 {
		r.MasterdataProvenance = nil
	}
}

func isHeaderField(key string) bool {
	switch key {
	case record.KeyScreeningCriteria, record.KeyFile, record.KeyPrescreenExclusion, record.KeyPDFID:
		return true
	}
	return false
}
