package history

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/litstore/internal/backend"
	"github.com/roach88/litstore/internal/bib"
	"github.com/roach88/litstore/internal/record"
)

// FieldChange is one field difference between two versions of a record.
// Old is empty for added fields and New is empty for removed ones.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old,omitempty"`
	New   string `json:"new,omitempty"`
}

// TraceStep is a commit that changed a record.
type TraceStep struct {
	Commit  backend.Commit `json:"commit"`
	Present bool           `json:"present"`
	Changes []FieldChange  `json:"changes,omitempty"`
}

// Trace returns the commits that changed the record with the given ID,
// oldest first, with the field changes each one made. A step with Present
// false marks a commit after which the record no longer exists.
func (h *Inspector) Trace(ctx context.Context, id string) ([]TraceStep, error) {
	var steps []TraceStep
	var prev map[string]string
	for snap, err := range h.Iterate(ctx, "") {
		if err != nil {
			return nil, fmt.Errorf("trace %s: %w", id, err)
		}
		r, ok := snap.Records[id]
		if !ok {
			if prev != nil {
				steps = append(steps, TraceStep{Commit: snap.Commit, Present: false})
				prev = nil
			}
			continue
		}
		cur := flatten(r)
		if changes := diffFields(prev, cur); len(changes) > 0 {
			steps = append(steps, TraceStep{Commit: snap.Commit, Present: true, Changes: changes})
		}
		prev = cur
	}
	return steps, nil
}

// flatten renders a record as a map of field name to file value.
func flatten(r *record.Record) map[string]string {
	m := maps.Clone(r.Fields)
	if m == nil {
		m = map[string]string{}
	}
	m[record.KeyEntryType] = r.EntryType
	m[record.KeyStatus] = string(r.Status)
	if len(r.Origins) > 0 {
		m[record.KeyOrigin] = strings.Join(r.Origins, ";")
	}
	for key, p := range map[string]record.Provenance{
		record.KeyMasterdataProvenance: r.MasterdataProvenance,
		record.KeyDataProvenance:       r.DataProvenance,
	} {
		for field, e := range p {
			m[key+"."+field] = e.Source + ";" + e.Note
		}
	}
	return m
}

func diffFields(prev, cur map[string]string) []FieldChange {
	keys := make(map[string]bool)
	for k := range prev {
		keys[k] = true
	}
	for k := range cur {
		keys[k] = true
	}
	var changes []FieldChange
	for _, k := range orderedKeys(keys) {
		if prev[k] != cur[k] {
			changes = append(changes, FieldChange{Field: k, Old: prev[k], New: cur[k]})
		}
	}
	return changes
}

// orderedKeys sorts keys the way the records file does, with the entry
// type first and provenance details after their header key.
func orderedKeys(keys map[string]bool) []string {
	plain := make(map[string]string)
	for k := range keys {
		base, _, _ := strings.Cut(k, ".")
		plain[base] = ""
	}
	var out []string
	if keys[record.KeyEntryType] {
		out = append(out, record.KeyEntryType)
	}
	delete(plain, record.KeyEntryType)
	for _, base := range bib.FieldOrder(plain) {
		if keys[base] {
			out = append(out, base)
		}
		var sub []string
		for k := range keys {
			if strings.HasPrefix(k, base+".") {
				sub = append(sub, k)
			}
		}
		slices.Sort(sub)
		out = append(out, sub...)
	}
	return out
}
