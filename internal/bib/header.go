package bib

import (
	"fmt"

	"github.com/roach88/litstore/internal/record"
)

// ExtractHeaders reads the ID, origins, status and the other header keys
// of every entry, skipping field bodies.
//
// The returned records carry no provenance and no regular fields. Errors
// follow Parse, except that field keys after the header are not validated.
func ExtractHeaders(text []byte) (map[string]*record.Record, error) {
	headers, err := scan(text, true)
	if err != nil {
		return nil, err
	}
	records := make(map[string]*record.Record, len(headers))
	owners := make(map[string]string)
	for _, r := range headers {
		if _, ok := records[r.ID]; ok {
			return nil, record.NewDuplicateIDError(r.ID)
		}
		for _, o := range r.Origins {
			if other, ok := owners[o]; ok {
				return nil, record.NewNonUniqueOriginError(o, other, r.ID)
			}
			owners[o] = r.ID
		}
		records[r.ID] = r
	}
	return records, nil
}

// ScanHeaders is the lenient form of ExtractHeaders used by the consistency
// checker: it returns entries in file order and keeps duplicates, missing
// statuses and shared origins for the checker to report.
func ScanHeaders(text []byte) ([]*record.Record, error) {
	return scan(text, false)
}

func scan(text []byte, strict bool) ([]*record.Record, error) {
	var headers []*record.Record
	for _, seg := range segments(text) {
		r, err := parseEntry(seg, true)
		if err != nil {
			return nil, err
		}
		if r == nil {
			continue
		}
		if strict && r.Status == "" {
			return nil, record.NewMalformedEntryError(r.ID,
				fmt.Sprintf("entry at line %d has no %s field", seg.line, record.KeyStatus))
		}
		headers = append(headers, r)
	}
	return headers, nil
}
