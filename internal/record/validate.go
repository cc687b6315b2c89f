package record

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"
)

// IsReservedKey reports whether key is exempt from the lower-case rule.
func IsReservedKey(key string) bool {
	return key == KeyID || key == KeyEntryType || key == KeyCurationID
}

// ValidateKey checks a field key: no whitespace and lower-case unless reserved.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty field key")
	}
	if strings.IndexFunc(key, unicode.IsSpace) >= 0 {
		return fmt.Errorf("field key %q contains whitespace", key)
	}
	if strings.ContainsAny(key, `={},"`) {
		return fmt.Errorf("field key %q contains a delimiter", key)
	}
	if !IsReservedKey(key) && strings.ToLower(key) != key {
		return fmt.Errorf("field key %q is not lower-case", key)
	}
	return nil
}

// ValidateFields checks every field key and value of r.
// Returns a MALFORMED_ENTRY IntegrityError on the first violation.
func ValidateFields(r *Record) error {
	for _, key := range slices.Sorted(maps.Keys(r.Fields)) {
		if err := ValidateKey(key); err != nil {
			return NewMalformedEntryError(r.ID, err.Error())
		}
		if r.Fields[key] == "" {
			return NewMalformedEntryError(r.ID, fmt.Sprintf("field %q has an empty value", key))
		}
	}
	return nil
}

// ValidateImport checks a candidate record produced by a collaborator
// before it enters the store.
//
// Rejects malformed keys or values, records without exactly one origin and
// records that already carry store-maintained keys.
func ValidateImport(r *Record) error {
	if r.ID == "" {
		return NewMalformedEntryError("", "candidate record has no ID")
	}
	if err := ValidateFields(r); err != nil {
		return err
	}
	if len(r.Origins) != 1 {
		return NewMalformedEntryError(r.ID, fmt.Sprintf("candidate record must have exactly one origin, has %d", len(r.Origins)))
	}
	for _, key := range ProvenanceKeys {
		if _, ok := r.Fields[key]; ok {
			return NewMalformedEntryError(r.ID, fmt.Sprintf("key %s should not be in imported record", key))
		}
	}
	if len(r.MasterdataProvenance) > 0 || len(r.DataProvenance) > 0 {
		return NewMalformedEntryError(r.ID, "imported record must not carry provenance")
	}
	return nil
}

// modelledKeys are rendered from dedicated Record fields and must not
// appear in Fields.
var modelledKeys = []string{
	KeyID,
	KeyEntryType,
	KeyOrigin,
	KeyStatus,
	KeyMasterdataProvenance,
	KeyDataProvenance,
}

// ValidateForStore checks that r renders to an entry that parses back into
// an equal record. Save runs it on every record before writing.
//
// Returns a MALFORMED_ENTRY IntegrityError naming the record on the first
// violation.
func ValidateForStore(r *Record) error {
	if r.ID == "" || strings.ContainsAny(r.ID, " \t\r\n{},") {
		return NewMalformedEntryError(r.ID, fmt.Sprintf("invalid record ID %q", r.ID))
	}
	if r.EntryType == "" || strings.ContainsAny(r.EntryType, " \t\r\n{},@") {
		return NewMalformedEntryError(r.ID, fmt.Sprintf("invalid entry type %q", r.EntryType))
	}
	switch strings.ToLower(r.EntryType) {
	case "comment", "preamble", "string":
		return NewMalformedEntryError(r.ID, fmt.Sprintf("entry type %q does not hold records", r.EntryType))
	}
	if r.Status == "" {
		return NewMalformedEntryError(r.ID, "record has no status")
	}
	if err := checkValue(string(r.Status)); err != nil || strings.ContainsAny(string(r.Status), "\n;") {
		return NewMalformedEntryError(r.ID, fmt.Sprintf("invalid status %q", r.Status))
	}

	seen := make(map[string]bool, len(r.Origins))
	for _, o := range r.Origins {
		if o == "" || o != strings.TrimSpace(o) || strings.ContainsAny(o, ";{}\n") {
			return NewMalformedEntryError(r.ID, fmt.Sprintf("invalid origin %q", o))
		}
		if seen[o] {
			return NewMalformedEntryError(r.ID, fmt.Sprintf("origin %s listed twice", o))
		}
		seen[o] = true
	}

	for name, p := range map[string]Provenance{
		KeyMasterdataProvenance: r.MasterdataProvenance,
		KeyDataProvenance:       r.DataProvenance,
	} {
		for _, field := range slices.Sorted(maps.Keys(p)) {
			e := p[field]
			switch {
			case field == "" || strings.IndexFunc(field, unicode.IsSpace) >= 0 || strings.ContainsAny(field, ":{}"):
				return NewMalformedEntryError(r.ID, fmt.Sprintf("%s: invalid field name %q", name, field))
			case strings.ContainsAny(e.Source, ";{}\n"):
				return NewMalformedEntryError(r.ID, fmt.Sprintf("%s: invalid source %q for %s", name, e.Source, field))
			case strings.ContainsAny(e.Note, "{}\n"):
				return NewMalformedEntryError(r.ID, fmt.Sprintf("%s: invalid note %q for %s", name, e.Note, field))
			}
		}
	}

	if err := ValidateFields(r); err != nil {
		return err
	}
	for _, key := range slices.Sorted(maps.Keys(r.Fields)) {
		if slices.Contains(modelledKeys, key) {
			return NewMalformedEntryError(r.ID, fmt.Sprintf("key %s must not be stored as a plain field", key))
		}
		if err := checkValue(r.Fields[key]); err != nil {
			return NewMalformedEntryError(r.ID, fmt.Sprintf("field %s: %v", key, err))
		}
	}
	return nil
}

// checkValue rejects values that would end their braced field early or
// start a new entry.
func checkValue(v string) error {
	depth := 0
	for _, c := range v {
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return fmt.Errorf("unbalanced closing brace")
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("unbalanced opening brace")
	}
	if strings.Contains(v, "\n@") {
		return fmt.Errorf("line starts with @")
	}
	return nil
}
