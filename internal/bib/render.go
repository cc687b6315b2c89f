package bib

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/litstore/internal/record"
)

const (
	// keyWidth is the column width keys are padded to.
	keyWidth = 30

	// indent prefixes every field line.
	indent = "  "
)

// continuation aligns the lines of multi-valued fields with the first value.
var continuation = "\n" + strings.Repeat(" ", len(indent)+keyWidth+len(" = {"))

// headerKeys are rendered first, in this order. The header scan relies on it.
var headerKeys = []string{
	record.KeyOrigin,
	record.KeyStatus,
	record.KeyMasterdataProvenance,
	record.KeyDataProvenance,
	record.KeyPDFID,
	record.KeyScreeningCriteria,
	record.KeyFile,
	record.KeyPrescreenExclusion,
}

// displayOrder lists well-known fields rendered after the header keys.
var displayOrder = []string{
	record.FieldDOI,
	record.FieldDBLPKey,
	record.FieldURL,
	record.FieldAuthor,
	record.FieldBooktitle,
	record.FieldJournal,
	record.FieldTitle,
	record.FieldYear,
	record.FieldVolume,
	record.FieldNumber,
	record.FieldPages,
	record.FieldEditor,
	record.FieldPublisher,
	record.FieldSeries,
	record.FieldAbstract,
}

var fieldRank = func() map[string]int {
	m := make(map[string]int, len(headerKeys)+len(displayOrder))
	for i, k := range headerKeys {
		m[k] = i
	}
	for i, k := range displayOrder {
		m[k] = len(headerKeys) + i
	}
	return m
}()

// FieldOrder returns the keys of fields in render order.
func FieldOrder(fields map[string]string) []string {
	keys := slices.Collect(maps.Keys(fields))
	sort.Slice(keys, func(i, j int) bool {
		ri, iok := fieldRank[keys[i]]
		rj, jok := fieldRank[keys[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok:
			return true
		case jok:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

// Render returns the file content for records, sorted by ID and separated by
// one blank line. An empty mapping renders as an empty file.
func Render(records map[string]*record.Record) []byte {
	var buf bytes.Buffer
	for i, id := range record.SortedIDs(records) {
		if i > 0 {
			buf.WriteByte('\n')
		}
		writeEntry(&buf, records[id])
	}
	return buf.Bytes()
}

// RenderEntry returns the text of a single entry, ending with "}\n".
func RenderEntry(r *record.Record) []byte {
	var buf bytes.Buffer
	writeEntry(&buf, r)
	return buf.Bytes()
}

func writeEntry(buf *bytes.Buffer, r *record.Record) {
	fmt.Fprintf(buf, "@%s{%s,\n", r.EntryType, r.ID)

	if len(r.Origins) > 0 {
		writeField(buf, record.KeyOrigin, renderOrigins(r.Origins))
	}
	if r.Status != "" {
		writeField(buf, record.KeyStatus, string(r.Status))
	}
	if len(r.MasterdataProvenance) > 0 {
		writeField(buf, record.KeyMasterdataProvenance, renderProvenance(r.MasterdataProvenance))
	}
	if len(r.DataProvenance) > 0 {
		writeField(buf, record.KeyDataProvenance, renderProvenance(r.DataProvenance))
	}
	for _, key := range FieldOrder(r.Fields) {
		writeField(buf, key, r.Fields[key])
	}
	buf.WriteString("}\n")
}

func writeField(buf *bytes.Buffer, key, value string) {
	fmt.Fprintf(buf, "%s%-*s = {%s},\n", indent, keyWidth, key, value)
}

func renderOrigins(origins []string) string {
	return strings.Join(origins, ";"+continuation) + ";"
}

// renderProvenance writes one "field:source;note;" line per field, sorted
// by field name.
func renderProvenance(p record.Provenance) string {
	lines := make([]string, 0, len(p))
	for _, field := range slices.Sorted(maps.Keys(p)) {
		e := p[field]
		lines = append(lines, field+":"+e.Source+";"+e.Note+";")
	}
	return strings.Join(lines, continuation)
}
