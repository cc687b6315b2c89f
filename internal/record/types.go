package record

import (
	"maps"
	"slices"
	"strings"
)

// Reserved keys that are exempt from the lower-case field key rule.
const (
	KeyID         = "ID"
	KeyEntryType  = "ENTRYTYPE"
	KeyCurationID = "curation_ID"
)

// Header keys. Their order in the store file is fixed (see package bib).
const (
	KeyOrigin               = "colrev_origin"
	KeyStatus               = "colrev_status"
	KeyMasterdataProvenance = "colrev_masterdata_provenance"
	KeyDataProvenance       = "colrev_data_provenance"
	KeyPDFID                = "colrev_pdf_id"
	KeyScreeningCriteria    = "screening_criteria"
	KeyFile                 = "file"
	KeyPrescreenExclusion   = "prescreen_exclusion"
)

// Well-known bibliographic field keys.
const (
	FieldDOI       = "doi"
	FieldDBLPKey   = "dblp_key"
	FieldURL       = "url"
	FieldAuthor    = "author"
	FieldBooktitle = "booktitle"
	FieldJournal   = "journal"
	FieldTitle     = "title"
	FieldYear      = "year"
	FieldVolume    = "volume"
	FieldNumber    = "number"
	FieldPages     = "pages"
	FieldEditor    = "editor"
	FieldPublisher = "publisher"
	FieldSeries    = "series"
	FieldAbstract  = "abstract"
)

// IdentifyingFields are the masterdata fields whose provenance is tracked in
// MasterdataProvenance. Every other field is tracked in DataProvenance.
var IdentifyingFields = []string{
	FieldAuthor,
	FieldBooktitle,
	FieldJournal,
	FieldNumber,
	FieldPages,
	FieldTitle,
	FieldVolume,
	FieldYear,
}

// ProvenanceKeys are the keys maintained by the store itself. Imported
// candidate records must not carry them.
var ProvenanceKeys = []string{
	KeyOrigin,
	KeyStatus,
	KeyMasterdataProvenance,
	KeyDataProvenance,
	KeyPDFID,
}

// ProvenanceEntry annotates a single field with its source and a free-text note.
type ProvenanceEntry struct {
	Source string `json:"source" yaml:"source"`
	Note   string `json:"note,omitempty" yaml:"note,omitempty"`
}

// Provenance maps field names to their provenance annotation.
type Provenance map[string]ProvenanceEntry

// Record is a single bibliographic entry of the store.
//
// Fields holds every field that is not modelled explicitly. Header values
// other than origin, status and provenance (file, screening_criteria, ...)
// live in Fields too.
type Record struct {
	ID                   string            `json:"ID" yaml:"id"`
	EntryType            string            `json:"ENTRYTYPE" yaml:"entry_type"`
	Status               Status            `json:"colrev_status" yaml:"status"`
	Origins              []string          `json:"colrev_origin" yaml:"origins"`
	MasterdataProvenance Provenance        `json:"colrev_masterdata_provenance,omitempty" yaml:"masterdata_provenance,omitempty"`
	DataProvenance       Provenance        `json:"colrev_data_provenance,omitempty" yaml:"data_provenance,omitempty"`
	Fields               map[string]string `json:"fields" yaml:"fields"`
}

// New creates a record with an initialized field map.
func New(id, entryType string, status Status, origins ...string) *Record {
	return &Record{
		ID:        id,
		EntryType: entryType,
		Status:    status,
		Origins:   origins,
		Fields:    map[string]string{},
	}
}

// Get returns the value of a field and whether it is present.
func (r *Record) Get(key string) (string, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

// Set assigns a field value. An empty value removes the field, since absence
// is the only representation of "unknown".
func (r *Record) Set(key, value string) {
	if r.Fields == nil {
		r.Fields = map[string]string{}
	}
	if value == "" {
		delete(r.Fields, key)
		return
	}
	r.Fields[key] = value
}

// HasOrigin reports whether the record claims the given origin.
func (r *Record) HasOrigin(origin string) bool {
	return slices.Contains(r.Origins, origin)
}

// AddOrigin appends an origin unless the record already claims it.
// Origins are append-only; there is no counterpart for silent removal.
func (r *Record) AddOrigin(origin string) {
	if !r.HasOrigin(origin) {
		r.Origins = append(r.Origins, origin)
	}
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Origins = slices.Clone(r.Origins)
	c.Fields = maps.Clone(r.Fields)
	if c.Fields == nil {
		c.Fields = map[string]string{}
	}
	c.MasterdataProvenance = maps.Clone(r.MasterdataProvenance)
	c.DataProvenance = maps.Clone(r.DataProvenance)
	return &c
}

// Propagated reports whether the record's ID may already be cited by
// artifacts outside the store (status at or after md_processed).
func (r *Record) Propagated() bool {
	return IsPropagated(r.Status)
}

// SourceFile returns the source-file part of an origin string.
func SourceFile(origin string) string {
	file, _, _ := strings.Cut(origin, "/")
	return file
}

// SourceRecordID returns the record-ID part of an origin string.
func SourceRecordID(origin string) string {
	_, id, _ := strings.Cut(origin, "/")
	return id
}

// Origin composes an origin string from a source file and record ID.
func Origin(sourceFile, sourceRecordID string) string {
	return sourceFile + "/" + sourceRecordID
}

// SortedIDs returns the keys of a record mapping in ascending order.
func SortedIDs(records map[string]*Record) []string {
	return slices.Sorted(maps.Keys(records))
}
