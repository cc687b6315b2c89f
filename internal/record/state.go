package record

import "slices"

// Status is a lifecycle state of a record.
type Status string

// Lifecycle states, in processing order. A later state implies that the
// earlier ones are semantically done.
const (
	MDRetrieved               Status = "md_retrieved"
	MDImported                Status = "md_imported"
	MDNeedsManualPreparation  Status = "md_needs_manual_preparation"
	MDPrepared                Status = "md_prepared"
	MDProcessed               Status = "md_processed"
	RevPrescreenExcluded      Status = "rev_prescreen_excluded"
	RevPrescreenIncluded      Status = "rev_prescreen_included"
	PDFNeedsManualRetrieval   Status = "pdf_needs_manual_retrieval"
	PDFImported               Status = "pdf_imported"
	PDFNotAvailable           Status = "pdf_not_available"
	PDFNeedsManualPreparation Status = "pdf_needs_manual_preparation"
	PDFPrepared               Status = "pdf_prepared"
	RevExcluded               Status = "rev_excluded"
	RevIncluded               Status = "rev_included"
	RevSynthesized            Status = "rev_synthesized"
)

// InitialStatus is the status of a freshly retrieved record.
const InitialStatus = MDRetrieved

// States lists every status in processing order.
var States = []Status{
	MDRetrieved,
	MDImported,
	MDNeedsManualPreparation,
	MDPrepared,
	MDProcessed,
	RevPrescreenExcluded,
	RevPrescreenIncluded,
	PDFNeedsManualRetrieval,
	PDFImported,
	PDFNotAvailable,
	PDFNeedsManualPreparation,
	PDFPrepared,
	RevExcluded,
	RevIncluded,
	RevSynthesized,
}

// Operation names the process step that performs a transition.
type Operation string

// Operations of the review process.
const (
	OpLoad       Operation = "load"
	OpPrep       Operation = "prep"
	OpPrepMan    Operation = "prep_man"
	OpDedupe     Operation = "dedupe"
	OpPrescreen  Operation = "prescreen"
	OpPDFGet     Operation = "pdf_get"
	OpPDFGetMan  Operation = "pdf_get_man"
	OpPDFPrep    Operation = "pdf_prep"
	OpPDFPrepMan Operation = "pdf_prep_man"
	OpScreen     Operation = "screen"
	OpData       Operation = "data"
)

// Operations that read or rewrite the store without a status transition.
const (
	OpFormat  Operation = "format"
	OpCheck   Operation = "check"
	OpExplore Operation = "explore"
)

type transition struct {
	from Status
	to   Status
}

// transitions is the fixed table of legal (from, to) pairs.
var transitions = map[transition]Operation{
	{MDRetrieved, MDImported}: OpLoad,

	{MDImported, MDNeedsManualPreparation}: OpPrep,
	{MDImported, MDPrepared}:               OpPrep,
	{MDNeedsManualPreparation, MDPrepared}: OpPrepMan,

	{MDPrepared, MDProcessed}: OpDedupe,

	{MDProcessed, RevPrescreenExcluded}: OpPrescreen,
	{MDProcessed, RevPrescreenIncluded}: OpPrescreen,

	{RevPrescreenIncluded, PDFNeedsManualRetrieval}: OpPDFGet,
	{RevPrescreenIncluded, PDFImported}:             OpPDFGet,
	{RevPrescreenIncluded, PDFNotAvailable}:         OpPDFGet,
	{PDFNeedsManualRetrieval, PDFImported}:          OpPDFGetMan,
	{PDFNeedsManualRetrieval, PDFNotAvailable}:      OpPDFGetMan,

	{PDFImported, PDFNeedsManualPreparation}: OpPDFPrep,
	{PDFImported, PDFPrepared}:               OpPDFPrep,
	{PDFNeedsManualPreparation, PDFPrepared}: OpPDFPrepMan,

	{PDFPrepared, RevExcluded}: OpScreen,
	{PDFPrepared, RevIncluded}: OpScreen,

	{RevIncluded, RevSynthesized}: OpData,
}

// Valid reports whether s is a member of the state set.
func (s Status) Valid() bool {
	return s.index() >= 0
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	if !s.Valid() {
		return false
	}
	for t := range transitions {
		if t.from == s {
			return false
		}
	}
	return true
}

// String returns the status as written to the store file.
func (s Status) String() string {
	return string(s)
}

func (s Status) index() int {
	return slices.Index(States, s)
}

// ValidTransition reports whether from → to is in the transition table.
// Unknown pairs, including unchanged statuses, are invalid.
func ValidTransition(from, to Status) bool {
	_, ok := transitions[transition{from, to}]
	return ok
}

// TransitionOperation returns the operation that performs from → to.
func TransitionOperation(from, to Status) (Operation, bool) {
	op, ok := transitions[transition{from, to}]
	return op, ok
}

// NextStates returns the statuses directly reachable from s, in processing order.
func NextStates(s Status) []Status {
	var next []Status
	for _, candidate := range States {
		if ValidTransition(s, candidate) {
			next = append(next, candidate)
		}
	}
	return next
}

// PostStates returns s and every state after it, in processing order.
// An unknown status yields nil.
func PostStates(s Status) []Status {
	i := s.index()
	if i < 0 {
		return nil
	}
	return slices.Clone(States[i:])
}

// IsPropagated reports whether s is at or after md_processed, the point from
// which a record's ID may be cited elsewhere and must not change.
func IsPropagated(s Status) bool {
	return slices.Contains(PostStates(MDProcessed), s)
}
