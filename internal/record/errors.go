package record

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes integrity errors.
type ErrorCode string

const (
	// CodeMalformedEntry indicates an entry that cannot be parsed (e.g. no status).
	CodeMalformedEntry ErrorCode = "MALFORMED_ENTRY"

	// CodeDuplicateID indicates two entries sharing an ID.
	CodeDuplicateID ErrorCode = "DUPLICATE_ID"

	// CodeMissingOrigin indicates a record without any origin.
	CodeMissingOrigin ErrorCode = "MISSING_ORIGIN"

	// CodeBrokenOrigin indicates an origin pointing at a nonexistent source entry.
	CodeBrokenOrigin ErrorCode = "BROKEN_ORIGIN"

	// CodeNonUniqueOrigin indicates an origin claimed by more than one record.
	CodeNonUniqueOrigin ErrorCode = "NON_UNIQUE_ORIGIN"

	// CodeOriginRemoved indicates a previously committed origin that disappeared.
	CodeOriginRemoved ErrorCode = "ORIGIN_REMOVED"

	// CodeInvalidStatusValue indicates a status outside the state set.
	CodeInvalidStatusValue ErrorCode = "INVALID_STATUS_VALUE"

	// CodeIllegalTransition indicates a status change missing from the transition table.
	CodeIllegalTransition ErrorCode = "ILLEGAL_TRANSITION"

	// CodeNotNotified indicates a store operation without a prior intent declaration.
	CodeNotNotified ErrorCode = "NOT_NOTIFIED"

	// CodeBackendUnavailable indicates the backend lock could not be acquired in time.
	CodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"

	// CodeAppendOnlyViolation indicates a source file that was rewritten instead of appended to.
	CodeAppendOnlyViolation ErrorCode = "APPEND_ONLY_VIOLATION"

	// CodeMissingFile indicates a record past PDF import without a file link.
	CodeMissingFile ErrorCode = "MISSING_FILE"

	// CodeBrokenFileLink indicates a file link that does not resolve to a file.
	CodeBrokenFileLink ErrorCode = "BROKEN_FILE_LINK"

	// CodeInvalidScreeningCriteria indicates screening decisions that do not
	// match the declared criteria or the record's status.
	CodeInvalidScreeningCriteria ErrorCode = "INVALID_SCREENING_CRITERIA"
)

// IntegrityError reports a violation of a store invariant.
//
// IntegrityError includes structured fields for diagnostics. Use errors.Is
// with the Err* sentinels below to test for a category.
type IntegrityError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ID identifies the affected record, if any.
	ID string

	// Origin identifies the affected origin, if any.
	Origin string

	// Details contains additional context.
	Details map[string]string
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	switch {
	case e.ID != "" && e.Origin != "":
		fmt.Fprintf(&b, " (id=%s, origin=%s)", e.ID, e.Origin)
	case e.ID != "":
		fmt.Fprintf(&b, " (id=%s)", e.ID)
	case e.Origin != "":
		fmt.Fprintf(&b, " (origin=%s)", e.Origin)
	}
	return b.String()
}

// Is matches sentinels by code. A sentinel is an IntegrityError with only a
// Code set.
func (e *IntegrityError) Is(target error) bool {
	t, ok := target.(*IntegrityError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.ID == "" && t.Origin == ""
}

// Sentinels for errors.Is.
var (
	ErrMalformedEntry      = &IntegrityError{Code: CodeMalformedEntry}
	ErrDuplicateID         = &IntegrityError{Code: CodeDuplicateID}
	ErrMissingOrigin       = &IntegrityError{Code: CodeMissingOrigin}
	ErrBrokenOrigin        = &IntegrityError{Code: CodeBrokenOrigin}
	ErrNonUniqueOrigin     = &IntegrityError{Code: CodeNonUniqueOrigin}
	ErrOriginRemoved       = &IntegrityError{Code: CodeOriginRemoved}
	ErrInvalidStatusValue  = &IntegrityError{Code: CodeInvalidStatusValue}
	ErrIllegalTransition   = &IntegrityError{Code: CodeIllegalTransition}
	ErrNotNotified         = &IntegrityError{Code: CodeNotNotified}
	ErrBackendUnavailable  = &IntegrityError{Code: CodeBackendUnavailable}
	ErrAppendOnlyViolation = &IntegrityError{Code: CodeAppendOnlyViolation}

	ErrMissingFile              = &IntegrityError{Code: CodeMissingFile}
	ErrBrokenFileLink           = &IntegrityError{Code: CodeBrokenFileLink}
	ErrInvalidScreeningCriteria = &IntegrityError{Code: CodeInvalidScreeningCriteria}
)

// CodeOf returns the code of the first IntegrityError in err's chain, or ""
// if there is none.
func CodeOf(err error) ErrorCode {
	var ie *IntegrityError
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// NewMalformedEntryError creates an IntegrityError for an unparseable entry.
func NewMalformedEntryError(id, message string) *IntegrityError {
	return &IntegrityError{Code: CodeMalformedEntry, Message: message, ID: id}
}

// NewDuplicateIDError creates an IntegrityError for an ID used by several entries.
func NewDuplicateIDError(id string) *IntegrityError {
	return &IntegrityError{Code: CodeDuplicateID, Message: "duplicate record ID", ID: id}
}

// NewMissingOriginError creates an IntegrityError for a record without origins.
func NewMissingOriginError(id string) *IntegrityError {
	return &IntegrityError{Code: CodeMissingOrigin, Message: "record has no origin", ID: id}
}

// NewBrokenOriginError creates an IntegrityError for an origin without source entry.
func NewBrokenOriginError(id, origin string) *IntegrityError {
	return &IntegrityError{
		Code:    CodeBrokenOrigin,
		Message: "origin does not point at an entry of a known source file",
		ID:      id,
		Origin:  origin,
	}
}

// NewNonUniqueOriginError creates an IntegrityError for an origin claimed twice.
func NewNonUniqueOriginError(origin string, ids ...string) *IntegrityError {
	return &IntegrityError{
		Code:    CodeNonUniqueOrigin,
		Message: fmt.Sprintf("origin claimed by more than one record (%s)", strings.Join(ids, ", ")),
		Origin:  origin,
		Details: map[string]string{"ids": strings.Join(ids, ",")},
	}
}

// NewOriginRemovedError creates an IntegrityError for a disappeared origin.
func NewOriginRemovedError(origin, priorID string) *IntegrityError {
	return &IntegrityError{
		Code:    CodeOriginRemoved,
		Message: "origin present in the prior version is missing",
		ID:      priorID,
		Origin:  origin,
	}
}

// NewInvalidStatusValueError creates an IntegrityError for an unknown status.
func NewInvalidStatusValueError(id string, status Status) *IntegrityError {
	return &IntegrityError{
		Code:    CodeInvalidStatusValue,
		Message: fmt.Sprintf("status %q is not a known state", status),
		ID:      id,
		Details: map[string]string{"status": string(status)},
	}
}

// NewIllegalTransitionError creates an IntegrityError for a transition outside the table.
func NewIllegalTransitionError(id, origin string, from, to Status) *IntegrityError {
	return &IntegrityError{
		Code:    CodeIllegalTransition,
		Message: fmt.Sprintf("invalid state transition: %s to %s", from, to),
		ID:      id,
		Origin:  origin,
		Details: map[string]string{"from": string(from), "to": string(to)},
	}
}

// NewAmbiguousTransitionError creates an IntegrityError for a merged record
// whose origins had different prior statuses.
func NewAmbiguousTransitionError(id string, priorStatuses []Status) *IntegrityError {
	parts := make([]string, len(priorStatuses))
	for i, s := range priorStatuses {
		parts[i] = string(s)
	}
	return &IntegrityError{
		Code:    CodeIllegalTransition,
		Message: fmt.Sprintf("origins disagree on prior status (%s)", strings.Join(parts, ", ")),
		ID:      id,
		Details: map[string]string{"prior_statuses": strings.Join(parts, ",")},
	}
}

// NewNotNotifiedError creates an IntegrityError for an undeclared store operation.
func NewNotNotifiedError(call string) *IntegrityError {
	return &IntegrityError{
		Code: CodeNotNotified,
		Message: fmt.Sprintf("%s called without declaring the next operation "+
			"(call Notify before reading or writing the store)", call),
	}
}

// NewBackendUnavailableError creates an IntegrityError for lock contention.
func NewBackendUnavailableError(lockPath string, attempts int) *IntegrityError {
	return &IntegrityError{
		Code:    CodeBackendUnavailable,
		Message: fmt.Sprintf("lock %s still held after %d attempts", lockPath, attempts),
		Details: map[string]string{"lock": lockPath, "attempts": fmt.Sprintf("%d", attempts)},
	}
}

// NewAppendOnlyViolationError creates an IntegrityError for a rewritten source file.
func NewAppendOnlyViolationError(path, commit string) *IntegrityError {
	where := "uncommitted file"
	if commit != "" {
		where = "commit " + commit
	}
	return &IntegrityError{
		Code:    CodeAppendOnlyViolation,
		Message: fmt.Sprintf("%s was changed (%s)", path, where),
		Details: map[string]string{"path": path, "commit": commit},
	}
}

// NewMissingFileError creates an IntegrityError for a record whose status
// requires a file link it does not have.
func NewMissingFileError(id string, status Status) *IntegrityError {
	return &IntegrityError{
		Code:    CodeMissingFile,
		Message: fmt.Sprintf("status %s requires a file link", status),
		ID:      id,
		Details: map[string]string{"status": string(status)},
	}
}

// NewBrokenFileLinkError creates an IntegrityError for a link to a missing file.
func NewBrokenFileLinkError(id, path string) *IntegrityError {
	return &IntegrityError{
		Code:    CodeBrokenFileLink,
		Message: fmt.Sprintf("linked file %s does not exist", path),
		ID:      id,
		Details: map[string]string{"path": path},
	}
}

// NewScreeningCriteriaError creates an IntegrityError for inconsistent
// screening decisions.
func NewScreeningCriteriaError(id, value, message string) *IntegrityError {
	return &IntegrityError{
		Code:    CodeInvalidScreeningCriteria,
		Message: message,
		ID:      id,
		Details: map[string]string{"screening_criteria": value},
	}
}

// ErrPropagatedIDChange is the sentinel for PropagatedIDChangeError.
var ErrPropagatedIDChange = errors.New("propagated ID change")

// PropagatedIDChangeError reports an attempt to change an ID that may
// already be cited outside the store.
//
// Unlike IntegrityError it is informative: Notifications lists files that
// may still reference the old ID so a human can fix them.
type PropagatedIDChangeError struct {
	// IDs are the affected (old) record IDs.
	IDs []string

	// Notifications are human-readable remediation hints.
	Notifications []string
}

// Error implements the error interface.
func (e *PropagatedIDChangeError) Error() string {
	msg := fmt.Sprintf("propagated ID change: %s", strings.Join(e.IDs, ", "))
	if len(e.Notifications) > 0 {
		msg += "\n" + strings.Join(e.Notifications, "\n")
	}
	return msg
}

// Is matches ErrPropagatedIDChange.
func (e *PropagatedIDChangeError) Is(target error) bool {
	return target == ErrPropagatedIDChange
}

// IsPropagatedIDChange returns true if err is (or wraps) a PropagatedIDChangeError.
func IsPropagatedIDChange(err error) bool {
	return errors.Is(err, ErrPropagatedIDChange)
}
