// Package record provides the bibliographic record types shared by every
// other litstore package.
//
// This package contains types and pure functions only. All other internal
// packages import record; record imports nothing internal. This keeps the
// record model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Every record carries exactly one Status drawn from the state machine
//   - Origins ("<source-file>/<source-record-id>") are unique across a store
//   - Field keys are lower-case without whitespace (reserved keys excepted)
//   - Absence of a field, never an empty value, signals "unknown"
package record
