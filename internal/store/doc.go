// Package store owns the record file of a review project.
//
// The store loads and saves the complete mapping of ID to record, patches
// single entries in place, assigns IDs, imports candidate records and
// removes records on reprocess. Every write stages the file through the
// versioned-blob backend; committing is left to the caller.
//
// # Critical Patterns
//
// Intent declaration
//   - Callers must call Notify with the operation they are about to run
//     before Load, Save, SetIDs, Reprocess or Import
//   - Omitting it is a programming error reported as NOT_NOTIFIED
//
// Diff-minimal writes
//   - Save with partial=true rewrites only the byte spans of the given
//     records; unchanged entries are left untouched
//   - Same-length replacements are overwritten in place, others shift the
//     remainder of the file and truncate
//
// Frozen identifiers
//   - IDs of records at md_processed or later are never reassigned
//   - SetIDs fails with a PropagatedIDChangeError before mutating anything
//
// # Known Limitations
//
// Patch writes are not crash-atomic: a process killed mid-write can leave a
// truncated file. The last committed version in the backend is the
// recovery point.
//
// A Store is not safe for concurrent use.
package store
