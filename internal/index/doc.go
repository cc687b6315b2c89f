// Package index provides the curated record index consulted by the ID
// allocator.
//
// The index maps a content fingerprint (normalized author, title and year)
// to the ID curated projects assigned to the same work. Projects adopt that
// ID instead of synthesizing one, so citation keys agree across reviews.
//
// The index is a SQLite database (WAL mode, single writer). Open applies
// pragmas and the schema; it is safe to call repeatedly on the same file.
package index
