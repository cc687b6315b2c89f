// Package bib converts between the textual record file and in-memory records.
//
// The file is a sequence of entries, each opened by an "@" at column 0:
//
//	@article{Smith2020,
//	  colrev_origin                 = {a.bib/X;},
//	  colrev_status                 = {md_imported},
//	  author                        = {Smith, J.},
//	  year                          = {2020},
//	}
//
// Rendering is deterministic: entries are sorted by ID, header keys come
// first in a fixed order, then well-known fields in display order, then the
// remaining fields alphabetically. Re-rendering an unchanged record
// reproduces the bytes it was parsed from, which keeps git diffs minimal.
//
// Besides the full Parse, the package offers a header-only scan that reads
// the fixed leading lines of each entry (ID, origins, status) without
// parsing field bodies, and Spans, which locates the byte range of every
// entry for in-place patch writes.
package bib
