// Package check validates a snapshot of the records file against the
// previously committed one.
//
// # Check Order
//
// Checks run in a fixed order and later checks assume earlier ones passed:
//
//  1. identifiers are unique
//  2. every record has an origin and every origin points at a source entry
//  3. no origin is claimed by two records
//  4. no origin of the prior snapshot has disappeared
//  5. every status is a known state
//  6. every status change is a legal transition
//  7. records at or after md_processed keep their identifier
//  8. records past PDF import link a file, and every link resolves
//  9. screening decisions match the declared criteria and the status
//
// The first check that finds violations ends the run, and all of its
// violations are returned.
//
// # Snapshots
//
// Both snapshots are header-only record lists as returned by
// bib.ScanHeaders or history.Inspector.PriorHeaders. They may contain
// duplicates and invalid statuses; reporting those is the point.
package check
