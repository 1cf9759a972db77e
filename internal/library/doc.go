// Package library maintains the ledger of books already filed in the
// library: one entry per catalog identifier, mapping to the final file path.
//
// The ledger is authoritative for duplicate detection and the pre-flight
// "already have it" check, and is rebuildable from the filesystem by the
// scanner's re-sync sweep. Entries are JSON documents in a single bbolt
// bucket; every mutation commits in its own transaction.
package library
