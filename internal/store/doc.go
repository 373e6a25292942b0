// Package store provides SQLite-backed storage for the strata record log.
//
// The store implements the log capabilities the projection engine consumes:
//   - Scan: every record, ordered by seq ASC, id ASC COLLATE BINARY
//   - Append: publish a new immutable record, returning its assigned identity
//   - Head: the highest seq, used to invalidate cached projections
//   - BlobExists: existence probe for externally stored binaries
//   - ReputationScore / FirstActivity: election tie-break inputs
//
// # Critical Patterns
//
// Append-only: records are inserted, never updated or deleted. Edits and
// deletions are themselves records ("replaces" pointers and tombstones).
//
// Content-addressed ids: ir.RecordID over canonical JSON, computed inside the
// append transaction once seq and timestamp are known.
//
// Per-author monotonic time: the append timestamp is max(now, last+1) for the
// author, so two records by one author never share a timestamp.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
package store
