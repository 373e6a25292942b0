// Package projection turns the raw record log into the current view of each
// logical entity.
//
// ARCHITECTURE:
//
// Staged, pure pipeline over one snapshot of the log:
//  1. Index: tombstone set + supersession map, one linear pass (index.go)
//  2. Group: cluster records by chain root or explicit key (group.go)
//  3. Select: pick one tip per group by status rank, recency, id (tip.go)
//  4. Visibility: drop self-deleted, cascade-deleted and dangling-blob
//     entities (visibility.go)
//  5. Dedupe: collapse independent duplicate submissions (dedup.go)
//  6. Assemble: filter and order for the caller (view.go)
//
// Every stage is a function over immutable inputs; all indices are local to
// one Project call, so projections may run concurrently without locking.
//
// Feature domains differ only in their Policy: grouping key, status rank
// table, dedupe signature and cascade parent. The engine is shared.
//
// CRITICAL PATTERNS:
//
// Deterministic tip order: two readers of the same snapshot always select the
// same tip. Concurrent editors that both supersede one record produce sibling
// tips; the total order (rank, timestamp, id) resolves them without locks.
//
// Bounded chain walks: every pointer walk keeps a visited set and fails with
// a MALFORMED_CHAIN error instead of looping on a cyclic "replaces" graph.
package projection
