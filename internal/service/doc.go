// Package service exposes the application operations over the projection
// engine: listings, lookups, publishing, edits, deletions, elections and the
// proposal expiry sweep.
//
// Every read projects a point-in-time snapshot of the log. Snapshots are
// cached by the sequence number of the newest record they contain and the
// cache is dropped on every append, so a mutation is visible to the next
// read of the same logical operation.
//
// Each view computation is tagged with a UUIDv7 correlation token that
// appears on every log line it emits.
package service
