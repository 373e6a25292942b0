package projection

import (
	"github.com/roach88/strata/internal/ir"
)

// Index holds the two leaf indices of a snapshot.
//
// Tombstoned is the set of deleted target ids. Supersedes maps an old id to
// the id that replaced it; when several records replace the same id (fan-out,
// a data error or a concurrent edit) the last one observed in scan order wins
// the map entry. All siblings still reach the grouper through their own
// replaces pointer.
type Index struct {
	Tombstoned map[string]struct{}
	Supersedes map[string]string

	byID map[string]ir.Record
}

// BuildIndex scans records once. O(n) time and space.
//
// Opaque records (unknown kinds, tombstones without target, content without
// type) are skipped. Duplicate tombstones are absorbed by the set.
func BuildIndex(records []ir.Record) *Index {
	ix := &Index{
		Tombstoned: make(map[string]struct{}),
		Supersedes: make(map[string]string),
		byID:       make(map[string]ir.Record, len(records)),
	}

	for _, rec := range records {
		ix.byID[rec.ID] = rec

		switch p := rec.Payload.(type) {
		case ir.Tombstone:
			ix.Tombstoned[p.Target] = struct{}{}
		case ir.Content:
			if p.Replaces != "" {
				ix.Supersedes[p.Replaces] = rec.ID
			}
		}
	}
	return ix
}

// IsTombstoned reports whether id itself was targeted by a tombstone.
func (ix *Index) IsTombstoned(id string) bool {
	_, ok := ix.Tombstoned[id]
	return ok
}

// Record returns the record with the given id.
func (ix *Index) Record(id string) (ir.Record, bool) {
	rec, ok := ix.byID[id]
	return rec, ok
}

// Len returns the number of distinct record ids indexed.
func (ix *Index) Len() int {
	return len(ix.byID)
}
