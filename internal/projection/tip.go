package projection

import (
	"strings"

	"github.com/roach88/strata/internal/ir"
)

// unranked is the rank of a status missing from the table, or of a record
// with no status at all. It sits below every listed status.
const unranked = -1

// RankTable maps status values to their rank; higher wins.
type RankTable map[string]int

// NewRankTable builds a table from statuses listed lowest first.
func NewRankTable(statuses []string) RankTable {
	t := make(RankTable, len(statuses))
	for i, s := range statuses {
		t[s] = i
	}
	return t
}

// Rank returns the rank of status.
func (t RankTable) Rank(status string) int {
	if r, ok := t[status]; ok {
		return r
	}
	return unranked
}

// Top returns the highest status in the table, "" when empty.
func (t RankTable) Top() string {
	top, best := "", unranked
	for s, r := range t {
		if r > best {
			top, best = s, r
		}
	}
	return top
}

// Selector chooses the authoritative record of a group.
//
// The order is total:
//  1. status rank, when the domain has a rank table (higher wins)
//  2. timestamp (later wins)
//  3. record id, lexicographically greater wins
//
// Rank comes first so a terminal status such as SOLD is never displaced by a
// later or backdated lower-status edit.
type Selector struct {
	StatusField string
	Ranks       RankTable
}

// NewSelector creates a selector. An empty field or table means recency-only.
func NewSelector(statusField string, statuses []string) Selector {
	if statusField == "" || len(statuses) == 0 {
		return Selector{}
	}
	return Selector{StatusField: statusField, Ranks: NewRankTable(statuses)}
}

// Ranked reports whether the selector applies status ranks.
func (s Selector) Ranked() bool {
	return len(s.Ranks) > 0
}

// RankOf returns the status rank of rec (0 for recency-only selectors).
func (s Selector) RankOf(rec ir.Record) int {
	if !s.Ranked() {
		return 0
	}
	return s.Ranks.Rank(rec.Fields().Str(s.StatusField))
}

// Compare returns a positive number when a outranks b, negative when b
// outranks a, and 0 only when a and b are the same id.
func (s Selector) Compare(a, b ir.Record) int {
	if ra, rb := s.RankOf(a), s.RankOf(b); ra != rb {
		if ra > rb {
			return 1
		}
		return -1
	}
	if a.Timestamp != b.Timestamp {
		if a.Timestamp > b.Timestamp {
			return 1
		}
		return -1
	}
	return strings.Compare(a.ID, b.ID)
}

// Select returns the best record among candidates.
// ok is false only when candidates is empty.
func (s Selector) Select(candidates []ir.Record) (best ir.Record, ok bool) {
	for i, rec := range candidates {
		if i == 0 || s.Compare(rec, best) > 0 {
			best = rec
		}
	}
	return best, len(candidates) > 0
}

// SelectLive picks the tip of a group and applies tombstone semantics.
//
// If the best record is tombstoned the whole entity is dead, unless
// resurrect is set: then the best non-tombstoned member becomes the tip.
func (s Selector) SelectLive(members []ir.Record, ix *Index, resurrect bool) (ir.Record, bool) {
	best, ok := s.Select(members)
	if !ok {
		return ir.Record{}, false
	}
	if !ix.IsTombstoned(best.ID) {
		return best, true
	}
	if !resurrect {
		return ir.Record{}, false
	}

	alive := make([]ir.Record, 0, len(members))
	for _, m := range members {
		if !ix.IsTombstoned(m.ID) {
			alive = append(alive, m)
		}
	}
	return s.Select(alive)
}
