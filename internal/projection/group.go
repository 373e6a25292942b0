package projection

import (
	"log/slog"

	"github.com/roach88/strata/internal/ir"
)

// Group is the set of records forming one logical entity.
type Group struct {
	// Key is the root id (chain grouping) or the explicit domain key.
	Key string

	// Members are the group's records in scan order.
	Members []ir.Record
}

// Grouping is the grouper's output.
type Grouping struct {
	// Groups in order of first appearance in the scan.
	Groups []Group

	// Malformed maps record ids that sit on a cyclic chain to their error.
	// Those records belong to no group.
	Malformed map[string]error
}

// GroupRecords clusters the content records owned by pol.
//
// Chain grouping keys each record by its chain root; explicit-key grouping
// uses pol.Key regardless of chain topology. Records of other domains,
// tombstones and opaque payloads are ignored.
func GroupRecords(records []ir.Record, pol Policy, res *Resolver) Grouping {
	out := Grouping{Malformed: make(map[string]error)}
	pos := make(map[string]int)

	for _, rec := range records {
		c, ok := rec.Content()
		if !ok || !pol.Spec.Owns(c.Type) {
			continue
		}

		var key string
		if pol.Key != nil {
			k, ok := pol.Key(rec)
			if !ok {
				slog.Debug("record lacks grouping key",
					"policy", pol.Spec.Name,
					"id", rec.ID,
				)
				continue
			}
			key = k
		} else {
			root, err := res.Root(rec.ID)
			if err != nil {
				slog.Warn("skipping record on malformed chain",
					"policy", pol.Spec.Name,
					"id", rec.ID,
					"error", err,
				)
				out.Malformed[rec.ID] = err
				continue
			}
			key = root
		}

		i, seen := pos[key]
		if !seen {
			i = len(out.Groups)
			pos[key] = i
			out.Groups = append(out.Groups, Group{Key: key})
		}
		out.Groups[i].Members = append(out.Groups[i].Members, rec)
	}

	return out
}
