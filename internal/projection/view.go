package projection

import (
	"slices"
	"strings"

	"github.com/roach88/strata/internal/ir"
)

// Entity is the derived view of one logical entity: its key, selected tip
// and member records. It is recomputed per query and never persisted.
type Entity struct {
	Domain  string      `json:"domain"`
	Key     string      `json:"key"`
	Tip     ir.Record   `json:"tip"`
	Members []ir.Record `json:"-"`
}

// Fields returns the tip's content fields.
func (e Entity) Fields() ir.Object {
	return e.Tip.Fields()
}

// Owner returns the author of the entity's first record in scan order.
func (e Entity) Owner() string {
	if len(e.Members) == 0 {
		return e.Tip.Author
	}
	return e.Members[0].Author
}

// Contains reports whether id is one of the entity's records.
func (e Entity) Contains(id string) bool {
	for _, m := range e.Members {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Order selects the final ordering of a listing.
type Order string

const (
	// OrderRecent sorts by tip timestamp, newest first (default).
	OrderRecent Order = "recent"

	// OrderOldest sorts by tip timestamp, oldest first.
	OrderOldest Order = "oldest"

	// OrderTop sorts by the policy's top field, highest first, then recency.
	OrderTop Order = "top"
)

// Filter narrows a listing. Zero values mean "no restriction".
type Filter struct {
	Author   string   `json:"author,omitempty"`   // "mine": entity owner
	Category string   `json:"category,omitempty"` // Matches policy category field
	Statuses []string `json:"statuses,omitempty"` // Matches policy status field
	Since    int64    `json:"since,omitempty"`    // "recent": tip timestamp >= Since
	Order    Order    `json:"order,omitempty"`
	Limit    int      `json:"limit,omitempty"`
}

// Assemble applies f to entities and orders the result.
// The input slice is not modified.
func Assemble(entities []Entity, f Filter, spec ir.PolicySpec) []Entity {
	out := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if f.match(e, spec) {
			out = append(out, e)
		}
	}

	switch f.Order {
	case OrderOldest:
		slices.SortStableFunc(out, func(a, b Entity) int {
			return -compareRecent(a, b)
		})
	case OrderTop:
		slices.SortStableFunc(out, func(a, b Entity) int {
			ta, _ := a.Fields().Int64(spec.TopField)
			tb, _ := b.Fields().Int64(spec.TopField)
			if ta != tb {
				if ta > tb {
					return -1
				}
				return 1
			}
			return compareRecent(a, b)
		})
	default:
		slices.SortStableFunc(out, compareRecent)
	}

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// compareRecent orders newest tip first, then by key for determinism.
func compareRecent(a, b Entity) int {
	if a.Tip.Timestamp != b.Tip.Timestamp {
		if a.Tip.Timestamp > b.Tip.Timestamp {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Key, b.Key)
}

func (f Filter) match(e Entity, spec ir.PolicySpec) bool {
	if f.Author != "" && e.Owner() != f.Author {
		return false
	}
	if f.Since > 0 && e.Tip.Timestamp < f.Since {
		return false
	}
	fields := e.Fields()
	if f.Category != "" {
		if spec.CategoryField == "" {
			return false
		}
		if v, _ := fields.Text(spec.CategoryField); v != f.Category {
			return false
		}
	}
	if len(f.Statuses) > 0 {
		if spec.StatusField == "" {
			return false
		}
		if !slices.Contains(f.Statuses, fields.Str(spec.StatusField)) {
			return false
		}
	}
	return true
}
