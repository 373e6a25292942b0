package projection

import (
	"context"
	"log/slog"

	"github.com/roach88/strata/internal/ir"
)

// Snapshot is a point-in-time scan of the log together with its leaf
// indices. It is immutable after construction and may be shared by
// concurrent projections.
type Snapshot struct {
	Records  []ir.Record
	Index    *Index
	Resolver *Resolver
}

// NewSnapshot indexes records. The slice must not be modified afterwards.
func NewSnapshot(records []ir.Record) *Snapshot {
	ix := BuildIndex(records)
	return &Snapshot{
		Records:  records,
		Index:    ix,
		Resolver: NewResolver(ix),
	}
}

// Options carries the external collaborators of one projection.
type Options struct {
	// Blobs memoizes blob probes. nil disables the dangling-blob rule.
	Blobs *BlobMemo

	// Parents answers cascade lookups. nil disables the cascade rule.
	Parents ParentSet
}

// Projection is the derived view of one domain over one snapshot.
type Projection struct {
	Policy Policy

	// Entities are the visible, deduplicated entities in first-appearance
	// order. Listings are built from these.
	Entities []Entity

	// Excluded maps the key of every hidden entity to the rule that hid it.
	Excluded map[string]Exclusion

	// Malformed maps ids on cyclic chains to their error.
	Malformed map[string]error

	// visible holds entities before dedupe; lookups by id use it so a
	// duplicate submission is still reachable directly.
	visible  []Entity
	byRecord map[string]int

	// blobHidden holds member ids of entities hidden only by a dangling
	// blob. They are not deleted, so they still count as alive parents.
	blobHidden map[string]struct{}
}

// Project runs group, select, visibility and dedupe over snap for pol.
//
// Project is pure apart from the blob probes it issues through opts.Blobs.
// Errors are limited to probe failures, signature failures and context
// cancellation; malformed chains are reported in Projection.Malformed.
func Project(ctx context.Context, snap *Snapshot, pol Policy, opts Options) (*Projection, error) {
	grouping := GroupRecords(snap.Records, pol, snap.Resolver)

	p := &Projection{
		Policy:     pol,
		Excluded:   make(map[string]Exclusion),
		Malformed:  grouping.Malformed,
		byRecord:   make(map[string]int),
		blobHidden: make(map[string]struct{}),
	}

	vis := Visibility{
		Index:   snap.Index,
		Policy:  pol,
		Parents: opts.Parents,
		Blobs:   opts.Blobs,
	}

	for _, g := range grouping.Groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tip, ok := pol.Selector.SelectLive(g.Members, snap.Index, pol.Spec.ResurrectSibling)
		if !ok {
			p.Excluded[g.Key] = SelfDeleted
			continue
		}

		e := Entity{Domain: pol.Spec.Name, Key: g.Key, Tip: tip, Members: g.Members}
		ex, err := vis.Check(ctx, e)
		if err != nil {
			return nil, err
		}
		if ex != Visible {
			p.Excluded[g.Key] = ex
			if ex == DanglingBlob {
				for _, m := range g.Members {
					p.blobHidden[m.ID] = struct{}{}
				}
			}
			continue
		}

		idx := len(p.visible)
		p.visible = append(p.visible, e)
		for _, m := range g.Members {
			p.byRecord[m.ID] = idx
		}
	}

	entities, err := Dedupe(p.visible, pol.Signature)
	if err != nil {
		return nil, err
	}
	p.Entities = entities

	slog.Debug("projection complete",
		"policy", pol.Spec.Name,
		"records", len(snap.Records),
		"groups", len(grouping.Groups),
		"visible", len(p.visible),
		"deduped", len(p.visible)-len(p.Entities),
		"excluded", len(p.Excluded),
		"malformed", len(p.Malformed),
	)

	return p, nil
}

// Find returns the visible entity containing id, which may be any member
// record or the key. A malformed chain through id is returned as an error.
func (p *Projection) Find(id string) (Entity, bool, error) {
	if err, bad := p.Malformed[id]; bad {
		return Entity{}, false, err
	}
	if i, ok := p.byRecord[id]; ok {
		return p.visible[i], true, nil
	}
	for _, e := range p.visible {
		if e.Key == id {
			return e, true, nil
		}
	}
	return Entity{}, false, nil
}

// Alive reports whether id belongs to an entity that was not deleted,
// directly or by cascade. An entity hidden by a dangling blob is alive.
// A Projection is the ParentSet of its child domains.
func (p *Projection) Alive(id string) bool {
	if _, ok := p.byRecord[id]; ok {
		return true
	}
	_, ok := p.blobHidden[id]
	return ok
}

// List applies a filter to the deduplicated entities.
func (p *Projection) List(f Filter) []Entity {
	return Assemble(p.Entities, f, p.Policy.Spec)
}
