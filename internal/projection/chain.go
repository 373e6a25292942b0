package projection

// Resolver walks edit chains over one Index.
//
// Walks are iterative with a visited set; a cyclic replaces graph yields a
// MALFORMED_CHAIN error instead of an endless loop.
type Resolver struct {
	ix *Index
}

// NewResolver creates a resolver over ix.
func NewResolver(ix *Index) *Resolver {
	return &Resolver{ix: ix}
}

// Index returns the index the resolver walks.
func (r *Resolver) Index() *Index {
	return r.ix
}

// ResolveTip follows the supersession map forward from id until no further
// mapping exists. ResolveTip(ResolveTip(x)) == ResolveTip(x).
func (r *Resolver) ResolveTip(id string) (string, error) {
	visited := make(map[string]struct{})
	cur := id
	for {
		next, ok := r.ix.Supersedes[cur]
		if !ok {
			return cur, nil
		}
		visited[cur] = struct{}{}
		if _, seen := visited[next]; seen || len(visited) > r.ix.Len() {
			return "", NewMalformedChainError(id, next, len(visited))
		}
		cur = next
	}
}

// IsDeleted reports whether the chain containing id ends in a tombstoned tip.
func (r *Resolver) IsDeleted(id string) (bool, error) {
	tip, err := r.ResolveTip(id)
	if err != nil {
		return false, err
	}
	return r.ix.IsTombstoned(tip), nil
}

// Root follows replaces pointers backward from id to the first record of the
// chain. A pointer to an id outside the snapshot makes that id the root, so
// siblings of a record missing from a bounded window still group together.
func (r *Resolver) Root(id string) (string, error) {
	visited := make(map[string]struct{})
	cur := id
	for {
		rec, ok := r.ix.Record(cur)
		if !ok {
			return cur, nil
		}
		c, ok := rec.Content()
		if !ok || c.Replaces == "" {
			return cur, nil
		}
		visited[cur] = struct{}{}
		if _, seen := visited[c.Replaces]; seen || len(visited) > r.ix.Len() {
			return "", NewMalformedChainError(id, c.Replaces, len(visited))
		}
		cur = c.Replaces
	}
}

// Chain returns the forward chain from id's root to its tip, oldest first.
// Only the supersession map's winners are followed, so fan-out siblings that
// lost the map entry do not appear.
func (r *Resolver) Chain(id string) ([]string, error) {
	root, err := r.Root(id)
	if err != nil {
		return nil, err
	}
	if _, err := r.ResolveTip(root); err != nil {
		return nil, err
	}

	chain := []string{root}
	cur := root
	for {
		next, ok := r.ix.Supersedes[cur]
		if !ok {
			return chain, nil
		}
		chain = append(chain, next)
		cur = next
	}
}
