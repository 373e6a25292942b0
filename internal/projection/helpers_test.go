package projection

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/ir"
)

var marketSpec = ir.PolicySpec{
	Name:          "market",
	Types:         []string{"market"},
	Grouping:      ir.GroupByChain,
	StatusField:   "status",
	StatusRank:    []string{"FOR_SALE", "OPEN", "RESERVED", "CLOSED", "SOLD"},
	CategoryField: "category",
	BlobField:     "image",
}

var postsSpec = ir.PolicySpec{
	Name:      "posts",
	Types:     []string{"post"},
	Grouping:  ir.GroupByChain,
	BlobField: "image",
	TopField:  "votes",
}

var repliesSpec = ir.PolicySpec{
	Name:         "replies",
	Types:        []string{"reply"},
	Grouping:     ir.GroupByChain,
	ParentField:  "root",
	ParentDomain: "posts",
}

var pixelsSpec = ir.PolicySpec{
	Name:      "pixels",
	Types:     []string{"pixel"},
	Grouping:  ir.GroupByKey,
	KeyFields: []string{"x", "y"},
}

var bookmarksSpec = ir.PolicySpec{
	Name:     "bookmarks",
	Types:    []string{"bookmark"},
	Grouping: ir.GroupByChain,
	Dedupe:   &ir.DedupeSpec{Fields: []string{"url"}, Normalize: ir.NormalizeURL},
}

func mustPolicy(t *testing.T, spec ir.PolicySpec) Policy {
	t.Helper()
	p, err := NewPolicy(spec)
	require.NoError(t, err)
	return p
}

func mustProject(t *testing.T, records []ir.Record, spec ir.PolicySpec, opts Options) *Projection {
	t.Helper()
	p, err := Project(context.Background(), NewSnapshot(records), mustPolicy(t, spec), opts)
	require.NoError(t, err)
	return p
}

func tipIDs(entities []Entity) []string {
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.Tip.ID
	}
	return ids
}

// fakeBlobs is a BlobProber backed by a set, counting calls per ref.
type fakeBlobs struct {
	mu      sync.Mutex
	present map[string]bool
	calls   map[string]int
	fail    bool
}

func newFakeBlobs(present ...string) *fakeBlobs {
	f := &fakeBlobs{present: make(map[string]bool), calls: make(map[string]int)}
	for _, ref := range present {
		f.present[ref] = true
	}
	return f
}

func (f *fakeBlobs) BlobExists(_ context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[ref]++
	if f.fail {
		return false, errors.New("blob store unavailable")
	}
	return f.present[ref], nil
}

type parentSet map[string]bool

func (p parentSet) Alive(id string) bool { return p[id] }
