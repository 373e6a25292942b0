package projection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/ir"
	"github.com/roach88/strata/internal/testutil"
)

func TestProject_KeyGrouping(t *testing.T) {
	log := testutil.NewLog().
		Raw("P1", "alice", 1, ir.KindContent, ir.NewContent("pixel", "", ir.Object{"x": ir.Int(1), "y": ir.Int(2), "color": ir.String("red")})).
		Raw("P2", "bob", 2, ir.KindContent, ir.NewContent("pixel", "", ir.Object{"x": ir.Int(1), "y": ir.Int(2), "color": ir.String("blue")})).
		Raw("P3", "carol", 3, ir.KindContent, ir.NewContent("pixel", "", ir.Object{"x": ir.Int(2), "y": ir.Int(1), "color": ir.String("green")})).
		Raw("P4", "dave", 4, ir.KindContent, ir.NewContent("pixel", "", ir.Object{"color": ir.String("keyless")})).
		Records()

	p := mustProject(t, log, pixelsSpec, Options{})
	require.Len(t, p.Entities, 2)

	byKey := map[string]string{}
	for _, e := range p.Entities {
		byKey[DisplayKey(e.Key)] = e.Tip.ID
	}
	assert.Equal(t, map[string]string{"1,2": "P2", "2,1": "P3"}, byKey)

	e, ok, err := p.Find("P1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "P2", e.Tip.ID)
	assert.Equal(t, "alice", e.Owner(), "owner is the first author of the group")
}

func TestProject_PerAuthorKey(t *testing.T) {
	spec := ir.PolicySpec{
		Name:      "votes",
		Types:     []string{"vote"},
		Grouping:  ir.GroupByKey,
		KeyFields: []string{"target"},
		PerAuthor: true,
	}
	log := testutil.NewLog().
		Content("V1", "alice", 1, "vote", "", testutil.Fields("target", "C1", "choice", "yes")).
		Content("V2", "alice", 2, "vote", "", testutil.Fields("target", "C1", "choice", "no")).
		Content("V3", "bob", 3, "vote", "", testutil.Fields("target", "C1", "choice", "yes")).
		Records()

	p := mustProject(t, log, spec, Options{})
	assert.Equal(t, []string{"V2", "V3"}, tipIDs(p.Entities))
}

func TestProject_IgnoresOtherDomainsAndOpaque(t *testing.T) {
	log := testutil.NewLog().
		Content("M1", "alice", 1, "market", "", testutil.Fields("status", "OPEN")).
		Content("P1", "alice", 2, "post", "", nil).
		Raw("X1", "alice", 3, ir.KindContent, ir.Object{"status": ir.String("OPEN")}).
		Raw("X2", "alice", 4, ir.Kind("future-kind"), ir.Object{"type": ir.String("market")}).
		Records()

	p := mustProject(t, log, marketSpec, Options{})
	assert.Equal(t, []string{"M1"}, tipIDs(p.Entities))
}

func TestProject_MalformedChainIsolated(t *testing.T) {
	log := testutil.NewLog().
		Content("A", "alice", 1, "post", "B", nil).
		Content("B", "alice", 2, "post", "A", nil).
		Content("OK", "bob", 3, "post", "", nil).
		Records()

	p := mustProject(t, log, postsSpec, Options{})
	assert.Equal(t, []string{"OK"}, tipIDs(p.Entities))
	assert.Len(t, p.Malformed, 2)

	_, _, err := p.Find("A")
	assert.True(t, IsMalformedChain(err))
}

func TestProject_ContextCanceled(t *testing.T) {
	log := testutil.NewLog().Content("A", "alice", 1, "post", "", nil).Records()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Project(ctx, NewSnapshot(log), mustPolicy(t, postsSpec), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProject_Deterministic(t *testing.T) {
	log := testutil.NewLog().
		Content("A", "alice", 1, "market", "", testutil.Fields("status", "OPEN")).
		Content("B2", "bob", 2, "market", "A", testutil.Fields("status", "OPEN")).
		Content("B1", "carol", 2, "market", "A", testutil.Fields("status", "OPEN")).
		Records()

	first := mustProject(t, log, marketSpec, Options{})
	for i := 0; i < 5; i++ {
		again := mustProject(t, log, marketSpec, Options{})
		assert.Equal(t, tipIDs(first.Entities), tipIDs(again.Entities))
	}
	assert.Equal(t, []string{"B2"}, tipIDs(first.Entities))
}

func TestAssemble(t *testing.T) {
	entity := func(key, author string, ts int64, fields ir.Object) Entity {
		rec := ir.Record{ID: key, Author: author, Timestamp: ts, Kind: ir.KindContent, Payload: ir.Content{Type: "post", Fields: fields}}
		return Entity{Domain: "posts", Key: key, Tip: rec, Members: []ir.Record{rec}}
	}
	entities := []Entity{
		entity("a", "alice", 10, ir.Object{"votes": ir.Int(1), "category": ir.String("news")}),
		entity("b", "bob", 30, ir.Object{"votes": ir.Int(5), "category": ir.String("art")}),
		entity("c", "alice", 20, ir.Object{"votes": ir.Int(5), "category": ir.String("news")}),
		entity("d", "carol", 20, ir.Object{"category": ir.String("news")}),
	}
	spec := ir.PolicySpec{Name: "posts", CategoryField: "category", TopField: "votes"}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"recent", Filter{}, []string{"b", "c", "d", "a"}},
		{"oldest", Filter{Order: OrderOldest}, []string{"a", "d", "c", "b"}},
		{"top", Filter{Order: OrderTop}, []string{"b", "c", "a", "d"}},
		{"mine", Filter{Author: "alice"}, []string{"c", "a"}},
		{"category", Filter{Category: "news"}, []string{"c", "d", "a"}},
		{"since", Filter{Since: 20}, []string{"b", "c", "d"}},
		{"limit", Filter{Limit: 2}, []string{"b", "c"}},
		{"status without field", Filter{Statuses: []string{"OPEN"}}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assemble(entities, tt.filter, spec)
			keys := make([]string, len(got))
			for i, e := range got {
				keys[i] = e.Key
			}
			assert.Equal(t, tt.want, keys)
		})
	}

	assert.Equal(t, "a", entities[0].Key, "input is not reordered")
}

func TestEntityContains(t *testing.T) {
	e := Entity{Members: []ir.Record{{ID: "A"}, {ID: "B"}}}
	assert.True(t, e.Contains("B"))
	assert.False(t, e.Contains("C"))
}
