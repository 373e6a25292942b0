package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/ir"
	"github.com/roach88/strata/internal/testutil"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"case", "The Hobbit", "the hobbit"},
		{"whitespace", "  The\tHobbit \n", "the hobbit"},
		{"fold", "STRASSE", "strasse"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"scheme and host", "HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"default port", "https://example.com:443/a", "https://example.com/a"},
		{"other port", "http://example.com:8080/a", "http://example.com:8080/a"},
		{"fragment", "https://example.com/a#top", "https://example.com/a"},
		{"trailing slash", "https://example.com/a/", "https://example.com/a"},
		{"root slash", "https://example.com/", "https://example.com"},
		{"tracking", "https://example.com/a?utm_source=x&id=1", "https://example.com/a?id=1"},
		{"query order", "https://example.com/a?b=2&a=1", "https://example.com/a?a=1&b=2"},
		{"not a url", "  Just Text ", "just text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}

func TestNewSignature(t *testing.T) {
	sig, err := NewSignature("book", ir.DedupeSpec{Fields: []string{"title", "author"}, Normalize: ir.NormalizeText})
	require.NoError(t, err)

	rec := func(fields ir.Object) ir.Record {
		return ir.Record{Kind: ir.KindContent, Payload: ir.Content{Type: "book", Fields: fields}}
	}

	s1, ok, err := sig(rec(testutil.Fields("title", "The Hobbit", "author", "Tolkien")))
	require.NoError(t, err)
	require.True(t, ok)

	s2, _, err := sig(rec(testutil.Fields("title", "the  HOBBIT", "author", "tolkien ")))
	require.NoError(t, err)
	assert.Equal(t, s1, s2)

	s3, _, err := sig(rec(testutil.Fields("title", "Tolkien", "author", "The Hobbit")))
	require.NoError(t, err)
	assert.NotEqual(t, s1, s3, "field order matters")

	_, ok, err = sig(rec(testutil.Fields("isbn", "123")))
	require.NoError(t, err)
	assert.False(t, ok, "records without signature fields are never collapsed")

	_, err = NewSignature("book", ir.DedupeSpec{})
	assert.Error(t, err)
	_, err = NewSignature("book", ir.DedupeSpec{Fields: []string{"x"}, Normalize: "soundex"})
	assert.Error(t, err)
}

func TestDedupe_KeepsLatestAndIsIdempotent(t *testing.T) {
	log := testutil.NewLog().
		Content("B1", "alice", 1, "bookmark", "", testutil.Fields("url", "https://go.dev/")).
		Content("B2", "bob", 5, "bookmark", "", testutil.Fields("url", "https://GO.dev#intro")).
		Content("B3", "carol", 3, "bookmark", "", testutil.Fields("url", "https://pkg.go.dev")).
		Content("B4", "dave", 5, "bookmark", "", testutil.Fields("url", "https://go.dev?utm_medium=feed")).
		Content("B5", "erin", 2, "bookmark", "", testutil.Fields("note", "no url")).
		Records()

	p := mustProject(t, log, bookmarksSpec, Options{})
	assert.Equal(t, []string{"B3", "B4", "B5"}, tipIDs(p.Entities), "B4 wins the B2 timestamp tie by id")

	again, err := Dedupe(p.Entities, p.Policy.Signature)
	require.NoError(t, err)
	assert.Equal(t, p.Entities, again)

	// Duplicates removed from listings stay reachable by id.
	e, ok, err := p.Find("B1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "B1", e.Tip.ID)
}

func TestDedupe_NilSignature(t *testing.T) {
	in := []Entity{{Key: "a"}, {Key: "b"}}
	out, err := Dedupe(in, nil)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
