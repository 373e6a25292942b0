package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/ir"
)

func TestBuiltin(t *testing.T) {
	specs, err := Builtin()
	require.NoError(t, err)

	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	assert.Equal(t, []string{
		"market", "jobs", "posts", "replies", "about", "pixels", "bookmarks",
		"books", "transactions", "cases", "proposals", "candidatures", "votes",
	}, names)

	assert.Empty(t, Validate(specs))

	market := specs[0]
	assert.Equal(t, ir.GroupByChain, market.Grouping)
	assert.Equal(t, "status", market.StatusField)
	assert.Equal(t, "SOLD", market.StatusRank[len(market.StatusRank)-1])
	assert.True(t, market.TombstoneOnEdit)
	assert.Equal(t, "image", market.BlobField)
	assert.Nil(t, market.Dedupe)
	assert.Nil(t, market.Governance)
}

func TestBuiltin_Details(t *testing.T) {
	reg, err := Load("")
	require.NoError(t, err)

	replies, ok := reg.Lookup("replies")
	require.True(t, ok)
	assert.Equal(t, "root", replies.Spec.ParentField)
	assert.Equal(t, "posts", replies.Spec.ParentDomain)

	votes, ok := reg.Lookup("votes")
	require.True(t, ok)
	assert.Equal(t, ir.GroupByKey, votes.Spec.Grouping)
	assert.True(t, votes.Spec.PerAuthor)
	assert.NotNil(t, votes.Key)

	books, ok := reg.Lookup("books")
	require.True(t, ok)
	require.NotNil(t, books.Spec.Dedupe)
	assert.Equal(t, ir.NormalizeText, books.Spec.Dedupe.Normalize)
	assert.NotNil(t, books.Signature)

	proposals, ok := reg.Lookup("proposals")
	require.True(t, ok)
	require.NotNil(t, proposals.Spec.Governance)
	assert.Equal(t, "deadline", proposals.Spec.Governance.DeadlineField)
	assert.Equal(t, "votes", proposals.Spec.Governance.VoteDomain)

	cands, ok := reg.Lookup("candidatures")
	require.True(t, ok)
	assert.Equal(t, "choice", cands.Spec.Governance.ChoiceField, "choice field defaults")
	assert.Equal(t, "election", cands.Spec.Governance.GroupField)

	domain, ok := reg.DomainOf("reply")
	require.True(t, ok)
	assert.Equal(t, "replies", domain)

	_, ok = reg.Lookup("nope")
	assert.False(t, ok)
}

func TestCompileSource_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"no types", `policy: x: { grouping: "chain" }`},
		{"empty types", `policy: x: { types: [] }`},
		{"bad grouping", `policy: x: { types: ["x"], grouping: "tree" }`},
		{"bad normalizer", `policy: x: { types: ["x"], dedupe: { fields: ["a"], normalize: "soundex" } }`},
		{"float electorate", `policy: x: { types: ["x"], governance: { vote_domain: "v", electorate: 1.5 } }`},
		{"negative electorate", `policy: x: { types: ["x"], governance: { vote_domain: "v", electorate: -1 } }`},
		{"rank not a list", `policy: x: { types: ["x"], status: { field: "s", rank: "OPEN" } }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileSource("test.cue", []byte(tt.src))
			require.Error(t, err)

			var ce *CompileError
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
			assert.Equal(t, "x", ce.Policy)
		})
	}
}

func TestCompileSource_Syntax(t *testing.T) {
	_, err := CompileSource("broken.cue", []byte(`policy: x: {`))
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, err.Error(), "broken.cue")
}

func TestCompileSource_NoPolicyStruct(t *testing.T) {
	_, err := CompileSource("empty.cue", []byte(`other: 1`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no policy struct")
}

func TestCompilePolicy(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		policy: pixels: {
			types: ["pixel"]
			grouping: "key"
			key_fields: ["x", "y"]
		}
	`)
	require.NoError(t, v.Err())

	spec, err := CompilePolicy(v.LookupPath(cue.ParsePath("policy.pixels")))
	require.NoError(t, err)
	assert.Equal(t, "pixels", spec.Name)
	assert.Equal(t, []string{"x", "y"}, spec.KeyFields)
	assert.False(t, spec.PerAuthor)
}

func TestLoadDir_Overrides(t *testing.T) {
	overrides, err := LoadDir("testdata/override")
	require.NoError(t, err)
	require.Len(t, overrides, 2)

	reg, err := Load("testdata/override")
	require.NoError(t, err)

	names := reg.Names()
	assert.Equal(t, "market", names[0], "override keeps position")
	assert.Equal(t, "recipes", names[len(names)-1])

	market, _ := reg.Lookup("market")
	assert.Equal(t, "state", market.Spec.StatusField)
	assert.False(t, market.Spec.TombstoneOnEdit, "override replaces the whole table")
}

func TestLoadDir_CompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantMsg string
	}{
		{"unclosed struct", "package policy\n\npolicy: shop: {\n", "expected '}'"},
		{"conflicting values", "package policy\n\nx: 1\nx: 2\n", "conflicting values"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.cue"), []byte(tt.source), 0o644))

			_, err := LoadDir(dir)
			require.Error(t, err)

			var ce *CompileError
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
			assert.Equal(t, "cue", ce.Field)
			assert.Contains(t, ce.Message, tt.wantMsg)
			assert.True(t, ce.Pos.IsValid())
		})
	}
}

func TestLoadDir_Missing(t *testing.T) {
	_, err := LoadDir("testdata/does-not-exist")
	assert.Error(t, err)

	_, err = LoadDir(t.TempDir())
	assert.ErrorContains(t, err, "no CUE files")
}

func TestMerge(t *testing.T) {
	base := []ir.PolicySpec{{Name: "a"}, {Name: "b"}}
	got := Merge(base, []ir.PolicySpec{{Name: "b", TopField: "votes"}, {Name: "c"}})

	require.Len(t, got, 3)
	assert.Equal(t, "votes", got[1].TopField)
	assert.Equal(t, "c", got[2].Name)
	assert.Empty(t, base[1].TopField, "base is not modified")
}
