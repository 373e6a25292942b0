package policy

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/strata/internal/ir"
)

//go:embed schema.cue
var schemaSource []byte

// CompileError represents a compilation error with source position.
type CompileError struct {
	Policy  string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	where := e.Field
	if e.Policy != "" {
		where = e.Policy + "." + e.Field
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			where, e.Message)
	}
	return fmt.Sprintf("%s: %s", where, e.Message)
}

// Compile extracts every policy declared under the top-level "policy" struct
// of v, in declaration order. Each policy is checked against the #Policy
// schema before it is read.
func Compile(v cue.Value) ([]ir.PolicySpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError("", err)
	}

	policies := v.LookupPath(cue.ParsePath("policy"))
	if !policies.Exists() {
		return nil, &CompileError{
			Field:   "policy",
			Message: "no policy struct found",
			Pos:     v.Pos(),
		}
	}

	schema, err := schemaFor(v.Context())
	if err != nil {
		return nil, err
	}

	iter, err := policies.Fields()
	if err != nil {
		return nil, formatCUEError("", err)
	}

	var specs []ir.PolicySpec
	for iter.Next() {
		spec, err := compilePolicy(schema, iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// CompilePolicy parses a single policy value named by its last path selector.
func CompilePolicy(v cue.Value) (ir.PolicySpec, error) {
	schema, err := schemaFor(v.Context())
	if err != nil {
		return ir.PolicySpec{}, err
	}
	name := ""
	if sels := v.Path().Selectors(); len(sels) > 0 {
		name = sels[len(sels)-1].String()
	}
	return compilePolicy(schema, name, v)
}

func schemaFor(ctx *cue.Context) (cue.Value, error) {
	v := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError("", err)
	}
	return v.LookupPath(cue.ParsePath("#Policy")), nil
}

func compilePolicy(schema cue.Value, name string, v cue.Value) (ir.PolicySpec, error) {
	if err := v.Err(); err != nil {
		return ir.PolicySpec{}, formatCUEError(name, err)
	}
	if err := schema.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return ir.PolicySpec{}, formatCUEError(name, err)
	}

	r := reader{policy: name, v: v}
	spec := ir.PolicySpec{
		Name:             name,
		Types:            r.strings("types"),
		Grouping:         r.str("grouping"),
		KeyFields:        r.strings("key_fields"),
		PerAuthor:        r.boolean("per_author"),
		StatusField:      r.str("status.field"),
		StatusRank:       r.strings("status.rank"),
		ResurrectSibling: r.boolean("resurrect_sibling"),
		TombstoneOnEdit:  r.boolean("tombstone_on_edit"),
		ParentField:      r.str("parent.field"),
		ParentDomain:     r.str("parent.domain"),
		BlobField:        r.str("blob_field"),
		CategoryField:    r.str("category_field"),
		TopField:         r.str("top_field"),
	}
	if spec.Grouping == "" {
		spec.Grouping = ir.GroupByChain
	}

	if r.exists("dedupe") {
		spec.Dedupe = &ir.DedupeSpec{
			Fields:    r.strings("dedupe.fields"),
			Normalize: r.str("dedupe.normalize"),
		}
		if spec.Dedupe.Normalize == "" {
			spec.Dedupe.Normalize = ir.NormalizeExact
		}
	}

	if r.exists("governance") {
		g := &ir.GovernanceSpec{
			VoteDomain:    r.str("governance.vote_domain"),
			MethodField:   r.str("governance.method_field"),
			DeadlineField: r.str("governance.deadline_field"),
			ChoiceField:   r.str("governance.choice_field"),
			GroupField:    r.str("governance.group_field"),
			Electorate:    r.integer("governance.electorate"),
		}
		if g.ChoiceField == "" {
			g.ChoiceField = "choice"
		}
		spec.Governance = g
	}

	if r.err != nil {
		return ir.PolicySpec{}, r.err
	}
	return spec, nil
}

// reader pulls optional concrete fields out of a policy value, keeping the
// first error.
type reader struct {
	policy string
	v      cue.Value
	err    error
}

func (r *reader) lookup(path string) (cue.Value, bool) {
	if r.err != nil {
		return cue.Value{}, false
	}
	f := r.v.LookupPath(cue.ParsePath(path))
	return f, f.Exists()
}

func (r *reader) exists(path string) bool {
	_, ok := r.lookup(path)
	return ok
}

func (r *reader) fail(path string, f cue.Value, err error) {
	if ce := formatCUEError(r.policy, err); ce != nil {
		if c, ok := ce.(*CompileError); ok {
			c.Field = path
			r.err = c
			return
		}
	}
	r.err = &CompileError{Policy: r.policy, Field: path, Message: err.Error(), Pos: f.Pos()}
}

func (r *reader) str(path string) string {
	f, ok := r.lookup(path)
	if !ok {
		return ""
	}
	s, err := f.String()
	if err != nil {
		r.fail(path, f, err)
	}
	return s
}

func (r *reader) boolean(path string) bool {
	f, ok := r.lookup(path)
	if !ok {
		return false
	}
	b, err := f.Bool()
	if err != nil {
		r.fail(path, f, err)
	}
	return b
}

func (r *reader) integer(path string) int64 {
	f, ok := r.lookup(path)
	if !ok {
		return 0
	}
	n, err := f.Int64()
	if err != nil {
		r.fail(path, f, err)
	}
	return n
}

func (r *reader) strings(path string) []string {
	f, ok := r.lookup(path)
	if !ok {
		return nil
	}
	iter, err := f.List()
	if err != nil {
		r.fail(path, f, err)
		return nil
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			r.fail(path, iter.Value(), err)
			return nil
		}
		out = append(out, s)
	}
	return out
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(policy string, err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Policy:  policy,
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return &CompileError{Policy: policy, Field: "cue", Message: first.Error()}
}
