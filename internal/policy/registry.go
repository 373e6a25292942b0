package policy

import (
	"fmt"

	"github.com/roach88/strata/internal/ir"
	"github.com/roach88/strata/internal/projection"
)

// Registry holds a validated policy set and its runtime policies.
//
// Thread-safety: a Registry is immutable after NewRegistry and safe for
// concurrent use.
type Registry struct {
	specs  []ir.PolicySpec
	byName map[string]projection.Policy
	byType map[string]string
}

// NewRegistry validates specs and builds their runtime policies.
// Validation failures are returned as ValidationErrors.
func NewRegistry(specs []ir.PolicySpec) (*Registry, error) {
	if errs := Validate(specs); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	r := &Registry{
		specs:  specs,
		byName: make(map[string]projection.Policy, len(specs)),
		byType: make(map[string]string),
	}
	for _, s := range specs {
		p, err := projection.NewPolicy(s)
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", s.Name, err)
		}
		r.byName[s.Name] = p
		for _, t := range s.Types {
			r.byType[t] = s.Name
		}
	}
	return r, nil
}

// Lookup returns the runtime policy for a domain.
func (r *Registry) Lookup(name string) (projection.Policy, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// DomainOf returns the domain owning a content type.
func (r *Registry) DomainOf(contentType string) (string, bool) {
	d, ok := r.byType[contentType]
	return d, ok
}

// Names returns domain names in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.specs))
	for i, s := range r.specs {
		names[i] = s.Name
	}
	return names
}

// Specs returns the compiled policy tables in declaration order.
func (r *Registry) Specs() []ir.PolicySpec {
	out := make([]ir.PolicySpec, len(r.specs))
	copy(out, r.specs)
	return out
}
