package policy

import (
	"fmt"
	"strings"

	"github.com/roach88/strata/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrPolicyNameEmpty     = "E101" // name is required
	ErrPolicyNoTypes       = "E102" // at least one content type required
	ErrDuplicatePolicy     = "E103" // two policies share a name
	ErrTypeClaimedTwice    = "E104" // two policies own the same content type
	ErrInvalidGrouping     = "E105" // unknown grouping or key grouping without fields
	ErrInvalidStatusRank   = "E106" // empty or duplicate status rank
	ErrUnknownParentDomain = "E107" // cascade parent is not a known policy
	ErrInvalidDedupe       = "E108" // dedupe without fields or unknown normalizer
	ErrUnknownVoteDomain   = "E109" // governance vote domain is not a known policy
	ErrSelfParent          = "E110" // a policy cascades to itself
)

// ValidationError represents a policy table validation error.
type ValidationError struct {
	Policy  string `json:"policy"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.Policy, e.Field, e.Message)
}

// ValidationErrors bundles every problem found in a policy set.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks a policy set as a whole.
// Returns all errors found (does not fail-fast).
func Validate(specs []ir.PolicySpec) []ValidationError {
	var errs []ValidationError
	add := func(policy, field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Policy:  policy,
			Field:   field,
			Code:    code,
			Message: fmt.Sprintf(format, args...),
		})
	}

	names := make(map[string]bool, len(specs))
	for _, s := range specs {
		if s.Name != "" && names[s.Name] {
			add(s.Name, "name", ErrDuplicatePolicy, "duplicate policy name %q", s.Name)
		}
		names[s.Name] = true
	}

	owner := make(map[string]string)
	for _, s := range specs {
		if strings.TrimSpace(s.Name) == "" {
			add(s.Name, "name", ErrPolicyNameEmpty, "policy name is required")
		}

		if len(s.Types) == 0 {
			add(s.Name, "types", ErrPolicyNoTypes, "at least one content type is required")
		}
		for _, t := range s.Types {
			if prev, taken := owner[t]; taken && prev != s.Name {
				add(s.Name, "types", ErrTypeClaimedTwice, "content type %q is already owned by %q", t, prev)
				continue
			}
			owner[t] = s.Name
		}

		switch s.Grouping {
		case "", ir.GroupByChain:
			if len(s.KeyFields) > 0 || s.PerAuthor {
				add(s.Name, "key_fields", ErrInvalidGrouping, "key fields require grouping %q", ir.GroupByKey)
			}
		case ir.GroupByKey:
			if len(s.KeyFields) == 0 {
				add(s.Name, "key_fields", ErrInvalidGrouping, "key grouping requires at least one key field")
			}
		default:
			add(s.Name, "grouping", ErrInvalidGrouping, "unknown grouping %q", s.Grouping)
		}

		if s.StatusField != "" || len(s.StatusRank) > 0 {
			if s.StatusField == "" || len(s.StatusRank) == 0 {
				add(s.Name, "status", ErrInvalidStatusRank, "status field and rank must be set together")
			}
			seen := make(map[string]bool, len(s.StatusRank))
			for _, st := range s.StatusRank {
				if seen[st] {
					add(s.Name, "status.rank", ErrInvalidStatusRank, "status %q ranked twice", st)
				}
				seen[st] = true
			}
		}

		if s.ParentField != "" || s.ParentDomain != "" {
			switch {
			case s.ParentField == "" || s.ParentDomain == "":
				add(s.Name, "parent", ErrUnknownParentDomain, "parent field and domain must be set together")
			case s.ParentDomain == s.Name:
				add(s.Name, "parent.domain", ErrSelfParent, "policy cannot cascade to itself")
			case !names[s.ParentDomain]:
				add(s.Name, "parent.domain", ErrUnknownParentDomain, "unknown parent domain %q", s.ParentDomain)
			}
		}

		if d := s.Dedupe; d != nil {
			if len(d.Fields) == 0 {
				add(s.Name, "dedupe.fields", ErrInvalidDedupe, "dedupe requires at least one field")
			}
			switch d.Normalize {
			case "", ir.NormalizeExact, ir.NormalizeText, ir.NormalizeURL:
			default:
				add(s.Name, "dedupe.normalize", ErrInvalidDedupe, "unknown normalizer %q", d.Normalize)
			}
		}

		if g := s.Governance; g != nil && !names[g.VoteDomain] {
			add(s.Name, "governance.vote_domain", ErrUnknownVoteDomain, "unknown vote domain %q", g.VoteDomain)
		}
	}

	errs = append(errs, validateParentCycles(specs)...)
	return errs
}

// validateParentCycles rejects cascade loops longer than one hop, which would
// make parent projection order undefined.
func validateParentCycles(specs []ir.PolicySpec) []ValidationError {
	parent := make(map[string]string, len(specs))
	for _, s := range specs {
		if s.ParentDomain != "" && s.ParentDomain != s.Name {
			parent[s.Name] = s.ParentDomain
		}
	}

	var errs []ValidationError
	for _, s := range specs {
		seen := map[string]bool{s.Name: true}
		for cur := parent[s.Name]; cur != ""; cur = parent[cur] {
			if seen[cur] {
				errs = append(errs, ValidationError{
					Policy:  s.Name,
					Field:   "parent.domain",
					Code:    ErrSelfParent,
					Message: fmt.Sprintf("cascade cycle through %q", cur),
				})
				break
			}
			seen[cur] = true
		}
	}
	return errs
}
