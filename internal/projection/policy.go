package projection

import (
	"strings"

	"github.com/roach88/strata/internal/ir"
)

// KeyFunc derives an explicit grouping key from a record.
// ok is false when the record lacks the key fields; such records are skipped.
type KeyFunc func(rec ir.Record) (key string, ok bool)

// SignatureFunc derives a dedupe signature from a record.
// ok is false when the record carries none of the signature fields; such
// records are never collapsed.
type SignatureFunc func(rec ir.Record) (sig string, ok bool, err error)

// Policy is the runtime form of a domain policy table.
type Policy struct {
	Spec      ir.PolicySpec
	Key       KeyFunc       // nil for chain-rooted grouping
	Selector  Selector      // Tip order
	Signature SignatureFunc // nil when the domain does not dedupe
}

// keySeparator joins multi-field keys. It cannot appear in a decimal int and
// is unlikely in identifiers.
const keySeparator = "\x1f"

// NewPolicy builds the runtime policy for spec.
func NewPolicy(spec ir.PolicySpec) (Policy, error) {
	if spec.Name == "" {
		return Policy{}, NewPolicyError("", "policy name is required")
	}
	if len(spec.Types) == 0 {
		return Policy{}, NewPolicyError(spec.Name, "policy must own at least one content type")
	}

	p := Policy{
		Spec:     spec,
		Selector: NewSelector(spec.StatusField, spec.StatusRank),
	}

	switch spec.Grouping {
	case "", ir.GroupByChain:
	case ir.GroupByKey:
		if len(spec.KeyFields) == 0 {
			return Policy{}, NewPolicyError(spec.Name, "key grouping requires key_fields")
		}
		p.Key = fieldKey(spec.KeyFields, spec.PerAuthor)
	default:
		return Policy{}, NewPolicyError(spec.Name, "unknown grouping "+spec.Grouping)
	}

	if spec.Dedupe != nil {
		sig, err := NewSignature(spec.Types[0], *spec.Dedupe)
		if err != nil {
			return Policy{}, NewPolicyError(spec.Name, err.Error())
		}
		p.Signature = sig
	}

	return p, nil
}

// fieldKey builds a KeyFunc joining the given fields (and optionally the
// author) in order.
func fieldKey(fields []string, perAuthor bool) KeyFunc {
	return func(rec ir.Record) (string, bool) {
		obj := rec.Fields()
		parts := make([]string, 0, len(fields)+1)
		for _, f := range fields {
			v, ok := obj.Text(f)
			if !ok {
				return "", false
			}
			parts = append(parts, v)
		}
		if perAuthor {
			parts = append(parts, rec.Author)
		}
		return strings.Join(parts, keySeparator), true
	}
}

// DisplayKey renders a group key for humans, replacing the field separator.
func DisplayKey(key string) string {
	return strings.ReplaceAll(key, keySeparator, ",")
}
