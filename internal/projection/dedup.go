package projection

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/strata/internal/ir"
)

// Normalizer canonicalizes one signature field value.
type Normalizer func(string) string

var normalizers = map[string]Normalizer{
	ir.NormalizeExact: func(s string) string { return s },
	ir.NormalizeText:  NormalizeText,
	ir.NormalizeURL:   NormalizeURL,
}

// NormalizeText applies NFC, Unicode case folding and whitespace collapsing.
func NormalizeText(s string) string {
	s = norm.NFC.String(s)
	s = cases.Fold().String(s) // Casers are stateful; one per call
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeURL lowercases scheme and host, drops default ports, fragments,
// tracking parameters and trailing slashes, and sorts the query.
// Strings that do not parse as absolute URLs fall back to NormalizeText.
func NormalizeURL(s string) string {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return NormalizeText(s)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = host + ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""

	q := u.Query()
	for k := range q {
		if strings.HasPrefix(strings.ToLower(k), "utm_") {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode() // Encode sorts by key

	return u.String()
}

// NewSignature builds a SignatureFunc for contentType from spec.
func NewSignature(contentType string, spec ir.DedupeSpec) (SignatureFunc, error) {
	if len(spec.Fields) == 0 {
		return nil, fmt.Errorf("dedupe requires at least one field")
	}
	normalize := spec.Normalize
	if normalize == "" {
		normalize = ir.NormalizeExact
	}
	fn, ok := normalizers[normalize]
	if !ok {
		return nil, fmt.Errorf("unknown normalizer %q", normalize)
	}

	fields := append([]string(nil), spec.Fields...)
	return func(rec ir.Record) (string, bool, error) {
		obj := rec.Fields()
		parts := make(ir.Array, 0, len(fields))
		present := false
		for _, f := range fields {
			v, ok := obj.Text(f)
			if ok && v != "" {
				present = true
			}
			parts = append(parts, ir.String(fn(v)))
		}
		if !present {
			return "", false, nil
		}
		sig, err := ir.SignatureHash(contentType, parts)
		if err != nil {
			return "", false, err
		}
		return sig, true, nil
	}, nil
}

// Dedupe keeps, per signature, only the entity whose tip is the most recent
// (record id breaks exact timestamp ties). Entities without a signature are
// always kept. Survivors keep their input order, so Dedupe(Dedupe(x)) ==
// Dedupe(x).
func Dedupe(entities []Entity, sig SignatureFunc) ([]Entity, error) {
	if sig == nil {
		return entities, nil
	}

	sigs := make([]string, len(entities))
	winner := make(map[string]int)
	for i, e := range entities {
		s, ok, err := sig(e.Tip)
		if err != nil {
			return nil, fmt.Errorf("dedupe signature for %s: %w", e.Tip.ID, err)
		}
		if !ok {
			continue
		}
		sigs[i] = s

		j, seen := winner[s]
		if !seen || newer(e.Tip, entities[j].Tip) {
			winner[s] = i
		}
	}

	out := make([]Entity, 0, len(entities))
	for i, e := range entities {
		if sigs[i] == "" || winner[sigs[i]] == i {
			out = append(out, e)
		}
	}
	return out, nil
}

func newer(a, b ir.Record) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp > b.Timestamp
	}
	return a.ID > b.ID
}
