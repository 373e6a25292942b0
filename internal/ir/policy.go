package ir

// Grouping modes for PolicySpec.Grouping.
const (
	GroupByChain = "chain"
	GroupByKey   = "key"
)

// Normalizers for DedupeSpec.Normalize.
const (
	NormalizeExact = "exact"
	NormalizeText  = "text"
	NormalizeURL   = "url"
)

// PolicySpec is a compiled domain policy table. Each feature (market, jobs,
// replies, ...) is described by one PolicySpec; the projection engine itself
// is shared.
type PolicySpec struct {
	Name  string   `json:"name"`
	Types []string `json:"types"` // Content types owned by this domain

	Grouping  string   `json:"grouping"`             // "chain" or "key"
	KeyFields []string `json:"key_fields,omitempty"` // Fields forming the explicit key
	PerAuthor bool     `json:"per_author,omitempty"` // Append author to the explicit key

	StatusField string   `json:"status_field,omitempty"`
	StatusRank  []string `json:"status_rank,omitempty"` // Lowest rank first

	ResurrectSibling bool `json:"resurrect_sibling,omitempty"`
	TombstoneOnEdit  bool `json:"tombstone_on_edit,omitempty"`

	ParentField  string `json:"parent_field,omitempty"`
	ParentDomain string `json:"parent_domain,omitempty"`

	BlobField string `json:"blob_field,omitempty"`

	Dedupe *DedupeSpec `json:"dedupe,omitempty"`

	CategoryField string `json:"category_field,omitempty"`
	TopField      string `json:"top_field,omitempty"`

	Governance *GovernanceSpec `json:"governance,omitempty"`
}

// DedupeSpec configures the signature engine for a domain.
type DedupeSpec struct {
	Fields    []string `json:"fields"`
	Normalize string   `json:"normalize"`
}

// GovernanceSpec marks a domain as carrying time-boxed decisions.
type GovernanceSpec struct {
	MethodField   string `json:"method_field"`
	DeadlineField string `json:"deadline_field"`
	VoteDomain    string `json:"vote_domain"`
	ChoiceField   string `json:"choice_field"`
	GroupField    string `json:"group_field,omitempty"` // Candidatures: the election a record runs in
	Electorate    int64  `json:"electorate"`            // Default electorate when the record has none
}

// Owns reports whether the content type belongs to this policy.
func (p PolicySpec) Owns(contentType string) bool {
	for _, t := range p.Types {
		if t == contentType {
			return true
		}
	}
	return false
}

// Ranked reports whether the policy carries a status rank table.
func (p PolicySpec) Ranked() bool {
	return p.StatusField != "" && len(p.StatusRank) > 0
}
