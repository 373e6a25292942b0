package harness

// TraceEvent records one executed scenario step.
type TraceEvent struct {
	Step   int    `json:"step"` // 1-based step index
	Action string `json:"action"`
	Domain string `json:"domain"`
	Author string `json:"author,omitempty"`
	Record string `json:"record,omitempty"` // Label of the appended record
	Error  string `json:"error,omitempty"`  // Service error code
	Count  int    `json:"count,omitempty"`  // Sweep resolutions
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step matched its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace lists executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages; empty when Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Views holds the final listing of each domain named in the scenario's
	// views, with record ids replaced by labels.
	Views map[string][]EntitySnapshot `json:"views,omitempty"`
}

// EntitySnapshot is the label-addressed form of a projected entity.
type EntitySnapshot struct {
	Key    string         `json:"key"`
	Tip    string         `json:"tip"`
	Owner  string         `json:"owner"`
	Fields map[string]any `json:"fields"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Views:  make(map[string][]EntitySnapshot),
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
