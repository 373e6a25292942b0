package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a projection scenario: a sequence of service operations
// against a fresh log, followed by assertions on the resulting views.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Policies is an optional directory of CUE policy overrides, relative
	// to the scenario file.
	Policies string `yaml:"policies,omitempty"`

	// Authority is the dictator identity and sweep author.
	Authority string `yaml:"authority,omitempty"`

	// Clock is the starting Unix millisecond of the deterministic clock.
	// Defaults to DefaultClock.
	Clock int64 `yaml:"clock,omitempty"`

	// Setup seeds blob and reputation tables before the steps run.
	Setup Setup `yaml:"setup,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final views.
	Assertions []Assertion `yaml:"assertions"`

	// Views lists the domains captured in Result.Views.
	Views []string `yaml:"views,omitempty"`
}

// Setup seeds side tables.
type Setup struct {
	Blobs      []string         `yaml:"blobs,omitempty"`
	Reputation map[string]int64 `yaml:"reputation,omitempty"`
}

// Step is one service operation.
type Step struct {
	// Action is one of publish, edit, delete, sweep.
	Action string `yaml:"action"`

	Domain string `yaml:"domain"`
	Author string `yaml:"author,omitempty"`

	// Target addresses the entity for edit and delete, as "$label" or a
	// raw record id.
	Target string `yaml:"target,omitempty"`

	// Fields is the content payload. String values of the form "$label"
	// are replaced by the labelled record id.
	Fields map[string]any `yaml:"fields,omitempty"`

	// As labels the appended record.
	As string `yaml:"as,omitempty"`

	// At sets the timestamp of the next append (Unix ms).
	At int64 `yaml:"at,omitempty"`

	// Now is the sweep time (Unix ms).
	Now int64 `yaml:"now,omitempty"`

	// ExpectError is the service error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type is one of the Assert constants.
	Type string `yaml:"type"`

	Domain string `yaml:"domain"`

	// ID addresses an entity by any of its records (hidden, tip, fields).
	ID string `yaml:"id,omitempty"`

	// Tips is the expected ordered list of tip labels (visible).
	Tips []string `yaml:"tips,omitempty"`

	// Tip is the expected tip label (tip).
	Tip string `yaml:"tip,omitempty"`

	// Expect is a subset of expected tip fields (fields).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected listing size (count).
	Count int `yaml:"count,omitempty"`

	// Filter narrows the listing (visible, count).
	Filter *FilterSpec `yaml:"filter,omitempty"`

	// Key, Method, Outcome and Winner describe an election (election).
	Key     string `yaml:"key,omitempty"`
	Method  string `yaml:"method,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`
	Winner  string `yaml:"winner,omitempty"`
}

// FilterSpec is the YAML form of projection.Filter.
type FilterSpec struct {
	Author   string   `yaml:"author,omitempty"`
	Category string   `yaml:"category,omitempty"`
	Status   []string `yaml:"status,omitempty"`
	Since    int64    `yaml:"since,omitempty"`
	Order    string   `yaml:"order,omitempty"`
	Limit    int      `yaml:"limit,omitempty"`
}

// Step actions.
const (
	ActionPublish = "publish"
	ActionEdit    = "edit"
	ActionDelete  = "delete"
	ActionSweep   = "sweep"
)

// Assertion types.
const (
	AssertVisible  = "visible"
	AssertHidden   = "hidden"
	AssertTip      = "tip"
	AssertFields   = "fields"
	AssertCount    = "count"
	AssertElection = "election"
)

// DefaultClock is the clock start used when a scenario sets none.
const DefaultClock = 1000

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields, missing required fields and references to labels not
// defined by an earlier step are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Policies != "" && !filepath.IsAbs(scenario.Policies) {
		scenario.Policies = filepath.Join(filepath.Dir(path), scenario.Policies)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 && len(s.Views) == 0 {
		return fmt.Errorf("assertions or views are required")
	}
	if s.Policies != "" {
		if _, err := os.Stat(s.Policies); err != nil {
			return fmt.Errorf("policies directory not found: %s", s.Policies)
		}
	}

	labels := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(i, step, labels); err != nil {
			return err
		}
		if step.As != "" {
			if labels[step.As] {
				return fmt.Errorf("steps[%d]: label %q already defined", i, step.As)
			}
			labels[step.As] = true
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, labels); err != nil {
			return err
		}
	}
	for i, d := range s.Views {
		if d == "" {
			return fmt.Errorf("views[%d]: domain is required", i)
		}
	}
	return nil
}

func validateStep(i int, step Step, labels map[string]bool) error {
	if step.Domain == "" {
		return fmt.Errorf("steps[%d]: domain is required", i)
	}
	switch step.Action {
	case ActionPublish:
		if step.Author == "" {
			return fmt.Errorf("steps[%d]: author is required for publish", i)
		}
	case ActionEdit, ActionDelete:
		if step.Author == "" {
			return fmt.Errorf("steps[%d]: author is required for %s", i, step.Action)
		}
		if step.Target == "" {
			return fmt.Errorf("steps[%d]: target is required for %s", i, step.Action)
		}
	case ActionSweep:
		if step.Now <= 0 {
			return fmt.Errorf("steps[%d]: now is required for sweep", i)
		}
		if step.As != "" {
			return fmt.Errorf("steps[%d]: sweep steps cannot be labelled", i)
		}
	case "":
		return fmt.Errorf("steps[%d]: action is required", i)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", i, step.Action)
	}

	if err := checkRef(step.Target, labels); err != nil {
		return fmt.Errorf("steps[%d].target: %w", i, err)
	}
	for k, v := range step.Fields {
		if s, ok := v.(string); ok {
			if err := checkRef(s, labels); err != nil {
				return fmt.Errorf("steps[%d].fields.%s: %w", i, k, err)
			}
		}
	}
	return nil
}

func validateAssertion(i int, a Assertion, labels map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", i)
	}
	if a.Domain == "" {
		return fmt.Errorf("assertions[%d]: domain is required", i)
	}

	switch a.Type {
	case AssertVisible:
		for _, tip := range a.Tips {
			if err := checkRef(tip, labels); err != nil {
				return fmt.Errorf("assertions[%d].tips: %w", i, err)
			}
		}
	case AssertCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", i)
		}
	case AssertHidden:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for hidden", i)
		}
	case AssertTip:
		if a.ID == "" || a.Tip == "" {
			return fmt.Errorf("assertions[%d]: id and tip are required for tip", i)
		}
		if err := checkRef(a.Tip, labels); err != nil {
			return fmt.Errorf("assertions[%d].tip: %w", i, err)
		}
	case AssertFields:
		if a.ID == "" || len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: id and expect are required for fields", i)
		}
	case AssertElection:
		if a.Key == "" || a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: key and outcome are required for election", i)
		}
		if a.Winner != "" {
			if err := checkRef(a.Winner, labels); err != nil {
				return fmt.Errorf("assertions[%d].winner: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}

	if err := checkRef(a.ID, labels); err != nil {
		return fmt.Errorf("assertions[%d].id: %w", i, err)
	}
	return nil
}

// checkRef rejects "$label" references to undefined labels.
func checkRef(s string, labels map[string]bool) error {
	if name, ok := strings.CutPrefix(s, "$"); ok && !labels[name] {
		return fmt.Errorf("undefined label %q", name)
	}
	return nil
}
