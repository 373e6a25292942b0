package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/strata/internal/ir"
)

// ViewSnapshot captures the trace and final views of a scenario.
// Record ids are replaced by labels so the snapshot is readable and stable
// across hash changes.
type ViewSnapshot struct {
	ScenarioName string                      `json:"scenario_name"`
	Trace        []TraceEvent                `json:"trace"`
	Views        map[string][]EntitySnapshot `json:"views"`
}

// toCanonicalMap converts the snapshot to generic values for
// ir.MarshalCanonical, omitting empty optional fields.
func (s *ViewSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"step":   ev.Step,
			"action": ev.Action,
			"domain": ev.Domain,
		}
		if ev.Author != "" {
			m["author"] = ev.Author
		}
		if ev.Record != "" {
			m["record"] = ev.Record
		}
		if ev.Error != "" {
			m["error"] = ev.Error
		}
		if ev.Count != 0 {
			m["count"] = ev.Count
		}
		trace[i] = m
	}

	views := make(map[string]any, len(s.Views))
	for domain, entities := range s.Views {
		list := make([]any, len(entities))
		for i, e := range entities {
			list[i] = map[string]any{
				"key":    e.Key,
				"tip":    e.Tip,
				"owner":  e.Owner,
				"fields": e.Fields,
			}
		}
		views[domain] = list
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
		"views":         views,
	}
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := ViewSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Views:        result.Views,
	}
	data, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
