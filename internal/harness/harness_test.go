package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.Len(t, scenarios, 3)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(context.Background(), s)
			require.NoError(t, err)
			assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
			assert.Len(t, result.Trace, len(s.Steps))
		})
	}
}

func TestGolden(t *testing.T) {
	for _, name := range []string{"market_lifecycle", "visibility"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(filepath.Join("testdata/scenarios", name+".yaml"))
			require.NoError(t, err)
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/visibility.yaml")
	require.NoError(t, err)

	first, err := Run(context.Background(), s)
	require.NoError(t, err)
	second, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func publishStep(author, as string) Step {
	return Step{
		Action: ActionPublish,
		Domain: "jobs",
		Author: author,
		Fields: map[string]any{"status": "OPEN"},
		As:     as,
	}
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name    string
		steps   []Step
		assert  []Assertion
		wantErr string
	}{
		{
			name:    "wrong tip",
			steps:   []Step{publishStep("alice", "a"), publishStep("bob", "b")},
			assert:  []Assertion{{Type: AssertTip, Domain: "jobs", ID: "$a", Tip: "$b"}},
			wantErr: "Expected: tip $b",
		},
		{
			name:    "wrong order",
			steps:   []Step{publishStep("alice", "a"), publishStep("bob", "b")},
			assert:  []Assertion{{Type: AssertVisible, Domain: "jobs", Tips: []string{"$a", "$b"}}},
			wantErr: "Actual: tips [$b $a]",
		},
		{
			name:    "wrong count",
			steps:   []Step{publishStep("alice", "a")},
			assert:  []Assertion{{Type: AssertCount, Domain: "jobs", Count: 2}},
			wantErr: "Actual: 1 entities",
		},
		{
			name:    "visible entity asserted hidden",
			steps:   []Step{publishStep("alice", "a")},
			assert:  []Assertion{{Type: AssertHidden, Domain: "jobs", ID: "$a"}},
			wantErr: "$a hidden",
		},
		{
			name:    "field mismatch",
			steps:   []Step{publishStep("alice", "a")},
			assert:  []Assertion{{Type: AssertFields, Domain: "jobs", ID: "$a", Expect: map[string]any{"status": "CLOSED"}}},
			wantErr: "status = CLOSED",
		},
		{
			name: "unexpected step error",
			steps: []Step{
				publishStep("alice", "a"),
				{Action: ActionDelete, Domain: "jobs", Author: "bob", Target: "$a"},
			},
			assert:  []Assertion{{Type: AssertCount, Domain: "jobs", Count: 1}},
			wantErr: "unexpected error PERMISSION_DENIED",
		},
		{
			name: "expected error not raised",
			steps: []Step{
				publishStep("alice", "a"),
				{Action: ActionDelete, Domain: "jobs", Author: "alice", Target: "$a", ExpectError: "PERMISSION_DENIED"},
			},
			assert:  []Assertion{{Type: AssertCount, Domain: "jobs", Count: 0}},
			wantErr: "expected error PERMISSION_DENIED, got success",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Run(context.Background(), &Scenario{
				Name:        "failure",
				Description: tt.name,
				Steps:       tt.steps,
				Assertions:  tt.assert,
			})
			require.NoError(t, err)
			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], tt.wantErr)
		})
	}
}

func TestRun_SweepTrace(t *testing.T) {
	result, err := Run(context.Background(), &Scenario{
		Name:        "sweep",
		Description: "sweep resolutions are labelled by sequence",
		Authority:   "council",
		Steps: []Step{
			{Action: ActionPublish, Domain: "proposals", Author: "alice", Fields: map[string]any{"status": "OPEN", "deadline": 2000}, As: "p"},
			{Action: ActionSweep, Domain: "proposals", Now: 3000},
		},
		Assertions: []Assertion{
			{Type: AssertTip, Domain: "proposals", ID: "$p", Tip: "@2"},
			{Type: AssertFields, Domain: "proposals", ID: "$p", Expect: map[string]any{"status": "DISCARDED", "replaces": "$p"}},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
	assert.Equal(t, TraceEvent{Step: 2, Action: ActionSweep, Domain: "proposals", Count: 1}, result.Trace[1])
}
