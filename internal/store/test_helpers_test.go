package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/strata/internal/testutil"
)

// createTestStore creates a new store in a temp directory with a
// deterministic clock starting at 1000ms.
func createTestStore(t *testing.T) (*Store, *testutil.StepClock) {
	t.Helper()
	clock := testutil.NewStepClock(1000)
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(clock))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}
