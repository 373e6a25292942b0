package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const claimedTwice = `package policy

policy: shop: {
	types: ["market"]
}
`

const notCUE = `package policy

policy: shop: {
`

func TestValidateCommand(t *testing.T) {
	t.Run("valid overrides", func(t *testing.T) {
		out, err := execute(t, "--format", "json", "validate", "../policy/testdata/override")
		require.NoError(t, err, out)
		res := decodeResponse[ValidationResult](t, out).Data
		assert.True(t, res.Valid)
		assert.Equal(t, []string{"market", "recipes"}, res.Policies)
	})

	t.Run("valid text", func(t *testing.T) {
		out, err := execute(t, "validate", "../policy/testdata/override")
		require.NoError(t, err)
		assert.Contains(t, out, "2 policy override(s) valid")
	})

	t.Run("type claimed twice", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "shop.cue", claimedTwice)

		out, err := execute(t, "--format", "json", "validate", dir)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))

		res := decodeResponse[ValidationResult](t, out)
		assert.Equal(t, "error", res.Status)
		assert.False(t, res.Data.Valid)
		require.NotEmpty(t, res.Data.Errors)
		assert.Equal(t, "E104", res.Data.Errors[0].Code)
	})

	t.Run("compile error", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "broken.cue", notCUE)

		_, err := execute(t, "validate", dir)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), ErrCodeCompile)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := execute(t, "validate", "/nonexistent/policies")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), ErrCodeLoad)
	})
}

const failingScenario = `name: miscount
description: "Counts one listing as two"
steps:
  - action: publish
    domain: market
    author: alice
    fields: { title: bike, status: FOR_SALE }
    as: bike
assertions:
  - type: count
    domain: market
    count: 2
`

func TestTestCommand(t *testing.T) {
	t.Run("bundled scenarios pass", func(t *testing.T) {
		out, err := execute(t, "--format", "json", "test", "../harness/testdata/scenarios")
		require.NoError(t, err, out)
		res := decodeResponse[TestResult](t, out).Data
		assert.Equal(t, 3, res.Total)
		assert.Equal(t, 3, res.Passed)
		assert.Zero(t, res.Failed)
	})

	t.Run("filter", func(t *testing.T) {
		out, err := execute(t, "test", "../harness/testdata/scenarios", "--filter", "market_*")
		require.NoError(t, err)
		assert.Contains(t, out, "✓ market_lifecycle")
		assert.Contains(t, out, "1 passed, 0 failed, 1 total")
	})

	t.Run("failing scenario", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "miscount.yaml", failingScenario)

		out, err := execute(t, "test", dir)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "✗ miscount")
		assert.Contains(t, out, "assertions[0] failed")
	})

	t.Run("empty directory", func(t *testing.T) {
		out, err := execute(t, "test", t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, "No scenarios found.\n", out)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := execute(t, "test", "/nonexistent/scenarios")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "scenarios directory not found")
	})

	t.Run("bad filter", func(t *testing.T) {
		_, err := execute(t, "test", "../harness/testdata/scenarios", "--filter", "[")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestReplayCommand(t *testing.T) {
	db := tempDB(t)
	bike := publish(t, db, "market", "alice", "--set", "title=bike", "--set", "status=FOR_SALE")
	publish(t, db, "market", "bob", "--set", "title=bike", "--set", "status=OPEN")
	publish(t, db, "posts", "carol", "--set", "body=hello")
	_, err := execute(t, "--db", db, "edit", "market", bike.ID, "--author", "alice", "--set", "status=SOLD")
	require.NoError(t, err)

	out, err := execute(t, "--db", db, "--format", "json", "replay")
	require.NoError(t, err, out)
	res := decodeResponse[ReplayResult](t, out).Data
	assert.True(t, res.AllDeterministic)
	assert.Equal(t, int64(5), res.Records)

	byDomain := make(map[string]ReplayDomainResult, len(res.Domains))
	for _, d := range res.Domains {
		byDomain[d.Domain] = d
		assert.True(t, d.Deterministic, d.Domain)
		assert.NotEmpty(t, d.Hash, d.Domain)
	}
	assert.Equal(t, 2, byDomain["market"].Entities)
	assert.Equal(t, 3, byDomain["market"].Members)
	assert.Equal(t, 1, byDomain["posts"].Entities)
	assert.Zero(t, byDomain["jobs"].Entities)

	out, err = execute(t, "--db", db, "--format", "json", "replay", "--domain", "posts")
	require.NoError(t, err)
	single := decodeResponse[ReplayResult](t, out).Data
	require.Len(t, single.Domains, 1)
	assert.Equal(t, byDomain["posts"].Hash, single.Domains[0].Hash)

	out, err = execute(t, "--db", db, "replay")
	require.NoError(t, err)
	assert.Contains(t, out, "Replayed 5 record(s)")
}

func TestReplayUnknownDomain(t *testing.T) {
	out, err := execute(t, "--db", tempDB(t), "--format", "json", "replay", "--domain", "bazaar")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "UNKNOWN_DOMAIN", decodeResponse[any](t, out).Error.Code)
}
