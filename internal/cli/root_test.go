package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "strata.db")
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "strata", cmd.Use)
	assert.Contains(t, cmd.Long, "append-only record log")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{
		"list", "get", "history", "publish", "edit", "delete",
		"elect", "sweep", "policies", "validate", "replay", "test", "serve",
	}

	for _, name := range commands {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "command %s should exist", name)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	for _, name := range []string{"config", "db", "policies", "authority"} {
		f := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, "", f.DefValue, name)
	}
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flag    string
		def     string
	}{
		{"list", "order", "recent"},
		{"list", "limit", "0"},
		{"list", "status", "[]"},
		{"publish", "fields", "{}"},
		{"publish", "author", ""},
		{"edit", "set", "[]"},
		{"elect", "method", "DEMOCRACY"},
		{"sweep", "now", "0"},
		{"replay", "domain", ""},
		{"test", "filter", ""},
		{"serve", "listen", ":8080"},
	}

	root := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.flag, func(t *testing.T) {
			sub, _, err := root.Find([]string{tt.command})
			require.NoError(t, err)
			f := sub.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "policies", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestMissingDatabase(t *testing.T) {
	_, err := execute(t, "list", "market")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no database")
}

func TestConfigFileSuppliesDatabase(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "from-config.db")
	cfg := writeFile(t, dir, "strata.yaml", "db: "+db+"\nauthority: council\n")

	out, err := execute(t, "--config", cfg, "--format", "json", "list", "market")
	require.NoError(t, err)

	resp := decodeResponse[[]EntityRow](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.Data)
	assert.FileExists(t, db)
}

func TestFlagOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "strata.yaml", "db: "+filepath.Join(dir, "config.db")+"\n")
	flagDB := filepath.Join(dir, "flag.db")

	_, err := execute(t, "--config", cfg, "--db", flagDB, "list", "market")
	require.NoError(t, err)
	assert.FileExists(t, flagDB)
	assert.NoFileExists(t, filepath.Join(dir, "config.db"))
}

func TestInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "strata.yaml", "database: x.db\n")

	_, err := execute(t, "--config", cfg, "policies")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid config")
}
