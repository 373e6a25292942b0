package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/ir"
)

func publish(t *testing.T, db, domain, author string, args ...string) ir.Record {
	t.Helper()
	argv := append([]string{"--db", db, "--format", "json", "publish", domain, "--author", author}, args...)
	out, err := execute(t, argv...)
	require.NoError(t, err, out)
	resp := decodeResponse[ir.Record](t, out)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestEntityLifecycle(t *testing.T) {
	db := tempDB(t)

	bike := publish(t, db, "market", "alice", "--set", "title=bike", "--set", "status=FOR_SALE")
	assert.Equal(t, ir.KindContent, bike.Kind)
	assert.Equal(t, "alice", bike.Author)
	assert.Equal(t, "market", bike.Raw.Str(ir.FieldType))
	assert.NotEmpty(t, bike.ID)

	publish(t, db, "market", "bob", "--fields", `{"title":"lamp","status":"OPEN","price":12}`)

	out, err := execute(t, "--db", db, "--format", "json", "list", "market", "--order", "oldest")
	require.NoError(t, err)
	list := decodeResponse[[]EntityRow](t, out)
	require.Len(t, list.Data, 2)
	byOwner := map[string]EntityRow{}
	for _, row := range list.Data {
		byOwner[row.Owner] = row
	}
	assert.Equal(t, bike.ID, byOwner["alice"].Tip.ID)
	price, ok := byOwner["bob"].Tip.Fields().Int64("price")
	require.True(t, ok)
	assert.Equal(t, int64(12), price)

	out, err = execute(t, "--db", db, "--format", "json", "list", "market", "--author", "bob")
	require.NoError(t, err)
	assert.Len(t, decodeResponse[[]EntityRow](t, out).Data, 1)

	// Edits keep the entity key and replace the tip.
	out, err = execute(t, "--db", db, "--format", "json", "edit", "market", bike.ID, "--author", "alice", "--set", "status=SOLD")
	require.NoError(t, err, out)
	sold := decodeResponse[ir.Record](t, out).Data
	assert.Equal(t, bike.ID, sold.Raw.Str(ir.FieldReplaces))

	out, err = execute(t, "--db", db, "--format", "json", "get", "market", bike.ID)
	require.NoError(t, err)
	got := decodeResponse[EntityRow](t, out).Data
	assert.Equal(t, sold.ID, got.Tip.ID)
	assert.Equal(t, "alice", got.Owner)
	assert.Equal(t, 2, got.Members)

	out, err = execute(t, "--db", db, "--format", "json", "list", "market", "--status", "SOLD")
	require.NoError(t, err)
	assert.Len(t, decodeResponse[[]EntityRow](t, out).Data, 1)

	out, err = execute(t, "--db", db, "--format", "json", "history", "market", sold.ID)
	require.NoError(t, err)
	history := decodeResponse[[]ir.Record](t, out).Data
	require.Len(t, history, 2)
	assert.Equal(t, bike.ID, history[0].ID)
	assert.Equal(t, sold.ID, history[1].ID)

	out, err = execute(t, "--db", db, "--format", "json", "delete", "market", sold.ID, "--author", "alice")
	require.NoError(t, err, out)
	assert.Equal(t, ir.KindTombstone, decodeResponse[ir.Record](t, out).Data.Kind)

	out, err = execute(t, "--db", db, "--format", "json", "list", "market")
	require.NoError(t, err)
	assert.Len(t, decodeResponse[[]EntityRow](t, out).Data, 1)
}

func TestEntityCommandRejections(t *testing.T) {
	db := tempDB(t)
	bike := publish(t, db, "market", "alice", "--set", "status=SOLD")

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"status regression", []string{"edit", "market", bike.ID, "--author", "alice", "--set", "status=FOR_SALE"}, "STATUS_REGRESSION"},
		{"foreign edit", []string{"edit", "market", bike.ID, "--author", "bob", "--set", "status=SOLD"}, "PERMISSION_DENIED"},
		{"foreign delete", []string{"delete", "market", bike.ID, "--author", "bob"}, "PERMISSION_DENIED"},
		{"unknown id", []string{"get", "market", "nope"}, "NOT_FOUND"},
		{"unknown domain", []string{"list", "bazaar"}, "UNKNOWN_DOMAIN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"--db", db, "--format", "json"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			resp := decodeResponse[any](t, out)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestEntityCommandUsageErrors(t *testing.T) {
	db := tempDB(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"bad order", []string{"list", "market", "--order", "random"}, `invalid order "random"`},
		{"bad fields", []string{"publish", "market", "--author", "a", "--fields", "[1]"}, "invalid --fields JSON"},
		{"float field", []string{"publish", "market", "--author", "a", "--fields", `{"price":1.5}`}, "invalid --fields JSON"},
		{"bad set", []string{"publish", "market", "--author", "a", "--set", "status"}, `invalid --set "status"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"--db", db}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPublishRequiresAuthor(t *testing.T) {
	_, err := execute(t, "--db", tempDB(t), "publish", "market", "--set", "title=x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "author" not set`)
}

func TestListText(t *testing.T) {
	db := tempDB(t)

	out, err := execute(t, "--db", db, "list", "jobs")
	require.NoError(t, err)
	assert.Equal(t, "No entities.\n", out)

	publish(t, db, "jobs", "carol", "--set", "title=plumber", "--set", "status=OPEN")

	out, err = execute(t, "--db", db, "list", "jobs")
	require.NoError(t, err)
	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "carol")
	assert.Contains(t, out, `"title":"plumber"`)
}

func TestPublishText(t *testing.T) {
	out, err := execute(t, "--db", tempDB(t), "publish", "posts", "--author", "dave", "--set", "body=hi")
	require.NoError(t, err)
	assert.Contains(t, out, "Appended content record")
	assert.Contains(t, out, "(seq 1)")
}
