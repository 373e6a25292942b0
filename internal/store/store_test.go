package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/ir"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	for _, table := range []string{"records", "blobs", "reputation"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found after idempotent opens", table)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	assert.Error(t, err)
}

func TestOpen_Pragmas(t *testing.T) {
	s, _ := createTestStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	assert.NoError(t, s.Close())
}

func TestAppend_AssignsIdentity(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	rec, err := s.Append(ctx, ir.Draft{
		Author:  "alice",
		Kind:    ir.KindContent,
		Payload: ir.NewContent("post", "", ir.Object{"text": ir.String("hello")}),
	})
	require.NoError(t, err)

	assert.Len(t, rec.ID, 64)
	assert.Equal(t, int64(1), rec.Seq)
	assert.Equal(t, int64(1001), rec.Timestamp)
	assert.Equal(t, "alice", rec.Author)

	c, ok := rec.Content()
	require.True(t, ok)
	assert.Equal(t, "post", c.Type)

	want := ir.MustRecordID("alice", ir.KindContent, rec.Raw, rec.Timestamp, rec.Seq)
	assert.Equal(t, want, rec.ID, "id must be content-addressed")
}

func TestAppend_Validation(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, ir.Draft{Kind: ir.KindContent})
	assert.Error(t, err)

	_, err = s.Append(ctx, ir.Draft{Author: "alice"})
	assert.Error(t, err)

	_, err = s.Append(ctx, ir.Draft{Author: "alice", Kind: ir.KindContent, Payload: ir.Object{"x": ir.Null{}}})
	assert.Error(t, err, "null payload values are not canonical")
}

func TestAppend_MonotonicPerAuthor(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	first, err := s.Append(ctx, ir.Draft{Author: "alice", Kind: ir.KindTombstone, Payload: ir.NewTombstone("x")})
	require.NoError(t, err)

	// Clock skews backwards; alice's next record must still be later.
	clock.Set(10)
	second, err := s.Append(ctx, ir.Draft{Author: "alice", Kind: ir.KindTombstone, Payload: ir.NewTombstone("y")})
	require.NoError(t, err)
	assert.Equal(t, first.Timestamp+1, second.Timestamp)

	// Another author is unaffected by alice's history.
	other, err := s.Append(ctx, ir.Draft{Author: "bob", Kind: ir.KindTombstone, Payload: ir.NewTombstone("z")})
	require.NoError(t, err)
	assert.Equal(t, int64(12), other.Timestamp)
}

func TestScan_OrderAndRoundTrip(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	var appended []ir.Record
	for _, author := range []string{"alice", "bob", "carol"} {
		rec, err := s.Append(ctx, ir.Draft{
			Author:  author,
			Kind:    ir.KindContent,
			Payload: ir.NewContent("post", "", ir.Object{"by": ir.String(author)}),
		})
		require.NoError(t, err)
		appended = append(appended, rec)
	}

	scanned, err := s.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, appended, scanned)
}

func TestScan_EmptyLog(t *testing.T) {
	s, _ := createTestStore(t)

	recs, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestScan_GarbagePayloadIsOpaque(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(`INSERT INTO records (seq, id, author, timestamp, kind, payload)
		VALUES (1, 'legacy', 'old-client', 5, 'content', '{broken')`)
	require.NoError(t, err)

	recs, err := s.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	_, ok := recs[0].Payload.(ir.Opaque)
	assert.True(t, ok)
}

func TestScanWindow(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Append(ctx, ir.Draft{Author: "alice", Kind: ir.KindTombstone, Payload: ir.NewTombstone("t")})
		require.NoError(t, err)
	}

	recs, err := s.ScanWindow(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(3), recs[0].Seq)
	assert.Equal(t, int64(4), recs[1].Seq)

	head, err := s.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), head)
}

func TestReadRecord_NotFound(t *testing.T) {
	s, _ := createTestStore(t)
	_, err := s.ReadRecord(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestBlobs(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	ok, err := s.BlobExists(ctx, "&blob1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.PutBlob(ctx, "&blob1", 12))
	require.NoError(t, s.PutBlob(ctx, "&blob1", 12), "PutBlob is idempotent")

	ok, err = s.BlobExists(ctx, "&blob1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReputationAndFirstActivity(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	score, err := s.ReputationScore(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), score)

	require.NoError(t, s.SetReputation(ctx, "alice", 10))
	require.NoError(t, s.SetReputation(ctx, "alice", 15))
	score, err = s.ReputationScore(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(15), score)

	_, ok, err := s.FirstActivity(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	rec, err := s.Append(ctx, ir.Draft{Author: "alice", Kind: ir.KindTombstone, Payload: ir.NewTombstone("x")})
	require.NoError(t, err)
	_, err = s.Append(ctx, ir.Draft{Author: "alice", Kind: ir.KindTombstone, Payload: ir.NewTombstone("y")})
	require.NoError(t, err)

	ts, ok, err := s.FirstActivity(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, rec.Timestamp, ts)
}
