package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/strata/internal/ir"
)

// Scan returns every record with deterministic ordering:
// ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Records whose stored payload cannot be decoded are returned with an Opaque
// payload rather than failing the scan. Returns an empty slice (not nil) for
// an empty log.
func (s *Store) Scan(ctx context.Context) ([]ir.Record, error) {
	return s.ScanWindow(ctx, 0, 0)
}

// ScanWindow returns records with seq > afterSeq, at most limit of them
// (limit <= 0 means unbounded). Ordering is the same as Scan.
func (s *Store) ScanWindow(ctx context.Context, afterSeq int64, limit int) ([]ir.Record, error) {
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT is unbounded
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, author, timestamp, kind, payload
		FROM records
		WHERE seq > ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
		LIMIT ?
	`, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []ir.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// ReadRecord retrieves a single record by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRecord(ctx context.Context, id string) (ir.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, id, author, timestamp, kind, payload
		FROM records
		WHERE id = ?
	`, id)
	return scanRecord(row)
}

// Head returns the highest seq in the log, 0 when empty.
func (s *Store) Head(ctx context.Context) (int64, error) {
	var head int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM records`).Scan(&head); err != nil {
		return 0, fmt.Errorf("read head: %w", err)
	}
	return head, nil
}

// BlobExists reports whether a blob reference is present.
func (s *Store) BlobExists(ctx context.Context, ref string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blobs WHERE ref = ?`, ref).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("probe blob: %w", err)
	}
	return n > 0, nil
}

// ReputationScore returns the author's reputation, 0 when unknown.
func (s *Store) ReputationScore(ctx context.Context, author string) (int64, error) {
	var score int64
	err := s.db.QueryRowContext(ctx, `SELECT score FROM reputation WHERE author = ?`, author).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read reputation: %w", err)
	}
	return score, nil
}

// FirstActivity returns the timestamp of the author's first record.
// ok is false when the author has never published.
func (s *Store) FirstActivity(ctx context.Context, author string) (ts int64, ok bool, err error) {
	var first sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		`SELECT MIN(timestamp) FROM records WHERE author = ?`, author,
	).Scan(&first)
	if err != nil {
		return 0, false, fmt.Errorf("read first activity: %w", err)
	}
	return first.Int64, first.Valid, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a row into a Record. Payload decode failures are not
// errors: they produce an Opaque payload and a warning.
func scanRecord(row rowScanner) (ir.Record, error) {
	var rec ir.Record
	var kind, payloadJSON string

	if err := row.Scan(&rec.Seq, &rec.ID, &rec.Author, &rec.Timestamp, &kind, &payloadJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.Record{}, err
		}
		return ir.Record{}, fmt.Errorf("scan record: %w", err)
	}

	rec.Kind = ir.Kind(kind)
	rec.Raw, rec.Payload = ir.DecodeRaw(rec.Kind, []byte(payloadJSON))
	if op, ok := rec.Payload.(ir.Opaque); ok && op.Raw == nil {
		slog.Warn("undecodable record payload", "id", rec.ID, "seq", rec.Seq, "reason", op.Reason)
	}
	return rec, nil
}
