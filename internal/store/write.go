package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/strata/internal/ir"
)

// Append publishes a new immutable record and returns it with its assigned
// id, seq and timestamp.
//
// The payload is serialized to canonical JSON per RFC 8785; the returned
// record is decoded from exactly those bytes, so it is identical to what a
// subsequent Scan yields.
//
// Append commits before returning: a Scan issued after Append returns always
// observes the new record.
func (s *Store) Append(ctx context.Context, d ir.Draft) (ir.Record, error) {
	if d.Author == "" {
		return ir.Record{}, fmt.Errorf("append: author is required")
	}
	if d.Kind == "" {
		return ir.Record{}, fmt.Errorf("append: kind is required")
	}

	payloadJSON, err := marshalPayload(d.Payload)
	if err != nil {
		return ir.Record{}, fmt.Errorf("append: %w", err)
	}
	raw, payload := ir.DecodeRaw(d.Kind, []byte(payloadJSON))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.Record{}, fmt.Errorf("append: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM records`).Scan(&seq); err != nil {
		return ir.Record{}, fmt.Errorf("append: next seq: %w", err)
	}

	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(timestamp) FROM records WHERE author = ?`, d.Author,
	).Scan(&last); err != nil {
		return ir.Record{}, fmt.Errorf("append: last timestamp: %w", err)
	}

	ts := s.clock.Now().UnixMilli()
	if last.Valid && ts <= last.Int64 {
		ts = last.Int64 + 1
	}

	id, err := ir.RecordID(d.Author, d.Kind, raw, ts, seq)
	if err != nil {
		return ir.Record{}, fmt.Errorf("append: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (seq, id, author, timestamp, kind, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, seq, id, d.Author, ts, string(d.Kind), payloadJSON)
	if err != nil {
		return ir.Record{}, fmt.Errorf("append: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ir.Record{}, fmt.Errorf("append: commit: %w", err)
	}

	return ir.Record{
		ID:        id,
		Author:    d.Author,
		Seq:       seq,
		Timestamp: ts,
		Kind:      d.Kind,
		Payload:   payload,
		Raw:       raw,
	}, nil
}

// PutBlob registers a blob reference as present. Idempotent.
func (s *Store) PutBlob(ctx context.Context, ref string, size int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (ref, size) VALUES (?, ?)
		ON CONFLICT(ref) DO NOTHING
	`, ref, size)
	if err != nil {
		return fmt.Errorf("put blob: %w", err)
	}
	return nil
}

// SetReputation records the external reputation score for an author.
func (s *Store) SetReputation(ctx context.Context, author string, score int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reputation (author, score) VALUES (?, ?)
		ON CONFLICT(author) DO UPDATE SET score = excluded.score
	`, author, score)
	if err != nil {
		return fmt.Errorf("set reputation: %w", err)
	}
	return nil
}
