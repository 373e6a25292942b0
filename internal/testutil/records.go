package testutil

import (
	"github.com/roach88/strata/internal/ir"
)

// LogBuilder assembles an in-memory record log with readable ids.
//
// Projection tests reason about records by name ("A", "B") and explicit
// timestamps; the builder assigns seq in call order and decodes payloads the
// same way the store does.
type LogBuilder struct {
	records []ir.Record
}

// NewLog creates an empty builder.
func NewLog() *LogBuilder {
	return &LogBuilder{}
}

// Content appends a content record. replaces may be empty.
func (b *LogBuilder) Content(id, author string, ts int64, typ, replaces string, fields ir.Object) *LogBuilder {
	if fields == nil {
		fields = ir.Object{}
	}
	return b.Raw(id, author, ts, ir.KindContent, ir.NewContent(typ, replaces, fields))
}

// Tombstone appends a tombstone record targeting target.
func (b *LogBuilder) Tombstone(id, author string, ts int64, target string) *LogBuilder {
	return b.Raw(id, author, ts, ir.KindTombstone, ir.NewTombstone(target))
}

// Raw appends a record with an arbitrary kind and payload.
func (b *LogBuilder) Raw(id, author string, ts int64, kind ir.Kind, payload ir.Object) *LogBuilder {
	b.records = append(b.records, ir.Record{
		ID:        id,
		Author:    author,
		Seq:       int64(len(b.records) + 1),
		Timestamp: ts,
		Kind:      kind,
		Payload:   ir.DecodePayload(kind, payload),
		Raw:       payload,
	})
	return b
}

// Records returns a copy of the built log.
func (b *LogBuilder) Records() []ir.Record {
	out := make([]ir.Record, len(b.records))
	copy(out, b.records)
	return out
}

// Fields is a shorthand for building payload objects from string pairs.
// Example: Fields("status", "SOLD", "title", "bike")
func Fields(kv ...string) ir.Object {
	obj := make(ir.Object, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		obj[kv[i]] = ir.String(kv[i+1])
	}
	return obj
}
