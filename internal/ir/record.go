package ir

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates record payloads.
type Kind string

const (
	// KindContent records create or supersede entity versions.
	KindContent Kind = "content"

	// KindTombstone records mark another record id as deleted.
	KindTombstone Kind = "tombstone"
)

// Reserved payload field names.
const (
	FieldType     = "type"
	FieldReplaces = "replaces"
	FieldTarget   = "target"
)

// Record is an immutable unit of the append-only log.
type Record struct {
	ID        string  `json:"id"`        // Content-addressed hash
	Author    string  `json:"author"`    // Publisher identity
	Seq       int64   `json:"seq"`       // Store append order
	Timestamp int64   `json:"timestamp"` // Milliseconds, monotonic per author
	Kind      Kind    `json:"kind"`
	Payload   Payload `json:"-"`         // Decoded view of Raw
	Raw       Object  `json:"payload"`   // Payload as stored
}

// Draft is a record before the store assigns id, seq and timestamp.
type Draft struct {
	Author  string
	Kind    Kind
	Payload Object
}

// Payload is the sealed tagged union of decoded record payloads.
// Only Content, Tombstone and Opaque implement it.
type Payload interface {
	payload()
}

// Content is the payload of a content record.
type Content struct {
	Type     string // Content type, e.g. "market", "post"
	Replaces string // Superseded record id, empty for a new entity
	Fields   Object // Full payload including reserved fields
}

func (Content) payload() {}

// Tombstone is the payload of a tombstone record.
type Tombstone struct {
	Target string
}

func (Tombstone) payload() {}

// Opaque holds payloads the engine does not understand.
// Historic writers used older schemas; these records are skipped, never fatal.
type Opaque struct {
	Reason string
	Raw    Object
}

func (Opaque) payload() {}

// DecodePayload maps a kind and raw payload onto the tagged union.
// It never fails: anything malformed becomes Opaque.
func DecodePayload(kind Kind, raw Object) Payload {
	switch kind {
	case KindContent:
		typ := raw.Str(FieldType)
		if typ == "" {
			return Opaque{Reason: "content without type", Raw: raw}
		}
		if _, ok := raw[FieldReplaces]; ok && raw.Str(FieldReplaces) == "" {
			return Opaque{Reason: "replaces is not a non-empty string", Raw: raw}
		}
		return Content{Type: typ, Replaces: raw.Str(FieldReplaces), Fields: raw}
	case KindTombstone:
		target := raw.Str(FieldTarget)
		if target == "" {
			return Opaque{Reason: "tombstone without target", Raw: raw}
		}
		return Tombstone{Target: target}
	default:
		return Opaque{Reason: fmt.Sprintf("unknown kind %q", kind), Raw: raw}
	}
}

// DecodeRaw parses stored payload JSON. Garbage yields an Opaque payload and
// an empty object rather than an error.
func DecodeRaw(kind Kind, data []byte) (Object, Payload) {
	var obj Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return Object{}, Opaque{Reason: fmt.Sprintf("undecodable payload: %v", err)}
	}
	return obj, DecodePayload(kind, obj)
}

// Content returns the content payload and whether the record carries one.
func (r Record) Content() (Content, bool) {
	c, ok := r.Payload.(Content)
	return c, ok
}

// Fields returns the content fields, or nil for non-content records.
func (r Record) Fields() Object {
	if c, ok := r.Content(); ok {
		return c.Fields
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for Record.
// Payload is rebuilt from the decoded raw payload.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Record(p)
	r.Payload = DecodePayload(r.Kind, r.Raw)
	return nil
}

// NewContent builds a content draft payload from type, replaces and fields.
// Reserved keys in fields are overwritten.
func NewContent(typ, replaces string, fields Object) Object {
	obj := fields.Clone()
	obj[FieldType] = String(typ)
	delete(obj, FieldReplaces)
	if replaces != "" {
		obj[FieldReplaces] = String(replaces)
	}
	return obj
}

// NewTombstone builds a tombstone draft payload.
func NewTombstone(target string) Object {
	return Object{FieldTarget: String(target)}
}
