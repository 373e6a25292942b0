package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainRecord    = "strata/record/v1"
	DomainSignature = "strata/signature/v1"
	DomainSnapshot  = "strata/snapshot/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RecordID computes the content-addressed id of a record.
// seq is included so identical payloads appended twice get distinct ids.
func RecordID(author string, kind Kind, payload Object, timestamp, seq int64) (string, error) {
	obj := Object{
		"author":    String(author),
		"kind":      String(string(kind)),
		"payload":   payload,
		"timestamp": Int(timestamp),
		"seq":       Int(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RecordID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}

// SignatureHash computes a dedupe signature over a normalized tuple.
func SignatureHash(contentType string, parts Array) (string, error) {
	canonical, err := MarshalCanonical(Array{String(contentType), parts})
	if err != nil {
		return "", fmt.Errorf("SignatureHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSignature, canonical), nil
}

// SnapshotHash hashes an arbitrary canonical value, used to compare two
// projections of the same log for determinism.
func SnapshotHash(v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("SnapshotHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// MustRecordID is like RecordID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRecordID(author string, kind Kind, payload Object, timestamp, seq int64) string {
	id, err := RecordID(author, kind, payload, timestamp, seq)
	if err != nil {
		panic(err)
	}
	return id
}
