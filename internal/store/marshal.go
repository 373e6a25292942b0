package store

import (
	"fmt"

	"github.com/roach88/strata/internal/ir"
)

// marshalPayload converts a payload to canonical JSON TEXT for storage.
// Canonical form keeps the stored bytes identical to the hashed bytes.
func marshalPayload(payload ir.Object) (string, error) {
	if payload == nil {
		payload = ir.Object{}
	}
	data, err := ir.MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}
