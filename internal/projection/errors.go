package projection

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes projection errors.
type ErrorCode string

const (
	// ErrCodeMalformedChain indicates a cycle in the replaces graph.
	ErrCodeMalformedChain ErrorCode = "MALFORMED_CHAIN"

	// ErrCodeInvalidPolicy indicates a policy that cannot drive the engine.
	ErrCodeInvalidPolicy ErrorCode = "INVALID_POLICY"

	// ErrCodeProbeFailed indicates an external existence probe failed.
	ErrCodeProbeFailed ErrorCode = "PROBE_FAILED"
)

// Error is a projection failure with structured fields for diagnostics.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// RecordID is the record the failing operation started from.
	RecordID string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RecordID != "" {
		msg += fmt.Sprintf(" (record=%s)", e.RecordID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewMalformedChainError reports a cycle reached from start at record at.
func NewMalformedChainError(start, at string, steps int) *Error {
	return &Error{
		Code:     ErrCodeMalformedChain,
		Message:  "replaces graph contains a cycle",
		RecordID: start,
		Details: map[string]string{
			"revisited": at,
			"steps":     fmt.Sprintf("%d", steps),
		},
	}
}

// NewPolicyError reports an unusable policy.
func NewPolicyError(policy, message string) *Error {
	return &Error{
		Code:    ErrCodeInvalidPolicy,
		Message: message,
		Details: map[string]string{"policy": policy},
	}
}

// IsMalformedChain returns true if err is a malformed chain error.
// Uses errors.As to handle wrapped errors.
func IsMalformedChain(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeMalformedChain
	}
	return false
}
