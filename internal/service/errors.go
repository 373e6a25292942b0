package service

import (
	"errors"
	"fmt"

	"github.com/roach88/strata/internal/election"
	"github.com/roach88/strata/internal/projection"
)

var (
	// ErrNotFound is returned when no visible entity contains the id.
	ErrNotFound = errors.New("entity not found")

	// ErrUnknownDomain is returned for a domain with no policy.
	ErrUnknownDomain = errors.New("unknown domain")

	// ErrStatusRegression is returned when an edit would lower the status
	// rank of an entity in a ranked domain.
	ErrStatusRegression = errors.New("status regression")

	// ErrNotGoverned is returned for election operations on a domain
	// without governance settings.
	ErrNotGoverned = errors.New("domain has no governance")
)

// PermissionError rejects a mutation by someone other than the owner.
type PermissionError struct {
	Action string
	Author string
	Owner  string
	Entity string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s cannot %s %s owned by %s", e.Author, e.Action, e.Entity, e.Owner)
}

// IsPermission returns true if err is a permission error.
// Uses errors.As to handle wrapped errors.
func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// Error codes reported by API surfaces for service failures.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeUnknownDomain     = "UNKNOWN_DOMAIN"
	CodeNotGoverned       = "NOT_GOVERNED"
	CodePermissionDenied  = "PERMISSION_DENIED"
	CodeStatusRegression  = "STATUS_REGRESSION"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeInternal          = "INTERNAL"
)

// Code classifies err into one of the Code constants or a projection
// error code.
func Code(err error) string {
	var (
		te *election.TransitionError
		pe *projection.Error
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrUnknownDomain):
		return CodeUnknownDomain
	case errors.Is(err, ErrNotGoverned):
		return CodeNotGoverned
	case IsPermission(err):
		return CodePermissionDenied
	case errors.Is(err, ErrStatusRegression):
		return CodeStatusRegression
	case errors.As(err, &te):
		return CodeInvalidTransition
	case errors.As(err, &pe):
		return string(pe.Code)
	}
	return CodeInternal
}
