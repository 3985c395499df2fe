package kv

import (
	"errors"
	"fmt"
)

// Sentinel errors for store operations.
var (
	// ErrInvalidEntry is matched by every *ValidationError.
	ErrInvalidEntry = errors.New("invalid entry")

	// ErrDuplicateKey is returned when inserting a key that already exists.
	ErrDuplicateKey = errors.New("key already exists")

	// ErrQuotaExceeded is returned when a growing operation would take the
	// store past its capacity.
	ErrQuotaExceeded = errors.New("store quota exceeded")

	// ErrNotFound is returned when the key is not present.
	ErrNotFound = errors.New("key not found")
)

// Error kinds as reported on the wire.
const (
	KindValidation    = "validation"
	KindDuplicateKey  = "duplicate_key"
	KindQuotaExceeded = "quota_exceeded"
	KindNotFound      = "not_found"
	KindInternal      = "internal"
)

// ValidationError is returned when a request field is missing or has the
// wrong type.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidEntry
}

// Kind maps an error to its wire kind. Errors outside the store taxonomy are
// reported as KindInternal.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidEntry):
		return KindValidation
	case errors.Is(err, ErrDuplicateKey):
		return KindDuplicateKey
	case errors.Is(err, ErrQuotaExceeded):
		return KindQuotaExceeded
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}

// ErrorForKind is the inverse of Kind, returning the sentinel for a wire kind,
// or nil if the kind is unknown.
func ErrorForKind(kind string) error {
	switch kind {
	case KindValidation:
		return ErrInvalidEntry
	case KindDuplicateKey:
		return ErrDuplicateKey
	case KindQuotaExceeded:
		return ErrQuotaExceeded
	case KindNotFound:
		return ErrNotFound
	default:
		return nil
	}
}
