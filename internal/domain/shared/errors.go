// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")

	// Invariant errors. An invariant violation is a bug in the engine,
	// never something to repair silently.
	ErrInvariantViolation = errors.New("invariant violation")
	ErrOverflow           = errors.New("arithmetic overflow")

	// Persistence errors
	ErrPersistence = errors.New("persistence failure")
	ErrStoreClosed = errors.New("store is closed")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progress", "economy", "achievement"
	Op      string // Operation that failed, e.g., "RecordCompletion", "SpendGems"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// NewInvariantError reports a broken aggregate invariant. Callers are
// expected to abort the current mutation and surface this loudly.
func NewInvariantError(domain, op, message string) *DomainError {
	return NewDomainError(domain, op, ErrInvariantViolation, message)
}

// NewPersistenceError wraps a storage error. The mutation that caused it
// must be rolled back before this is returned to the caller.
func NewPersistenceError(domain, op string, err error) *DomainError {
	return WrapError(domain, op, ErrPersistence, "failed to persist state", err)
}

// Progress domain errors
var (
	ErrInvalidDifficulty = NewDomainError("progress", "Validate", ErrInvalidInput, "invalid difficulty")
	ErrInvalidBugID      = NewDomainError("progress", "Validate", ErrInvalidID, "invalid bug ID")
	ErrNegativeHints     = NewDomainError("progress", "Validate", ErrValueOutOfRange, "hints used cannot be negative")
	ErrXPOverflow        = NewDomainError("progress", "GainXP", ErrOverflow, "xp counter overflow")
	ErrProgressCorrupted = NewDomainError("progress", "Load", ErrInvariantViolation, "progress state is corrupted")
)

// Economy domain errors
var (
	ErrInvalidConsumable = NewDomainError("economy", "Validate", ErrInvalidInput, "unknown consumable kind")
	ErrInvalidGrant      = NewDomainError("economy", "GrantGems", ErrInvalidInput, "grant amount must be positive")
	ErrGemOverflow       = NewDomainError("economy", "GrantGems", ErrOverflow, "gem balance overflow")
	ErrShieldCapReached  = NewDomainError("economy", "GrantConsumable", ErrValueOutOfRange, "streak shield charge cap reached")
	ErrUnknownItem       = NewDomainError("economy", "Purchase", ErrNotFound, "item is not sold in the shop")
)

// Achievement domain errors
var (
	ErrCatalogCorrupted = NewDomainError("achievement", "Validate", ErrInvariantViolation, "achievement catalog is corrupted")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsInvariantViolation checks if the error reports a broken invariant.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}

// IsPersistence checks if the error came from the durable store.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence) || errors.Is(err, ErrStoreClosed)
}
