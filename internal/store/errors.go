package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is the generic version of the entity-specific not found errors
	// (e.g., ErrStoryNotFound, ErrPageNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity violates a storage
	// constraint (foreign key, check, not-null). Check the wrapped error
	// for details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a database transaction fails
	// to begin or commit.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors

	// ErrStoryNotFound indicates that the requested story does not exist in the store.
	ErrStoryNotFound = fmt.Errorf("%w: story", ErrNotFound)

	// ErrPageNotFound indicates that the requested page does not exist in the store.
	ErrPageNotFound = fmt.Errorf("%w: page", ErrNotFound)
)

// NotFoundError is a typed "not found" failure carrying the entity type
// name and the lookup key(s) that produced no match. It wraps ErrNotFound
// so errors.Is(err, ErrNotFound) holds.
type NotFoundError struct {
	// Entity is the entity type name, e.g. "Story".
	Entity string
	// Key holds the lookup keys and values, e.g. {"id": 999999}.
	Key map[string]any
}

// Error implements the error interface for NotFoundError.
// Keys are rendered in sorted order so messages are deterministic.
func (e *NotFoundError) Error() string {
	keys := make([]string, 0, len(e.Key))
	for k := range e.Key {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Key[k]))
	}
	return fmt.Sprintf("%s with %s not found", e.Entity, strings.Join(parts, ", "))
}

// Unwrap returns ErrNotFound to support errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a NotFoundError for the given entity type and
// lookup keys.
func NewNotFoundError(entity string, key map[string]any) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: key}
}

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is a duplicate-entity error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
