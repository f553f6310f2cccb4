package factory

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingRequiredField is returned when a required field was never set.
	ErrMissingRequiredField = errors.New("groundwork: missing required field")

	// ErrInvalidSentinel is returned when a sentinel does not recognise its own value.
	ErrInvalidSentinel = errors.New("groundwork: invalid sentinel")

	// ErrInvalidTable is returned when a descriptor table is misdeclared.
	ErrInvalidTable = errors.New("groundwork: invalid descriptor table")

	// ErrDuplicateField is returned when a table declares the same field twice.
	ErrDuplicateField = errors.New("groundwork: duplicate field")

	// ErrUnknownField is returned when a builder is given a field its table does not declare.
	ErrUnknownField = errors.New("groundwork: unknown field")

	// ErrFieldType is returned when a value does not fit the field's type.
	ErrFieldType = errors.New("groundwork: wrong type for field")

	// ErrNotReference is returned when a reference setter targets a non-reference field.
	ErrNotReference = errors.New("groundwork: field is not a reference")

	// ErrUnexpectedEntity is returned when an adapter hands back a value of the wrong type.
	ErrUnexpectedEntity = errors.New("groundwork: adapter returned unexpected entity type")

	// ErrNoHandler is returned by a Mux asked to persist a type nobody registered.
	ErrNoHandler = errors.New("groundwork: no persist handler for entity")
)

// MissingFieldError names the required field that was left unset.
type MissingFieldError struct {
	Entity string
	Field  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("groundwork: %s.%s is required - set it with With(%q, ...)", e.Entity, e.Field, e.Field)
}

// Is makes errors.Is(err, ErrMissingRequiredField) hold.
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingRequiredField
}

// PersistError wraps the failure an adapter reported while persisting one entity.
//
// It is created once, where the adapter was called, and returned unchanged by
// every enclosing resolution.
type PersistError struct {
	Entity string
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("groundwork: persist %s: %v", e.Entity, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
