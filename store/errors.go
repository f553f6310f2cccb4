package store

import "errors"

var (
	// ErrParentNotFound is returned when a fixture's parent is missing or deleted.
	ErrParentNotFound = errors.New("groundwork: parent entity not found")

	// ErrNotFound is returned when an entity is missing or deleted (TTL <= now).
	ErrNotFound = errors.New("groundwork: entity not found")

	// ErrAlreadyExists is returned when a fixture's identifier is already taken.
	ErrAlreadyExists = errors.New("groundwork: entity already exists")

	// ErrHasChildren is returned when deleting a fixture that still has active dependents.
	ErrHasChildren = errors.New("groundwork: entity has active children")

	// ErrDuplicateValue is returned when a unique constraint is violated.
	ErrDuplicateValue = errors.New("groundwork: duplicate value for unique field")

	// ErrNotEntity is returned when the adapter is handed a value that is not an Entity.
	ErrNotEntity = errors.New("groundwork: value does not implement store.Entity")
)
