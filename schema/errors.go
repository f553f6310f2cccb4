package schema

import "errors"

var (
	// ErrInvalidSchema is returned for structurally broken documents.
	ErrInvalidSchema = errors.New("groundwork: invalid schema")

	// ErrUnknownType is returned for a field type other than int, string, bool, float or uuid.
	ErrUnknownType = errors.New("groundwork: unknown field type")

	// ErrUnknownEntity is returned when a name does not match any declared entity.
	ErrUnknownEntity = errors.New("groundwork: unknown entity")

	// ErrDuplicateEntity is returned when two entities share a name.
	ErrDuplicateEntity = errors.New("groundwork: duplicate entity")

	// ErrBadReference is returned for malformed or mismatched references.
	ErrBadReference = errors.New("groundwork: bad reference")

	// ErrInvalidDefault is returned when a default or sequence does not fit the field type.
	ErrInvalidDefault = errors.New("groundwork: invalid default")

	// ErrReferenceCycle is returned when required references loop back on themselves.
	ErrReferenceCycle = errors.New("groundwork: reference cycle")
)
