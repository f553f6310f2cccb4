package sqlstore

import "errors"

var (
	// ErrUnknownDialect is returned by New for a Dialect it does not support.
	ErrUnknownDialect = errors.New("groundwork: unknown SQL dialect")

	// ErrNotRecord is returned when the adapter is handed something other than a schema.Record.
	ErrNotRecord = errors.New("groundwork: value is not a schema.Record")

	// ErrKeyNotReturned is returned when MySQL cannot report a generated key of a non-integer type.
	ErrKeyNotReturned = errors.New("groundwork: generated key cannot be read back")
)
