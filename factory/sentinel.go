package factory

import (
	"fmt"

	"github.com/google/uuid"
)

// Sentinel describes the canonical "unset" value of a field type.
//
// Value returns the unset value and Is reports whether a value equals it.
// Is(Value()) must always hold; tables refuse to build otherwise.
type Sentinel[T any] struct {
	Value func() T
	Is    func(T) bool
}

// Check reports ErrInvalidSentinel when the sentinel does not recognise its own value.
func (s Sentinel[T]) Check() error {
	if s.Value == nil || s.Is == nil {
		return fmt.Errorf("%w: incomplete sentinel for %T", ErrInvalidSentinel, *new(T))
	}
	if !s.Is(s.Value()) {
		return fmt.Errorf("%w: %T sentinel does not match its own value", ErrInvalidSentinel, *new(T))
	}
	return nil
}

// Comparable returns a sentinel whose unset value is v.
// Use it for user-defined identifier types:
//
//	type OrgID int64
//	var OrgIDSentinel = factory.Comparable(OrgID(0))
func Comparable[T comparable](v T) Sentinel[T] {
	return Sentinel[T]{
		Value: func() T { return v },
		Is:    func(x T) bool { return x == v },
	}
}

var (
	// Int64 treats 0 as unset.
	Int64 = Comparable[int64](0)

	// Int treats 0 as unset.
	Int = Comparable(0)

	// String treats the empty string as unset.
	String = Comparable("")

	// UUID treats uuid.Nil as unset.
	UUID = Comparable(uuid.Nil)
)

// Optional returns a sentinel for an absent optional value: a nil pointer.
func Optional[T any]() Sentinel[*T] {
	return Sentinel[*T]{
		Value: func() *T { return nil },
		Is:    func(p *T) bool { return p == nil },
	}
}

// OptionalOf is Optional, except a pointer to inner's unset value also counts as unset.
func OptionalOf[T any](inner Sentinel[T]) Sentinel[*T] {
	return Sentinel[*T]{
		Value: func() *T { return nil },
		Is:    func(p *T) bool { return p == nil || inner.Is(*p) },
	}
}
