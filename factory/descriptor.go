package factory

import (
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"
)

// Role says how the resolver and the builder treat a field.
type Role int

const (
	// Plain fields are copied as staged.
	Plain Role = iota

	// PrimaryIdentifier fields start at their sentinel and are normally filled by the backend.
	PrimaryIdentifier

	// RequiredReference fields are auto-created through their nested table when left unset.
	RequiredReference

	// OptionalReferenceNoAutocreate fields are never auto-created.
	OptionalReferenceNoAutocreate

	// RequiredPlain fields must be set, or carry a non-zero default, before a build succeeds.
	RequiredPlain
)

var roleNames = [...]string{
	Plain:                         "plain",
	PrimaryIdentifier:             "primary",
	RequiredReference:             "reference",
	OptionalReferenceNoAutocreate: "optional_reference",
	RequiredPlain:                 "required",
}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return fmt.Sprintf("Role(%d)", int(r))
	}
	return roleNames[r]
}

// IsReference reports whether the role holds a foreign key.
func (r Role) IsReference() bool {
	return r == RequiredReference || r == OptionalReferenceNoAutocreate
}

// ParseRole maps a role name ("plain", "primary", "reference",
// "optional_reference", "required") back to its Role.
func ParseRole(name string) (Role, error) {
	for i, n := range roleNames {
		if n == name {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown role %q", ErrInvalidTable, name)
}

// FieldDescriptor is the static metadata of one field of an entity builder.
// Build descriptors with the typed constructors (Field, Required, PrimaryKey,
// Ref, OptionalRef); a zero FieldDescriptor is rejected by NewTable.
type FieldDescriptor struct {
	Name string
	Role Role

	// Ref is set for reference roles.
	Ref *Reference

	typeName string
	initial  func() any
	coerce   func(any) (any, bool)
	unset    func(any) bool
	check    func() error
}

// Type returns the Go type name of the field's values.
func (f FieldDescriptor) Type() string { return f.typeName }

// Initial returns the value a fresh builder stages for this field.
func (f FieldDescriptor) Initial() any {
	if f.initial == nil {
		return nil
	}
	return f.initial()
}

// IsUnset reports whether v is the field's sentinel. Only identifier and
// reference fields have one; other fields are never unset.
func (f FieldDescriptor) IsUnset(v any) bool {
	if f.unset == nil {
		return false
	}
	return f.unset(v)
}

// Reference describes what a reference field points at.
type Reference struct {
	// Entity names the dependency entity.
	Entity string

	// Field names the dependency's identifying field, when known.
	Field string

	nested  nested
	extract func(any) (any, bool)
}

// Field declares a plain field holding T's zero value until set.
func Field[T any](name string) FieldDescriptor {
	return FieldDefault(name, zeroOf[T])
}

// FieldDefault declares a plain field initialised from def.
func FieldDefault[T any](name string, def func() T) FieldDescriptor {
	return typed(name, Plain, def)
}

// Required declares a field that must be explicitly set before a build succeeds.
func Required[T any](name string) FieldDescriptor {
	return RequiredDefault(name, zeroOf[T])
}

// RequiredDefault declares a required field initialised from def.
// A non-zero default satisfies the requirement, which lets the field's entity be
// auto-created as a dependency.
func RequiredDefault[T any](name string, def func() T) FieldDescriptor {
	return typed(name, RequiredPlain, def)
}

// PrimaryKey declares the entity's identifier, initialised to the sentinel.
func PrimaryKey[T any](name string, s Sentinel[T]) FieldDescriptor {
	f := typed(name, PrimaryIdentifier, s.Value)
	f.unset = unsetBy(s)
	f.check = s.Check
	return f
}

// Ref declares a required reference: when the field still holds the sentinel at
// resolution time, nested creates the dependency and id copies its identifying
// field in.
func Ref[T, D any](name string, s Sentinel[T], nested *Table[D], id func(D) T) FieldDescriptor {
	f := typed(name, RequiredReference, s.Value)
	f.unset = unsetBy(s)
	f.check = s.Check
	f.Ref = reference(nested, func(d D) any { return id(d) })
	return f
}

// OptionalRef declares a nullable reference (*T) that is never auto-created.
// nested only names the dependency and may be nil.
func OptionalRef[T, D any](name string, nested *Table[D], id func(D) T) FieldDescriptor {
	s := Optional[T]()
	f := typed(name, OptionalReferenceNoAutocreate, s.Value)
	f.unset = unsetBy(s)
	f.check = s.Check
	f.Ref = reference(nested, func(d D) any {
		v := id(d)
		return &v
	})
	return f
}

// OptionalRefTo is OptionalRef for a dependency named by entity and field
// rather than by its table, as needed for self references.
func OptionalRefTo[T, D any](name, entity, field string, id func(D) T) FieldDescriptor {
	f := OptionalRef(name, (*Table[D])(nil), id)
	f.Ref.Entity = entity
	f.Ref.Field = field
	return f
}

func reference[D any](nested *Table[D], id func(D) any) *Reference {
	r := &Reference{
		Entity: EntityType(*new(D)),
		extract: func(v any) (any, bool) {
			d, ok := v.(D)
			if !ok {
				return nil, false
			}
			return id(d), true
		},
	}
	if nested != nil {
		r.Entity = nested.Entity()
		r.Field = nested.primaryKey()
		r.nested = nested
	}
	return r
}

// Sequence returns a default generator handing fn 1, 2, 3, ... on successive calls.
// It is safe for concurrent use.
func Sequence[T any](fn func(n int64) T) func() T {
	var n atomic.Int64
	return func() T { return fn(n.Add(1)) }
}

// ReferenceAlias returns the shorthand a reference field is also addressable by:
// "blog_id" -> "blog", "procedure_id_origin" -> "procedure_origin".
// It returns "" when the name has no "_id" part.
func ReferenceAlias(field string) string {
	if stripped, ok := strings.CutSuffix(field, "_id"); ok && stripped != "" {
		return stripped
	}
	if strings.Contains(field, "_id_") {
		return strings.Replace(field, "_id_", "_", 1)
	}
	return ""
}

func typed[T any](name string, role Role, initial func() T) FieldDescriptor {
	return FieldDescriptor{
		Name:     name,
		Role:     role,
		typeName: reflect.TypeFor[T]().String(),
		initial:  func() any { return initial() },
		coerce:   coerceValue[T],
	}
}

func zeroOf[T any]() T {
	var zero T
	return zero
}

func unsetBy[T any](s Sentinel[T]) func(any) bool {
	return func(v any) bool {
		x, ok := coerceTo[T](v)
		if !ok {
			return false
		}
		t, _ := x.(T)
		return s.Is(t)
	}
}

// coerceTo accepts T itself, untyped nil for nilable T, and numeric values
// that convert to a numeric T without loss (so With("count", 3) works for an
// int64 field but With("count", 3.5) does not).
func coerceTo[T any](v any) (any, bool) {
	if x, ok := v.(T); ok {
		return x, true
	}
	target := reflect.TypeFor[T]()
	if v == nil {
		if nilable(target) {
			var zero T
			return zero, true
		}
		return nil, false
	}
	x, ok := convert(reflect.ValueOf(v), target)
	if !ok {
		return nil, false
	}
	return x.Interface(), true
}

// coerceValue is coerceTo, except a pointer field *E also accepts anything
// that coerces to E and stores a pointer to it.
func coerceValue[T any](v any) (any, bool) {
	if x, ok := coerceTo[T](v); ok {
		return x, true
	}
	target := reflect.TypeFor[T]()
	if v == nil || target.Kind() != reflect.Pointer {
		return nil, false
	}
	x, ok := convert(reflect.ValueOf(v), target.Elem())
	if !ok {
		return nil, false
	}
	p := reflect.New(target.Elem())
	p.Elem().Set(x)
	return p.Interface(), true
}

func convert(rv reflect.Value, target reflect.Type) (reflect.Value, bool) {
	if rv.Type().AssignableTo(target) {
		return rv, true
	}
	if !numeric(rv.Kind()) || !numeric(target.Kind()) {
		return reflect.Value{}, false
	}
	x := rv.Convert(target)
	if negative(x) != negative(rv) || !x.Convert(rv.Type()).Equal(rv) {
		return reflect.Value{}, false
	}
	return x, true
}

func negative(v reflect.Value) bool {
	switch {
	case v.CanInt():
		return v.Int() < 0
	case v.CanFloat():
		return v.Float() < 0
	}
	return false
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

func numeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isZero(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}
