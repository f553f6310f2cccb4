package factory

import (
	"context"
	"fmt"
	"maps"
)

// Values holds the staged field values of one builder, keyed by field name.
type Values map[string]any

// Get returns the value of field name as T, or T's zero value when it is
// absent or of another type.
func Get[T any](v Values, name string) T {
	x, _ := v[name].(T)
	return x
}

// Describer is the type-erased view of a table.
type Describer interface {
	Entity() string
	Fields() []FieldDescriptor
}

// nested is how a reference reaches the table of its dependency.
type nested interface {
	Entity() string
	create(ctx context.Context, a Adapter) (any, error)
	primaryKey() string
}

// Table is the immutable field descriptor table of one entity type E.
// Tables are safe for concurrent use; builders created from them are not.
type Table[E any] struct {
	entity  string
	fields  []FieldDescriptor
	index   map[string]int
	aliases map[string]int
	compose func(Values) E
}

// NewTable validates fields and returns the table for entity.
// compose turns the final values into an E.
func NewTable[E any](entity string, compose func(Values) E, fields ...FieldDescriptor) (*Table[E], error) {
	if entity == "" {
		return nil, fmt.Errorf("%w: empty entity name", ErrInvalidTable)
	}
	if compose == nil {
		return nil, fmt.Errorf("%w: %s has no compose function", ErrInvalidTable, entity)
	}

	t := &Table[E]{
		entity:  entity,
		fields:  make([]FieldDescriptor, len(fields)),
		index:   make(map[string]int, len(fields)),
		aliases: make(map[string]int),
		compose: compose,
	}
	copy(t.fields, fields)

	for i, f := range t.fields {
		if err := checkField(entity, f); err != nil {
			return nil, err
		}
		if _, dup := t.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: %s.%s", ErrDuplicateField, entity, f.Name)
		}
		t.index[f.Name] = i
	}

	// Aliases never shadow a real field, and ambiguous aliases are dropped.
	ambiguous := make(map[string]bool)
	for i, f := range t.fields {
		if !f.Role.IsReference() {
			continue
		}
		alias := ReferenceAlias(f.Name)
		if alias == "" {
			continue
		}
		if _, real := t.index[alias]; real {
			continue
		}
		if _, taken := t.aliases[alias]; taken {
			ambiguous[alias] = true
			continue
		}
		t.aliases[alias] = i
	}
	for alias := range ambiguous {
		delete(t.aliases, alias)
	}

	return t, nil
}

// MustTable is NewTable that panics on a misdeclared table.
func MustTable[E any](entity string, compose func(Values) E, fields ...FieldDescriptor) *Table[E] {
	t, err := NewTable(entity, compose, fields...)
	if err != nil {
		panic(err)
	}
	return t
}

func checkField(entity string, f FieldDescriptor) error {
	if f.Name == "" {
		return fmt.Errorf("%w: %s has a field with no name", ErrInvalidTable, entity)
	}
	if f.initial == nil || f.coerce == nil {
		return fmt.Errorf("%w: %s.%s was not declared with a field constructor", ErrInvalidTable, entity, f.Name)
	}
	if f.check != nil {
		if err := f.check(); err != nil {
			return fmt.Errorf("%s.%s: %w", entity, f.Name, err)
		}
	}
	switch f.Role {
	case Plain, RequiredPlain, PrimaryIdentifier:
		if f.Ref != nil {
			return fmt.Errorf("%w: %s.%s is %s but names a reference", ErrInvalidTable, entity, f.Name, f.Role)
		}
	case RequiredReference:
		if f.Ref == nil || f.Ref.nested == nil || f.Ref.extract == nil {
			return fmt.Errorf("%w: %s.%s has no table to create its dependency with", ErrInvalidTable, entity, f.Name)
		}
	case OptionalReferenceNoAutocreate:
		if f.Ref == nil || f.Ref.extract == nil {
			return fmt.Errorf("%w: %s.%s has no reference target", ErrInvalidTable, entity, f.Name)
		}
	default:
		return fmt.Errorf("%w: %s.%s has unknown role %s", ErrInvalidTable, entity, f.Name, f.Role)
	}
	return nil
}

// Entity returns the entity name the table was declared with.
func (t *Table[E]) Entity() string { return t.entity }

// Fields returns the descriptors in declaration order.
func (t *Table[E]) Fields() []FieldDescriptor {
	out := make([]FieldDescriptor, len(t.fields))
	copy(out, t.fields)
	return out
}

// Field looks up a descriptor by its declared name.
func (t *Table[E]) Field(name string) (FieldDescriptor, bool) {
	i, ok := t.index[name]
	if !ok {
		return FieldDescriptor{}, false
	}
	return t.fields[i], true
}

// References returns the reference descriptors in declaration order.
func (t *Table[E]) References() []FieldDescriptor {
	var out []FieldDescriptor
	for _, f := range t.fields {
		if f.Role.IsReference() {
			out = append(out, f)
		}
	}
	return out
}

// New returns a builder with every field at its initial value and nothing set.
func (t *Table[E]) New() *Builder[E] {
	values := make(Values, len(t.fields))
	for _, f := range t.fields {
		values[f.Name] = f.initial()
	}
	return &Builder[E]{
		table:  t,
		values: values,
		set:    make(map[string]struct{}),
	}
}

// lookup resolves a declared name or, for reference fields, an alias.
func (t *Table[E]) lookup(name string) (FieldDescriptor, bool) {
	if f, ok := t.Field(name); ok {
		return f, true
	}
	i, ok := t.aliases[name]
	if !ok {
		return FieldDescriptor{}, false
	}
	return t.fields[i], true
}

func (t *Table[E]) primaryKey() string {
	for _, f := range t.fields {
		if f.Role == PrimaryIdentifier {
			return f.Name
		}
	}
	return ""
}

func (t *Table[E]) create(ctx context.Context, a Adapter) (any, error) {
	return t.New().Create(ctx, a)
}

// build runs the required-field check and composes the entity.
func (t *Table[E]) build(values Values, set map[string]struct{}) (E, error) {
	for _, f := range t.fields {
		if f.Role != RequiredPlain {
			continue
		}
		if _, ok := set[f.Name]; ok {
			continue
		}
		if isZero(values[f.Name]) {
			var zero E
			return zero, &MissingFieldError{Entity: t.entity, Field: f.Name}
		}
	}
	return t.compose(maps.Clone(values)), nil
}
