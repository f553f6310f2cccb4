package factory

import (
	"context"
	"fmt"
	"maps"
)

// Builder stages one not-yet-created entity. Builders are single-owner; a
// builder may be built or resolved any number of times, each resolution
// working on a copy of the staged values.
type Builder[E any] struct {
	table  *Table[E]
	values Values
	set    map[string]struct{}
	err    error
}

// With records value for field name and marks it set. Any field may be overridden,
// including identifiers and references. An unknown name or a value of the wrong
// type is remembered and returned by the next Build, BuildWithFKs or Create.
func (b *Builder[E]) With(name string, value any) *Builder[E] {
	if b.err != nil {
		return b
	}
	f, ok := b.table.Field(name)
	if !ok {
		b.err = fmt.Errorf("%w: %s.%s", ErrUnknownField, b.table.entity, name)
		return b
	}
	return b.store(f, value)
}

// WithReference copies the identifying field of an already persisted dependency
// into reference field name. name may be the field's alias ("blog" for "blog_id").
func (b *Builder[E]) WithReference(name string, dependency any) *Builder[E] {
	f, ok := b.reference(name)
	if !ok {
		return b
	}
	id, ok := f.Ref.extract(dependency)
	if !ok {
		b.err = fmt.Errorf("%w: %s.%s expects a %s, got %T", ErrFieldType, b.table.entity, f.Name, f.Ref.Entity, dependency)
		return b
	}
	return b.store(f, id)
}

// WithReferenceID stores id directly in reference field name. The referenced
// row is never checked to exist.
func (b *Builder[E]) WithReferenceID(name string, id any) *Builder[E] {
	f, ok := b.reference(name)
	if !ok {
		return b
	}
	return b.store(f, id)
}

func (b *Builder[E]) reference(name string) (FieldDescriptor, bool) {
	if b.err != nil {
		return FieldDescriptor{}, false
	}
	f, ok := b.table.lookup(name)
	if !ok {
		b.err = fmt.Errorf("%w: %s.%s", ErrUnknownField, b.table.entity, name)
		return FieldDescriptor{}, false
	}
	if !f.Role.IsReference() {
		b.err = fmt.Errorf("%w: %s.%s is %s", ErrNotReference, b.table.entity, f.Name, f.Role)
		return FieldDescriptor{}, false
	}
	return f, true
}

func (b *Builder[E]) store(f FieldDescriptor, value any) *Builder[E] {
	v, ok := f.coerce(value)
	if !ok {
		b.err = fmt.Errorf("%w: %s.%s is %s, got %T", ErrFieldType, b.table.entity, f.Name, f.typeName, value)
		return b
	}
	b.values[f.Name] = v
	b.set[f.Name] = struct{}{}
	return b
}

// IsSet reports whether field name was explicitly set.
func (b *Builder[E]) IsSet(name string) bool {
	_, ok := b.set[name]
	return ok
}

// Values returns a copy of the staged values.
func (b *Builder[E]) Values() Values {
	return maps.Clone(b.values)
}

// Err returns the first configuration error recorded by a setter, if any.
func (b *Builder[E]) Err() error { return b.err }

// Build composes the entity from the staged values without any I/O.
// Unset references keep their sentinel.
func (b *Builder[E]) Build() (E, error) {
	if b.err != nil {
		var zero E
		return zero, b.err
	}
	return b.table.build(b.values, b.set)
}

// BuildWithFKs creates every unset required reference through a, depth first and
// in declaration order, then composes the entity. The entity itself is not persisted.
func (b *Builder[E]) BuildWithFKs(ctx context.Context, a Adapter) (E, error) {
	var zero E
	if b.err != nil {
		return zero, b.err
	}
	values, err := b.table.resolve(ctx, a, b.values)
	if err != nil {
		return zero, err
	}
	return b.table.build(values, b.set)
}

// Create is BuildWithFKs followed by persisting the entity through a.
// It returns the entity as the adapter handed it back.
func (b *Builder[E]) Create(ctx context.Context, a Adapter) (E, error) {
	entity, err := b.BuildWithFKs(ctx, a)
	if err != nil {
		return entity, err
	}
	return b.table.persist(ctx, a, entity)
}
