package factory

import (
	"context"
	"fmt"
	"maps"

	"github.com/jacentio/groundwork/internal/ctxlog"
)

// resolve fills every required reference still holding its sentinel by creating
// the dependency first. It returns a new value map; staged is left untouched.
//
// The walk is depth first and post order: a dependency is resolved and persisted
// before the field that needs its identifier is written. Fields are visited in
// declaration order and nothing is shared between siblings.
func (t *Table[E]) resolve(ctx context.Context, a Adapter, staged Values) (Values, error) {
	values := maps.Clone(staged)
	logger := ctxlog.FromContext(ctx)

	for _, f := range t.fields {
		// Plain fields and optional references stay exactly as staged.
		if f.Role != RequiredReference {
			continue
		}

		if !f.IsUnset(values[f.Name]) {
			continue
		}

		logger.DebugContext(ctx, "auto-creating dependency",
			"entity", t.entity,
			"field", f.Name,
			"dependency", f.Ref.Entity,
		)

		dep, err := f.Ref.nested.create(ctx, a)
		if err != nil {
			return nil, err
		}

		id, ok := f.Ref.extract(dep)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s needs a %s, got %T", ErrUnexpectedEntity, t.entity, f.Name, f.Ref.Entity, dep)
		}
		values[f.Name] = id
	}

	return values, nil
}

// persist hands the composed entity to the adapter. Adapter failures are wrapped
// here, once, and travel unchanged through every enclosing resolution.
func (t *Table[E]) persist(ctx context.Context, a Adapter, entity E) (E, error) {
	var zero E

	out, err := a.Persist(ctx, entity)
	if err != nil {
		return zero, &PersistError{Entity: t.entity, Err: err}
	}

	persisted, ok := out.(E)
	if !ok {
		return zero, fmt.Errorf("%w: %s: got %T", ErrUnexpectedEntity, t.entity, out)
	}

	ctxlog.FromContext(ctx).DebugContext(ctx, "persisted entity", "entity", t.entity)
	return persisted, nil
}
