package factory

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Adapter persists one fully resolved entity and returns it as stored, with
// backend-assigned fields such as the primary identifier filled in.
//
// The context given to Create is passed to every Persist call unchanged; it is
// the only cancellation signal the resolver honours.
type Adapter interface {
	Persist(ctx context.Context, entity any) (any, error)
}

// AdapterFunc adapts a function to Adapter.
type AdapterFunc func(ctx context.Context, entity any) (any, error)

// Persist calls f(ctx, entity).
func (f AdapterFunc) Persist(ctx context.Context, entity any) (any, error) {
	return f(ctx, entity)
}

// Bind returns an Adapter that threads backend, a connection or session handle,
// into every call of fn.
func Bind[B any](backend B, fn func(ctx context.Context, backend B, entity any) (any, error)) Adapter {
	return AdapterFunc(func(ctx context.Context, entity any) (any, error) {
		return fn(ctx, backend, entity)
	})
}

// Mux dispatches Persist to a per-type handler registered with Handle.
type Mux struct {
	mu       sync.RWMutex
	handlers map[reflect.Type]func(context.Context, any) (any, error)
}

// NewMux returns an empty Mux.
func NewMux() *Mux {
	return &Mux{handlers: make(map[reflect.Type]func(context.Context, any) (any, error))}
}

// Handle registers fn for entities of type E, replacing any earlier handler.
func Handle[E any](m *Mux, fn func(ctx context.Context, entity E) (E, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[reflect.TypeFor[E]()] = func(ctx context.Context, entity any) (any, error) {
		return fn(ctx, entity.(E))
	}
}

// Persist routes entity to the handler registered for its type.
func (m *Mux) Persist(ctx context.Context, entity any) (any, error) {
	m.mu.RLock()
	h, ok := m.handlers[reflect.TypeOf(entity)]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, EntityType(entity))
	}
	return h(ctx, entity)
}

// EntityType names an entity: the result of its EntityType method when it has
// one, otherwise its Go type name.
func EntityType(v any) string {
	if v == nil {
		return "<nil>"
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || !rv.IsNil() {
		if n, ok := v.(interface{ EntityType() string }); ok {
			return n.EntityType()
		}
	}
	t := rv.Type()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
