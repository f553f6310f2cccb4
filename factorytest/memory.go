// Package factorytest provides an in-memory persistence backend for factory
// tables.
package factorytest

import (
	"context"
	"reflect"
	"sync"

	"github.com/jacentio/groundwork/factory"
)

// Entry is one persisted entity, in the order Persist saw it.
type Entry struct {
	Entity string
	Value  any
}

// Memory is a factory.Adapter that keeps every persisted entity in memory and
// hands out identifiers 1, 2, 3, ... per entity type. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	assign  map[reflect.Type]func(any, int64) any
	next    map[string]int64
	entries []Entry
	fail    map[string]error
}

var _ factory.Adapter = (*Memory)(nil)

// New returns an empty Memory.
func New() *Memory {
	return &Memory{
		assign: make(map[reflect.Type]func(any, int64) any),
		next:   make(map[string]int64),
		fail:   make(map[string]error),
	}
}

// Assign registers how an E receives its identifier. Entities with no
// registration are stored as given.
func Assign[E any](m *Memory, fn func(entity E, id int64) E) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assign[reflect.TypeFor[E]()] = func(v any, id int64) any {
		return fn(v.(E), id)
	}
}

// FailOn makes every later Persist of entity return err.
func (m *Memory) FailOn(entity string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[entity] = err
}

// Persist stores entity, assigning its next identifier.
func (m *Memory) Persist(ctx context.Context, entity any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := factory.EntityType(entity)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.fail[name]; ok {
		return nil, err
	}

	m.next[name]++
	if fn, ok := m.assign[reflect.TypeOf(entity)]; ok {
		entity = fn(entity, m.next[name])
	}

	m.entries = append(m.entries, Entry{Entity: name, Value: entity})
	return entity, nil
}

// Log returns every persisted entity in persist order.
func (m *Memory) Log() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Order returns the entity names of Log.
func (m *Memory) Order() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Entity
	}
	return out
}

// Count returns how many entities named entity were persisted.
func (m *Memory) Count(entity string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.Entity == entity {
			n++
		}
	}
	return n
}

// Rows returns the persisted entities named entity, oldest first.
func (m *Memory) Rows(entity string) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []any
	for _, e := range m.entries {
		if e.Entity == entity {
			out = append(out, e.Value)
		}
	}
	return out
}

// Reset forgets persisted entities, identifier counters and injected failures.
// Assign registrations are kept.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.next = make(map[string]int64)
	m.fail = make(map[string]error)
}
