package schema

import (
	"maps"
	"reflect"

	"github.com/jacentio/groundwork/factory"
)

// Record is an entity built from a schema table.
// Fields is shared by every record of the entity and must not be modified.
type Record struct {
	Entity string
	Table  string
	Key    string
	Fields []string
	Values factory.Values
}

// EntityType returns the entity name.
func (r Record) EntityType() string { return r.Entity }

// Get returns the value of field name.
func (r Record) Get(name string) any { return r.Values[name] }

// ID returns the primary key value, or nil when the entity has none.
func (r Record) ID() any {
	if r.Key == "" {
		return nil
	}
	return r.Values[r.Key]
}

// HasKey reports whether the primary key holds a non-zero value.
func (r Record) HasKey() bool {
	id := r.ID()
	return id != nil && !reflect.ValueOf(id).IsZero()
}

// With returns a copy of r with field name set to v.
func (r Record) With(name string, v any) Record {
	values := maps.Clone(r.Values)
	if values == nil {
		values = make(factory.Values)
	}
	values[name] = v
	r.Values = values
	return r
}
