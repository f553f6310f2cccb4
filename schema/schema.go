// Package schema builds factory tables from a YAML description of entities.
//
//	entities:
//	  - name: org
//	    fields:
//	      - {name: id, type: int, role: primary}
//	  - name: user
//	    fields:
//	      - {name: id, type: int, role: primary}
//	      - {name: org_id, type: int, role: reference, references: org.id}
//	      - {name: email, type: string, role: required, sequence: "user-%d@example.com"}
//
// Every table produces Record values.
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-openapi/inflect"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/jacentio/groundwork/factory"
)

type document struct {
	Entities []entityDef `yaml:"entities"`
}

type entityDef struct {
	Name   string     `yaml:"name"`
	Table  string     `yaml:"table"`
	Fields []fieldDef `yaml:"fields"`
}

type fieldDef struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Role       string `yaml:"role"`
	References string `yaml:"references"`
	Default    any    `yaml:"default"`
	Sequence   string `yaml:"sequence"`
}

// target is a parsed "entity.field" reference.
type target struct {
	entity string
	field  string
}

// Schema holds the tables of every declared entity.
type Schema struct {
	order  []string
	defs   map[string]*entityDef
	tables map[string]*factory.Table[Record]
}

// LoadFile reads and parses the schema at path.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Parse(data)
}

// Load reads a schema document from r.
func Load(r io.Reader) (*Schema, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Parse(data)
}

// Parse decodes a schema document, validates it and builds its tables.
// Unknown YAML keys are rejected.
func Parse(data []byte) (*Schema, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	s := &Schema{
		defs:   make(map[string]*entityDef, len(doc.Entities)),
		tables: make(map[string]*factory.Table[Record], len(doc.Entities)),
	}
	for i := range doc.Entities {
		e := &doc.Entities[i]
		if e.Name == "" {
			return nil, fmt.Errorf("%w: entity %d has no name", ErrInvalidSchema, i)
		}
		if _, dup := s.defs[e.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEntity, e.Name)
		}
		if e.Table == "" {
			e.Table = inflect.Pluralize(e.Name)
		}
		s.defs[e.Name] = e
		s.order = append(s.order, e.Name)
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	order, err := s.buildOrder()
	if err != nil {
		return nil, err
	}
	for _, name := range order {
		t, err := s.build(s.defs[name])
		if err != nil {
			return nil, err
		}
		s.tables[name] = t
	}
	return s, nil
}

// Entities returns the entity names in declaration order.
func (s *Schema) Entities() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Table returns the descriptor table of entity name.
func (s *Schema) Table(name string) (*factory.Table[Record], error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}
	return t, nil
}

// TableName returns the storage table of entity name.
func (s *Schema) TableName(name string) (string, error) {
	e, ok := s.defs[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}
	return e.Table, nil
}

// New returns a fresh builder for entity name.
func (s *Schema) New(name string) (*factory.Builder[Record], error) {
	t, err := s.Table(name)
	if err != nil {
		return nil, err
	}
	return t.New(), nil
}

// validate checks types, roles and reference targets.
func (s *Schema) validate() error {
	for _, name := range s.order {
		e := s.defs[name]
		seen := make(map[string]bool, len(e.Fields))
		for _, f := range e.Fields {
			if f.Name == "" {
				return fmt.Errorf("%w: %s has a field with no name", ErrInvalidSchema, e.Name)
			}
			if seen[f.Name] {
				return fmt.Errorf("%w: %s.%s declared twice", ErrInvalidSchema, e.Name, f.Name)
			}
			seen[f.Name] = true

			if !knownType(f.Type) {
				return fmt.Errorf("%w: %s.%s has type %q", ErrUnknownType, e.Name, f.Name, f.Type)
			}
			role, err := roleOf(f)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", e.Name, f.Name, err)
			}
			if (role == factory.PrimaryIdentifier || role.IsReference()) && !identifierType(f.Type) {
				return fmt.Errorf("%w: %s.%s is %s but %s cannot identify an entity", ErrUnknownType, e.Name, f.Name, role, f.Type)
			}

			if !role.IsReference() {
				if f.References != "" {
					return fmt.Errorf("%w: %s.%s is %s but names %q", ErrBadReference, e.Name, f.Name, role, f.References)
				}
				continue
			}
			if _, err := s.target(e.Name, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// target resolves a reference field's "entity.field" (or "entity", meaning its
// primary key) and checks the types line up.
func (s *Schema) target(owner string, f fieldDef) (target, error) {
	if f.References == "" {
		return target{}, fmt.Errorf("%w: %s.%s has no references", ErrBadReference, owner, f.Name)
	}
	entity, field, _ := strings.Cut(f.References, ".")
	if entity == "" || strings.Contains(field, ".") {
		return target{}, fmt.Errorf("%w: %s.%s references %q, want entity.field", ErrBadReference, owner, f.Name, f.References)
	}
	dep, ok := s.defs[entity]
	if !ok {
		return target{}, fmt.Errorf("%w: %s.%s references %s", ErrUnknownEntity, owner, f.Name, entity)
	}
	if field == "" {
		field = primaryKey(dep)
		if field == "" {
			return target{}, fmt.Errorf("%w: %s.%s references %s, which has no primary key", ErrBadReference, owner, f.Name, entity)
		}
	}
	for _, df := range dep.Fields {
		if df.Name != field {
			continue
		}
		if df.Type != f.Type {
			return target{}, fmt.Errorf("%w: %s.%s is %s but %s.%s is %s", ErrBadReference, owner, f.Name, f.Type, entity, field, df.Type)
		}
		return target{entity: entity, field: field}, nil
	}
	return target{}, fmt.Errorf("%w: %s.%s references missing field %s.%s", ErrBadReference, owner, f.Name, entity, field)
}

// buildOrder returns the entities with every required reference target ahead of
// the entities that need it, or ErrReferenceCycle naming the loop.
func (s *Schema) buildOrder() ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(s.order))
	var order []string
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			start := 0
			for i, p := range path {
				if p == name {
					start = i
					break
				}
			}
			loop := append(append([]string{}, path[start:]...), name)
			return fmt.Errorf("%w: %s", ErrReferenceCycle, strings.Join(loop, " -> "))
		}

		state[name] = visiting
		path = append(path, name)
		for _, f := range s.defs[name].Fields {
			if f.Role != factory.RequiredReference.String() {
				continue
			}
			t, err := s.target(name, f)
			if err != nil {
				return err
			}
			if err := visit(t.entity); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[name] = done
		order = append(order, name)
		return nil
	}

	for _, name := range s.order {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (s *Schema) build(e *entityDef) (*factory.Table[Record], error) {
	fields := make([]factory.FieldDescriptor, 0, len(e.Fields))
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		fd, err := s.descriptor(e, f)
		if err != nil {
			return nil, err
		}
		fields = append(fields, fd)
		names = append(names, f.Name)
	}

	entity, table, key := e.Name, e.Table, primaryKey(e)
	compose := func(v factory.Values) Record {
		return Record{Entity: entity, Table: table, Key: key, Fields: names, Values: v}
	}
	return factory.NewTable(entity, compose, fields...)
}

func (s *Schema) descriptor(e *entityDef, f fieldDef) (factory.FieldDescriptor, error) {
	switch f.Type {
	case "int":
		return describe(s, e, f, &factory.Int64)
	case "string":
		return describe(s, e, f, &factory.String)
	case "uuid":
		return describe(s, e, f, &factory.UUID)
	case "bool":
		return describe[bool](s, e, f, nil)
	case "float":
		return describe[float64](s, e, f, nil)
	}
	return factory.FieldDescriptor{}, fmt.Errorf("%w: %s.%s has type %q", ErrUnknownType, e.Name, f.Name, f.Type)
}

// describe builds the descriptor of one field holding T. sentinel is nil for
// types that cannot identify an entity.
func describe[T any](s *Schema, e *entityDef, f fieldDef, sentinel *factory.Sentinel[T]) (factory.FieldDescriptor, error) {
	role, err := roleOf(f)
	if err != nil {
		return factory.FieldDescriptor{}, err
	}
	def, err := defaultOf[T](f)
	if err != nil {
		return factory.FieldDescriptor{}, fmt.Errorf("%s.%s: %w", e.Name, f.Name, err)
	}

	switch role {
	case factory.Plain:
		if def != nil {
			return factory.FieldDefault(f.Name, def), nil
		}
		return factory.Field[T](f.Name), nil
	case factory.RequiredPlain:
		if def != nil {
			return factory.RequiredDefault(f.Name, def), nil
		}
		return factory.Required[T](f.Name), nil
	}

	if def != nil {
		return factory.FieldDescriptor{}, fmt.Errorf("%w: %s.%s is %s and cannot have a default", ErrInvalidDefault, e.Name, f.Name, role)
	}
	if sentinel == nil {
		return factory.FieldDescriptor{}, fmt.Errorf("%w: %s.%s cannot be %s", ErrUnknownType, e.Name, f.Name, role)
	}
	if role == factory.PrimaryIdentifier {
		return factory.PrimaryKey(f.Name, *sentinel), nil
	}

	t, err := s.target(e.Name, f)
	if err != nil {
		return factory.FieldDescriptor{}, err
	}
	id := func(r Record) T { return factory.Get[T](r.Values, t.field) }

	if role == factory.OptionalReferenceNoAutocreate {
		return factory.OptionalRefTo(f.Name, t.entity, t.field, id), nil
	}
	nested, ok := s.tables[t.entity]
	if !ok {
		return factory.FieldDescriptor{}, fmt.Errorf("%w: %s.%s needs %s built first", ErrReferenceCycle, e.Name, f.Name, t.entity)
	}
	fd := factory.Ref(f.Name, *sentinel, nested, id)
	fd.Ref.Field = t.field
	return fd, nil
}

func roleOf(f fieldDef) (factory.Role, error) {
	if f.Role == "" {
		return factory.Plain, nil
	}
	role, err := factory.ParseRole(f.Role)
	if err != nil {
		return 0, fmt.Errorf("%w: unknown role %q", ErrInvalidSchema, f.Role)
	}
	return role, nil
}

// defaultOf returns the generator for a field's default or sequence, or nil
// when the field has neither.
func defaultOf[T any](f fieldDef) (func() T, error) {
	if f.Sequence != "" {
		if f.Default != nil {
			return nil, fmt.Errorf("%w: both default and sequence set", ErrInvalidDefault)
		}
		if _, ok := any(*new(T)).(string); !ok || !strings.Contains(f.Sequence, "%d") {
			return nil, fmt.Errorf("%w: sequence needs a string field and a %%d verb", ErrInvalidDefault)
		}
		pattern := f.Sequence
		return factory.Sequence(func(n int64) T {
			v, _ := any(fmt.Sprintf(pattern, n)).(T)
			return v
		}), nil
	}

	if f.Default == nil {
		return nil, nil
	}
	v, err := convert[T](f.Default)
	if err != nil {
		return nil, err
	}
	return func() T { return v }, nil
}

// convert turns a decoded YAML scalar into T.
func convert[T any](raw any) (T, error) {
	var out any
	switch any(*new(T)).(type) {
	case int64:
		switch v := raw.(type) {
		case int:
			out = int64(v)
		case int64:
			out = v
		}
	case float64:
		switch v := raw.(type) {
		case int:
			out = float64(v)
		case float64:
			out = v
		}
	case uuid.UUID:
		if str, ok := raw.(string); ok {
			if id, err := uuid.Parse(str); err == nil {
				out = id
			}
		}
	default:
		out = raw
	}

	v, ok := out.(T)
	if !ok {
		return v, fmt.Errorf("%w: %v does not fit %T", ErrInvalidDefault, raw, *new(T))
	}
	return v, nil
}

func knownType(t string) bool {
	switch t {
	case "int", "string", "bool", "float", "uuid":
		return true
	}
	return false
}

func identifierType(t string) bool {
	return t == "int" || t == "string" || t == "uuid"
}

func primaryKey(e *entityDef) string {
	for _, f := range e.Fields {
		if f.Role == factory.PrimaryIdentifier.String() {
			return f.Name
		}
	}
	return ""
}
