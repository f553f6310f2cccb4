// Package gen renders typed builder wrappers for the entities of a schema.
//
// For an entity "post" with fields title and blog_id it emits:
//
//	type PostBuilder struct{ *factory.Builder[schema.Record] }
//	func NewPost(s *schema.Schema) (PostBuilder, error)
//	func (b PostBuilder) WithTitle(v string) PostBuilder
//	func (b PostBuilder) WithBlog(dep schema.Record) PostBuilder
//	func (b PostBuilder) WithBlogID(id int64) PostBuilder
package gen

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"

	"github.com/jacentio/groundwork/factory"
	"github.com/jacentio/groundwork/schema"
)

const (
	factoryPkg = "github.com/jacentio/groundwork/factory"
	schemaPkg  = "github.com/jacentio/groundwork/schema"
	uuidPkg    = "github.com/google/uuid"
)

// ErrNameClash is returned when two fields of one entity map to the same method name.
var ErrNameClash = errors.New("groundwork: generated names clash")

// Builders returns a file in package pkg holding a wrapper per entity of s,
// in declaration order.
func Builders(s *schema.Schema, pkg string) (*jen.File, error) {
	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by groundwork/gen. DO NOT EDIT.")

	for _, entity := range s.Entities() {
		t, err := s.Table(entity)
		if err != nil {
			return nil, err
		}
		if err := entityBuilder(f, entity, t.Fields()); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Render formats the output of Builders.
func Render(s *schema.Schema, pkg string) ([]byte, error) {
	f, err := Builders(s, pkg)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("render builders: %w", err)
	}
	return buf.Bytes(), nil
}

func entityBuilder(f *jen.File, entity string, fields []factory.FieldDescriptor) error {
	typeName := exported(entity) + "Builder"

	f.Commentf("%s stages a %s.", typeName, entity)
	f.Type().Id(typeName).Struct(
		jen.Op("*").Qual(factoryPkg, "Builder").Types(jen.Qual(schemaPkg, "Record")),
	)

	f.Commentf("New%s returns a builder for %s with every field at its default.", exported(entity), entity)
	f.Func().Id("New"+exported(entity)).Params(
		jen.Id("s").Op("*").Qual(schemaPkg, "Schema"),
	).Params(jen.Id(typeName), jen.Error()).Block(
		jen.List(jen.Id("b"), jen.Err()).Op(":=").Id("s").Dot("New").Call(jen.Lit(entity)),
		jen.If(jen.Err().Op("!=").Nil()).Block(
			jen.Return(jen.Id(typeName).Values(), jen.Err()),
		),
		jen.Return(jen.Id(typeName).Values(jen.Id("b")), jen.Nil()),
	)

	used := make(map[string]string)
	method := func(name, field string) error {
		if prev, ok := used[name]; ok {
			return fmt.Errorf("%w: %s.%s and %s.%s both become %s", ErrNameClash, entity, prev, entity, field, name)
		}
		used[name] = field
		return nil
	}

	for _, fd := range fields {
		goType, err := valueType(fd.Type())
		if err != nil {
			return fmt.Errorf("%s.%s: %w", entity, fd.Name, err)
		}

		if !fd.Role.IsReference() {
			name := "With" + exported(fd.Name)
			if err := method(name, fd.Name); err != nil {
				return err
			}
			setter(f, typeName, name, "With", fd.Name, "v", goType)
			continue
		}

		base := factory.ReferenceAlias(fd.Name)
		if base == "" {
			base = fd.Name
		}
		name := "With" + exported(base)
		if err := method(name, fd.Name); err != nil {
			return err
		}
		if err := method(name+"ID", fd.Name); err != nil {
			return err
		}
		setter(f, typeName, name, "WithReference", fd.Name, "dep", jen.Qual(schemaPkg, "Record"))
		setter(f, typeName, name+"ID", "WithReferenceID", fd.Name, "id", goType)
	}
	return nil
}

// setter emits: func (b T) name(arg argType) T { b.Builder.call("field", arg); return b }
func setter(f *jen.File, typeName, name, call, field, arg string, argType jen.Code) {
	f.Commentf("%s sets %s.", name, field)
	f.Func().Params(jen.Id("b").Id(typeName)).Id(name).Params(jen.Id(arg).Add(argType)).Id(typeName).Block(
		jen.Id("b").Dot("Builder").Dot(call).Call(jen.Lit(field), jen.Id(arg)),
		jen.Return(jen.Id("b")),
	)
}

// valueType maps a descriptor's Go type to generated code. Pointer types are
// unwrapped because optional setters take the plain value.
func valueType(t string) (jen.Code, error) {
	switch strings.TrimPrefix(t, "*") {
	case "int64":
		return jen.Int64(), nil
	case "string":
		return jen.String(), nil
	case "bool":
		return jen.Bool(), nil
	case "float64":
		return jen.Float64(), nil
	case "uuid.UUID":
		return jen.Qual(uuidPkg, "UUID"), nil
	}
	return nil, fmt.Errorf("unsupported type %s", t)
}

// exported turns a snake_case name into an exported Go identifier.
func exported(name string) string {
	id := inflect.Camelize(name)
	if strings.HasSuffix(id, "Id") {
		id = strings.TrimSuffix(id, "Id") + "ID"
	}
	return id
}
