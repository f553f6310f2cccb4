// Package pg persists typed fixture structs to PostgreSQL with pgx.
//
// Each registered struct type maps to one table. Columns come from `db` struct
// tags, and the inserted row is read back with RETURNING *, so defaults and
// generated identifiers filled by the database land in the returned entity.
//
//	a := pg.New(pool)
//	pg.Register[Org](a, "orgs", pg.Generated("id"))
//	pg.Register[User](a, "users", pg.Generated("id"))
//	user, err := users.New().Create(ctx, a)
package pg

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jacentio/groundwork/factory"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Adapter inserts registered struct types.
type Adapter struct {
	q      Querier
	mux    *factory.Mux
	logger *slog.Logger
}

var _ factory.Adapter = (*Adapter)(nil)

// New creates an Adapter with no registered types.
func New(q Querier) *Adapter {
	return &Adapter{q: q, mux: factory.NewMux(), logger: slog.Default()}
}

// WithLogger sets the logger receiving one debug line per inserted row.
func (a *Adapter) WithLogger(logger *slog.Logger) *Adapter {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// Persist implements factory.Adapter.
func (a *Adapter) Persist(ctx context.Context, entity any) (any, error) {
	return a.mux.Persist(ctx, entity)
}

// Option configures a registration.
type Option func(*mapping)

// Generated names columns the database fills in. They are left out of the
// insert while the struct holds their zero value.
func Generated(cols ...string) Option {
	return func(m *mapping) {
		m.generated = append(m.generated, cols...)
	}
}

// Register maps E to table. It panics if E is not a struct, since the mapping
// is fixed at compile time.
func Register[E any](a *Adapter, table string, opts ...Option) {
	m := newMapping(reflect.TypeFor[E](), table)
	for _, opt := range opts {
		opt(&m)
	}
	factory.Handle(a.mux, func(ctx context.Context, e E) (E, error) {
		query, args := m.insert(reflect.ValueOf(e))
		rows, err := a.q.Query(ctx, query, args...)
		if err != nil {
			var zero E
			return zero, fmt.Errorf("insert into %s: %w", table, err)
		}
		out, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[E])
		if err != nil {
			return out, fmt.Errorf("insert into %s: %w", table, err)
		}
		a.logger.DebugContext(ctx, "inserted row", "table", table)
		return out, nil
	})
}

type column struct {
	name  string
	index []int
}

type mapping struct {
	table     pgx.Identifier
	columns   []column
	generated []string
}

func newMapping(t reflect.Type, table string) mapping {
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("pg: Register needs a struct type, got %s", t))
	}
	m := mapping{table: pgx.Identifier(strings.Split(table, "."))}
	m.addFields(t, nil)
	return m
}

// addFields walks t the way pgx.RowToStructByName does: embedded structs are
// flattened, and a db tag's options after the comma are ignored.
func (m *mapping) addFields(t reflect.Type, index []int) {
	for i := range t.NumField() {
		f := t.Field(i)
		path := append(slices.Clone(index), i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			m.addFields(f.Type, path)
			continue
		}
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("db"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		m.columns = append(m.columns, column{name: name, index: path})
	}
}

func (m mapping) insert(v reflect.Value) (string, []any) {
	var (
		cols []string
		args []any
	)
	for _, c := range m.columns {
		fv := v.FieldByIndex(c.index)
		if fv.IsZero() && slices.Contains(m.generated, c.name) {
			continue
		}
		cols = append(cols, pgx.Identifier{c.name}.Sanitize())
		args = append(args, fv.Interface())
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(m.table.Sanitize())
	if len(cols) == 0 {
		b.WriteString(" DEFAULT VALUES")
	} else {
		b.WriteString(" (")
		b.WriteString(strings.Join(cols, ", "))
		b.WriteString(") VALUES (")
		for i := range cols {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("$" + strconv.Itoa(i+1))
		}
		b.WriteString(")")
	}
	b.WriteString(" RETURNING *")
	return b.String(), args
}
