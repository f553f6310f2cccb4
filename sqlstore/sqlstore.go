// Package sqlstore persists schema records through database/sql.
//
// Each record becomes one INSERT into its table with a column per field. An
// unset primary key is left to the database and read back into the returned
// record, except uuid keys, which are generated before the insert.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jacentio/groundwork/factory"
	"github.com/jacentio/groundwork/schema"
)

// ExecQuerier is the subset of *sql.DB and *sql.Tx the adapter uses.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ ExecQuerier     = (*sql.DB)(nil)
	_ ExecQuerier     = (*sql.Tx)(nil)
	_ factory.Adapter = (*Adapter)(nil)
)

// Adapter inserts schema records.
type Adapter struct {
	db     ExecQuerier
	config Config
}

// New creates an Adapter.
func New(db ExecQuerier, config Config) (*Adapter, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Adapter{db: db, config: config}, nil
}

// Persist implements factory.Adapter.
func (a *Adapter) Persist(ctx context.Context, v any) (any, error) {
	rec, ok := v.(schema.Record)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotRecord, v)
	}

	if rec.Key != "" && !rec.HasKey() {
		if _, isUUID := rec.ID().(uuid.UUID); isUUID {
			rec = rec.With(rec.Key, uuid.New())
		}
	}

	ins := a.insert(rec)
	switch {
	case !ins.returning:
		if _, err := a.db.ExecContext(ctx, ins.query, ins.args...); err != nil {
			return nil, fmt.Errorf("insert into %s: %w", rec.Table, err)
		}
	case a.config.Dialect == MySQL:
		res, err := a.db.ExecContext(ctx, ins.query, ins.args...)
		if err != nil {
			return nil, fmt.Errorf("insert into %s: %w", rec.Table, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("insert into %s: %w", rec.Table, err)
		}
		key, err := convertKey(rec.ID(), id)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", rec.Table, rec.Key, err)
		}
		rec = rec.With(rec.Key, key)
	default:
		dest := reflect.New(reflect.TypeOf(rec.ID()))
		if err := a.db.QueryRowContext(ctx, ins.query, ins.args...).Scan(dest.Interface()); err != nil {
			return nil, fmt.Errorf("insert into %s: %w", rec.Table, err)
		}
		rec = rec.With(rec.Key, dest.Elem().Interface())
	}

	a.config.Logger.DebugContext(ctx, "inserted row",
		"table", rec.Table,
		"key", rec.ID(),
	)
	return rec, nil
}

type statement struct {
	query     string
	args      []any
	returning bool
}

// insert renders the INSERT for rec. The key column is omitted, and read back,
// while it holds its unset value.
func (a *Adapter) insert(rec schema.Record) statement {
	generated := rec.Key != "" && !rec.HasKey() && rec.ID() != nil

	var cols []string
	var ins statement
	for _, f := range rec.Fields {
		if generated && f == rec.Key {
			continue
		}
		cols = append(cols, a.quote(f))
		ins.args = append(ins.args, rec.Values[f])
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(a.quote(rec.Table))
	switch {
	case len(cols) > 0:
		b.WriteString(" (")
		b.WriteString(strings.Join(cols, ", "))
		b.WriteString(") VALUES (")
		for i := range cols {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.placeholder(i + 1))
		}
		b.WriteString(")")
	case a.config.Dialect == MySQL:
		b.WriteString(" () VALUES ()")
	default:
		b.WriteString(" DEFAULT VALUES")
	}

	if generated {
		ins.returning = true
		if a.config.Dialect != MySQL {
			b.WriteString(" RETURNING ")
			b.WriteString(a.quote(rec.Key))
		}
	}
	ins.query = b.String()
	return ins
}

func (a *Adapter) quote(ident string) string {
	if a.config.Dialect == MySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (a *Adapter) placeholder(n int) string {
	if a.config.Dialect == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// convertKey turns a MySQL insert id into the key's Go type.
func convertKey(like any, id int64) (any, error) {
	t := reflect.TypeOf(like)
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return reflect.ValueOf(id).Convert(t).Interface(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrKeyNotReturned, t)
}
