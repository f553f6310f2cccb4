package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/jacentio/groundwork/factory"
	"github.com/jacentio/groundwork/schema"
	"github.com/jacentio/groundwork/sqlstore"
)

const blogSchema = `
entities:
  - name: org
    fields:
      - {name: id, type: int, role: primary}
      - {name: name, type: string, default: Acme}
  - name: user
    fields:
      - {name: id, type: int, role: primary}
      - {name: org_id, type: int, role: reference, references: org.id}
      - {name: email, type: string, role: required, sequence: "user-%d@example.com"}
  - name: blog
    fields:
      - {name: id, type: int, role: primary}
      - {name: user_id, type: int, role: reference, references: user.id}
      - {name: title, type: string}
  - name: post
    fields:
      - {name: id, type: int, role: primary}
      - {name: blog_id, type: int, role: reference, references: blog.id}
      - {name: reviewer_id, type: int, role: optional_reference, references: user.id}
      - {name: title, type: string, role: required}
      - {name: published, type: bool}
      - {name: score, type: float, default: 1}
  - name: tag
    fields:
      - {name: id, type: uuid, role: primary}
      - {name: label, type: string}
`

const ddl = `
CREATE TABLE orgs  (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE users (id INTEGER PRIMARY KEY, org_id INTEGER NOT NULL REFERENCES orgs(id), email TEXT NOT NULL UNIQUE);
CREATE TABLE blogs (id INTEGER PRIMARY KEY, user_id INTEGER NOT NULL REFERENCES users(id), title TEXT);
CREATE TABLE posts (
	id          INTEGER PRIMARY KEY,
	blog_id     INTEGER NOT NULL REFERENCES blogs(id),
	reviewer_id INTEGER REFERENCES users(id),
	title       TEXT NOT NULL,
	published   BOOLEAN NOT NULL,
	score       REAL NOT NULL
);
CREATE TABLE tags (id TEXT PRIMARY KEY, label TEXT);
`

func loadSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.Parse([]byte(blogSchema))
	require.NoError(t, err)
	return s
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)
	_, err = db.Exec(ddl)
	require.NoError(t, err)
	return db
}

func count(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT count(*) FROM "+table).Scan(&n))
	return n
}

// --- SQLite ---

func TestSQLite_CreatesDependencyChain(t *testing.T) {
	db := openSQLite(t)
	a, err := sqlstore.New(db, sqlstore.DefaultConfig())
	require.NoError(t, err)
	s := loadSchema(t)

	b, err := s.New("post")
	require.NoError(t, err)
	post, err := b.With("title", "Hello").Create(context.Background(), a)
	require.NoError(t, err)

	assert.Equal(t, int64(1), post.Get("id"))
	assert.Equal(t, int64(1), post.Get("blog_id"))
	assert.Nil(t, post.Get("reviewer_id"))
	for _, table := range []string{"orgs", "users", "blogs", "posts"} {
		assert.Equal(t, 1, count(t, db, table), table)
	}

	var (
		blogID     int64
		reviewerID sql.NullInt64
		score      float64
	)
	require.NoError(t, db.QueryRow("SELECT blog_id, reviewer_id, score FROM posts WHERE id = ?", post.Get("id")).
		Scan(&blogID, &reviewerID, &score))
	assert.Equal(t, int64(1), blogID)
	assert.False(t, reviewerID.Valid)
	assert.Equal(t, 1.0, score)
}

func TestSQLite_ExplicitReference(t *testing.T) {
	db := openSQLite(t)
	a, err := sqlstore.New(db, sqlstore.DefaultConfig())
	require.NoError(t, err)
	s := loadSchema(t)
	ctx := context.Background()

	blogs, err := s.Table("blog")
	require.NoError(t, err)
	blog, err := blogs.New().With("title", "Shared").Create(ctx, a)
	require.NoError(t, err)

	posts, err := s.Table("post")
	require.NoError(t, err)
	for _, title := range []string{"one", "two"} {
		_, err := posts.New().WithReference("blog", blog).With("title", title).Create(ctx, a)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, count(t, db, "blogs"))
	assert.Equal(t, 2, count(t, db, "posts"))
}

func TestSQLite_ForeignKeyViolation(t *testing.T) {
	db := openSQLite(t)
	a, err := sqlstore.New(db, sqlstore.DefaultConfig())
	require.NoError(t, err)
	s := loadSchema(t)

	b, err := s.New("post")
	require.NoError(t, err)
	_, err = b.WithReferenceID("blog_id", 99).With("title", "Orphan").Create(context.Background(), a)
	require.Error(t, err)

	var pe *factory.PersistError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "post", pe.Entity)
	assert.Equal(t, 0, count(t, db, "posts"))
}

func TestSQLite_UUIDKey(t *testing.T) {
	db := openSQLite(t)
	a, err := sqlstore.New(db, sqlstore.DefaultConfig())
	require.NoError(t, err)
	s := loadSchema(t)

	b, err := s.New("tag")
	require.NoError(t, err)
	tag, err := b.With("label", "go").Create(context.Background(), a)
	require.NoError(t, err)

	id, ok := tag.Get("id").(uuid.UUID)
	require.True(t, ok)
	assert.NotEqual(t, uuid.Nil, id)

	var stored string
	require.NoError(t, db.QueryRow("SELECT id FROM tags").Scan(&stored))
	assert.Equal(t, id.String(), stored)
}

// --- sqlmock ---

func TestPostgres_InsertOrder(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	a, err := sqlstore.New(db, sqlstore.Config{Dialect: sqlstore.Postgres})
	require.NoError(t, err)
	s := loadSchema(t)

	mock.ExpectQuery(`INSERT INTO "orgs" ("name") VALUES ($1) RETURNING "id"`).
		WithArgs("Acme").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(10)))
	mock.ExpectQuery(`INSERT INTO "users" ("org_id", "email") VALUES ($1, $2) RETURNING "id"`).
		WithArgs(int64(10), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(20)))
	mock.ExpectQuery(`INSERT INTO "blogs" ("user_id", "title") VALUES ($1, $2) RETURNING "id"`).
		WithArgs(int64(20), "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(30)))

	b, err := s.New("blog")
	require.NoError(t, err)
	blog, err := b.Create(context.Background(), a)
	require.NoError(t, err)

	assert.Equal(t, int64(30), blog.Get("id"))
	assert.Equal(t, int64(20), blog.Get("user_id"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FailureStopsChain(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	a, err := sqlstore.New(db, sqlstore.Config{Dialect: sqlstore.Postgres})
	require.NoError(t, err)
	s := loadSchema(t)

	boom := errors.New("connection reset")
	mock.ExpectQuery(`INSERT INTO "orgs" ("name") VALUES ($1) RETURNING "id"`).
		WithArgs("Acme").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery(`INSERT INTO "users" ("org_id", "email") VALUES ($1, $2) RETURNING "id"`).
		WillReturnError(boom)

	b, err := s.New("blog")
	require.NoError(t, err)
	_, err = b.Create(context.Background(), a)
	require.ErrorIs(t, err, boom)

	var pe *factory.PersistError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "user", pe.Entity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ExplicitKey(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	a, err := sqlstore.New(db, sqlstore.Config{Dialect: sqlstore.Postgres})
	require.NoError(t, err)
	s := loadSchema(t)

	mock.ExpectExec(`INSERT INTO "orgs" ("id", "name") VALUES ($1, $2)`).
		WithArgs(int64(7), "Acme").
		WillReturnResult(sqlmock.NewResult(0, 1))

	b, err := s.New("org")
	require.NoError(t, err)
	org, err := b.With("id", 7).Create(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int64(7), org.Get("id"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQL_LastInsertID(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	a, err := sqlstore.New(db, sqlstore.Config{Dialect: sqlstore.MySQL})
	require.NoError(t, err)
	s := loadSchema(t)

	mock.ExpectExec("INSERT INTO `orgs` (`name`) VALUES (?)").
		WithArgs("Acme").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec("INSERT INTO `users` (`org_id`, `email`) VALUES (?, ?)").
		WithArgs(int64(5), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(6, 1))

	b, err := s.New("user")
	require.NoError(t, err)
	user, err := b.Create(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int64(6), user.Get("id"))
	assert.Equal(t, int64(5), user.Get("org_id"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_UnknownDialect(t *testing.T) {
	_, err := sqlstore.New(nil, sqlstore.Config{Dialect: "oracle"})
	require.ErrorIs(t, err, sqlstore.ErrUnknownDialect)
}

func TestPersist_NotRecord(t *testing.T) {
	a, err := sqlstore.New(nil, sqlstore.Config{})
	require.NoError(t, err)
	_, err = a.Persist(context.Background(), struct{}{})
	require.ErrorIs(t, err, sqlstore.ErrNotRecord)
}
