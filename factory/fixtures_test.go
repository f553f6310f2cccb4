package factory_test

import (
	"github.com/jacentio/groundwork/factory"
	"github.com/jacentio/groundwork/factorytest"
)

type Org struct {
	ID   int64
	Name string
}

func (Org) EntityType() string { return "org" }

type User struct {
	ID    int64
	OrgID int64
	Email string
}

func (User) EntityType() string { return "user" }

type Blog struct {
	ID     int64
	UserID int64
	Title  string
}

func (Blog) EntityType() string { return "blog" }

type Post struct {
	ID         int64
	BlogID     int64
	ReviewerID *int64
	Title      string
	Body       string
}

func (Post) EntityType() string { return "post" }

var (
	orgs = factory.MustTable("org",
		func(v factory.Values) Org {
			return Org{ID: factory.Get[int64](v, "id"), Name: factory.Get[string](v, "name")}
		},
		factory.PrimaryKey("id", factory.Int64),
		factory.FieldDefault("name", func() string { return "Acme" }),
	)

	users = factory.MustTable("user",
		func(v factory.Values) User {
			return User{
				ID:    factory.Get[int64](v, "id"),
				OrgID: factory.Get[int64](v, "org_id"),
				Email: factory.Get[string](v, "email"),
			}
		},
		factory.PrimaryKey("id", factory.Int64),
		factory.Ref("org_id", factory.Int64, orgs, func(o Org) int64 { return o.ID }),
		factory.RequiredDefault("email", func() string { return "user@example.com" }),
	)

	blogs = factory.MustTable("blog",
		func(v factory.Values) Blog {
			return Blog{
				ID:     factory.Get[int64](v, "id"),
				UserID: factory.Get[int64](v, "user_id"),
				Title:  factory.Get[string](v, "title"),
			}
		},
		factory.PrimaryKey("id", factory.Int64),
		factory.Ref("user_id", factory.Int64, users, func(u User) int64 { return u.ID }),
		factory.Field[string]("title"),
	)

	posts = factory.MustTable("post",
		func(v factory.Values) Post {
			return Post{
				ID:         factory.Get[int64](v, "id"),
				BlogID:     factory.Get[int64](v, "blog_id"),
				ReviewerID: factory.Get[*int64](v, "reviewer_id"),
				Title:      factory.Get[string](v, "title"),
				Body:       factory.Get[string](v, "body"),
			}
		},
		factory.PrimaryKey("id", factory.Int64),
		factory.Ref("blog_id", factory.Int64, blogs, func(b Blog) int64 { return b.ID }),
		factory.OptionalRef("reviewer_id", users, func(u User) int64 { return u.ID }),
		factory.Required[string]("title"),
		factory.Field[string]("body"),
	)
)

// newBackend returns an in-memory backend numbering every fixture type from 1.
func newBackend() *factorytest.Memory {
	m := factorytest.New()
	factorytest.Assign(m, func(o Org, id int64) Org { o.ID = id; return o })
	factorytest.Assign(m, func(u User, id int64) User { u.ID = id; return u })
	factorytest.Assign(m, func(b Blog, id int64) Blog { b.ID = id; return b })
	factorytest.Assign(m, func(p Post, id int64) Post { p.ID = id; return p })
	return m
}
