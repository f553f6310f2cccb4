// Package factory builds test fixtures whose foreign keys resolve themselves.
//
// Each entity type gets an immutable Table describing its fields. A Builder
// stages the fields a test cares about; BuildWithFKs and Create walk the
// table's required references and, for every one still holding its sentinel,
// create the dependency first through the same machinery:
//
//	orgs := factory.MustTable("org", composeOrg,
//		factory.PrimaryKey("id", factory.Int64),
//	)
//	users := factory.MustTable("user", composeUser,
//		factory.PrimaryKey("id", factory.Int64),
//		factory.Ref("org_id", factory.Int64, orgs, func(o Org) int64 { return o.ID }),
//	)
//
//	u, err := users.New().Create(ctx, adapter) // persists an org, then the user
//
// Persistence goes through an Adapter. Adapters for DynamoDB, database/sql and
// pgx live in sibling packages; factorytest provides an in-memory one.
package factory
