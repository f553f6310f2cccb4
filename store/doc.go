// Package store persists fixtures to DynamoDB.
//
// [Adapter] plugs a [Store] into the factory package: every entity the
// factory builds, auto-created dependencies included, is written in its own
// transaction that also checks its parent exists, reserves its unique values
// and records it under its parent. The relationship records let a whole fixture
// tree be torn down from its root (see package stream).
//
// # Entity Interfaces
//
// All entities must implement [Entity]. Entities whose identifier the adapter
// should assign implement [Identifiable]; an empty ID is replaced by a random
// UUID before the write.
//
// Entities created under a parent implement [ParentChecker]:
//
//	func (p Post) ParentRef() string                  { return store.Ref("blog", p.BlogID) }
//	func (p Post) ParentCheck() *store.ConditionCheck { return store.ParentExists("blogs", p.BlogID) }
//
// Entities with values unique within their parent implement [UniqueFielder].
//
// Items are marshaled with attributevalue.MarshalMap, so struct fields take
// `dynamodbav` tags.
//
// # Configuration
//
// [DefaultConfig] suits most suites. Raise NumShards when one parent gets many
// children; teardown queries every shard in parallel.
//
// # Errors
//
//   - [ErrParentNotFound]: the parent is missing or deleted
//   - [ErrAlreadyExists]: the identifier is taken
//   - [ErrDuplicateValue]: a unique value is taken within the parent
//   - [ErrHasChildren]: Delete with OrphanProtect found live dependents
//   - [ErrNotFound]: Get found nothing, or a deleted item
//   - [ErrNotEntity]: the adapter was handed something that is not an [Entity]
package store
