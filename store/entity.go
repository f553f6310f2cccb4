package store

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// Entity is a fixture the store can persist.
type Entity interface {
	// TableName returns the DynamoDB table the entity lives in.
	TableName() string

	// GetKey returns the entity's primary key.
	GetKey() PK

	// EntityRef returns the type-qualified reference, e.g. "blog#<id>".
	EntityRef() string

	// EntityType returns the entity type name, e.g. "blog".
	EntityType() string
}

// Identifiable is implemented by entities whose identifier the adapter assigns.
type Identifiable interface {
	// ID returns the current identifier; "" means unassigned.
	ID() string

	// WithID returns a copy of the entity carrying id.
	WithID(id string) Entity
}

// ParentChecker is implemented by entities created under a parent fixture.
type ParentChecker interface {
	// ParentCheck returns the condition verifying the parent exists,
	// or nil to skip verification.
	ParentCheck() *ConditionCheck

	// ParentRef returns the parent's entity reference, or "" for roots.
	ParentRef() string
}

// ConditionCheck is a parent existence check run in the create transaction.
type ConditionCheck struct {
	TableName string
	Key       PK

	// ConditionExpr overrides ParentExistsCondition when set.
	ConditionExpr string
}

// UniqueFielder is implemented by entities with values unique under their parent.
type UniqueFielder interface {
	UniqueFields() map[string]string
}

// Item is a stored entity with its managed attributes decoded.
type Item struct {
	Raw       map[string]types.AttributeValue
	Version   int64
	CreatedAt string
	EntityRef string
	ParentRef string
}

// ChildRef points at a dependent recorded in the relationship table.
type ChildRef struct {
	// Ref is the child's entity reference.
	Ref string

	// TableName and Key locate the child item.
	TableName string
	Key       PK

	// ShardPK is the relationship record's partition key.
	ShardPK string

	// UniquePKs are the child's unique constraint keys.
	UniquePKs []string
}

// Ref joins an entity type and identifier into an entity reference.
func Ref(entityType, id string) string {
	return entityType + "#" + id
}

// IDKey is the key of a table whose hash key is the string attribute "id".
func IDKey(id string) PK {
	return PK{"id": &types.AttributeValueMemberS{Value: id}}
}

// ParentExists is the ConditionCheck for a parent stored under IDKey(id) in table.
func ParentExists(table, id string) *ConditionCheck {
	return &ConditionCheck{TableName: table, Key: IDKey(id)}
}
