package store

import (
	"sync"

	"github.com/jacentio/groundwork/factory"
)

// Relationship says fixtures of ChildType are created under a ParentType.
type Relationship struct {
	// ParentType is the parent entity type, e.g. "blog".
	ParentType string

	// ChildType is the dependent entity type, e.g. "post".
	ChildType string

	// ChildTableName is the DynamoDB table of the child, e.g. "posts".
	ChildTableName string

	// ParentKeyAttr is the child attribute holding the parent's key, e.g. "blog_id".
	ParentKeyAttr string
}

// Registry holds the known parent-child relationships. It is safe for
// concurrent use.
type Registry struct {
	mu            sync.RWMutex
	relationships []Relationship
	byParent      map[string][]Relationship
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byParent: make(map[string][]Relationship)}
}

// Register adds a relationship.
func (r *Registry) Register(rel Relationship) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.relationships = append(r.relationships, rel)
	r.byParent[rel.ParentType] = append(r.byParent[rel.ParentType], rel)
}

// RegisterTable registers one relationship per required reference of t, whose
// entities are stored in childTable. Optional references are skipped because
// the parent does not own those children.
func (r *Registry) RegisterTable(t factory.Describer, childTable string) {
	for _, f := range t.Fields() {
		if f.Role != factory.RequiredReference {
			continue
		}
		r.Register(Relationship{
			ParentType:     f.Ref.Entity,
			ChildType:      t.Entity(),
			ChildTableName: childTable,
			ParentKeyAttr:  f.Name,
		})
	}
}

// ChildrenOf returns the relationships whose parent is parentType.
func (r *Registry) ChildrenOf(parentType string) []Relationship {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Relationship(nil), r.byParent[parentType]...)
}

// AllRelationships returns every registered relationship in registration order.
func (r *Registry) AllRelationships() []Relationship {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Relationship(nil), r.relationships...)
}

// HasChildren reports whether parentType has any registered children.
func (r *Registry) HasChildren(parentType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byParent[parentType]) > 0
}
