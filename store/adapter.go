package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/google/uuid"

	"github.com/jacentio/groundwork/factory"
)

// Adapter persists factory entities through a Store. Entities must implement
// Entity; those implementing Identifiable get a random UUID when their ID is
// empty. Items are marshaled with attributevalue.MarshalMap, so struct fields
// use `dynamodbav` tags.
type Adapter struct {
	store  *Store
	logger *slog.Logger
}

var _ factory.Adapter = (*Adapter)(nil)

// NewAdapter returns an Adapter writing through s.
func NewAdapter(s *Store, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{store: s, logger: logger}
}

// Persist implements factory.Adapter.
func (a *Adapter) Persist(ctx context.Context, v any) (any, error) {
	entity, ok := v.(Entity)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotEntity, v)
	}

	if ident, ok := entity.(Identifiable); ok && ident.ID() == "" {
		entity = ident.WithID(uuid.NewString())
	}

	item, err := attributevalue.MarshalMap(entity)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", entity.EntityType(), err)
	}

	if err := a.store.Create(ctx, entity, item); err != nil {
		return nil, err
	}

	a.logger.DebugContext(ctx, "fixture created",
		"entityRef", entity.EntityRef(),
		"table", entity.TableName(),
	)
	return entity, nil
}
