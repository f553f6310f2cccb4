package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"

	"github.com/jacentio/groundwork/internal/shard"
)

// Client is the subset of *dynamodb.Client the store uses.
type Client interface {
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ Client = (*dynamodb.Client)(nil)

// Store writes fixtures to DynamoDB, recording each fixture under its parent so
// a whole tree can be torn down from its root.
type Store struct {
	client   Client
	config   Config
	registry *Registry
}

// New creates a Store.
func New(client Client, config Config) *Store {
	config.validate()
	return &Store{client: client, config: config}
}

// NewWithRegistry creates a Store with a relationship registry.
func NewWithRegistry(client Client, config Config, registry *Registry) *Store {
	s := New(client, config)
	s.registry = registry
	return s
}

// Registry returns the relationship registry, or nil if not set.
func (s *Store) Registry() *Registry {
	return s.registry
}

// Config returns the validated configuration.
func (s *Store) Config() Config {
	return s.config
}

func (s *Store) relationshipPK(parentRef, childRef string) string {
	return shard.RelationshipPK(parentRef, childRef, s.config.NumShards)
}

// createPlan is the transaction for one Create, with the positions of the items
// whose condition failures have a specific meaning.
type createPlan struct {
	items       []types.TransactWriteItem
	parentCheck int
	entityPut   int
}

// Create writes entity in one transaction together with its parent check,
// unique constraint records and relationship record.
func (s *Store) Create(ctx context.Context, entity Entity, item map[string]types.AttributeValue) error {
	plan := s.planCreate(entity, item, time.Now())
	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: plan.items,
	})
	return mapCreateError(err, plan)
}

func (s *Store) planCreate(entity Entity, item map[string]types.AttributeValue, now time.Time) createPlan {
	plan := createPlan{parentCheck: -1}

	var parentRef string
	if pc, ok := entity.(ParentChecker); ok {
		parentRef = pc.ParentRef()
		if check := pc.ParentCheck(); check != nil {
			plan.parentCheck = len(plan.items)
			plan.items = append(plan.items, parentCheckItem(check, now))
		}
	}

	created := now.UTC().Format(time.RFC3339)
	item["entity_ref"] = str(entity.EntityRef())
	item["version"] = number(1)
	item["created_at"] = str(created)
	item["updated_at"] = str(created)
	if parentRef != "" {
		item["parent_ref"] = str(parentRef)
	}

	var uniquePKs []types.AttributeValue
	if uf, ok := entity.(UniqueFielder); ok && parentRef != "" {
		fields := uf.UniqueFields()
		for _, field := range slices.Sorted(maps.Keys(fields)) {
			value := fields[field]
			pk := shard.UniqueConstraintPK(parentRef, entity.EntityType(), field, value)
			uniquePKs = append(uniquePKs, str(pk))
			plan.items = append(plan.items, s.uniqueItem(entity, parentRef, pk, field, value))
		}
		if len(uniquePKs) > 0 {
			item["_unique_pks"] = &types.AttributeValueMemberL{Value: uniquePKs}
		}
	}

	plan.entityPut = len(plan.items)
	plan.items = append(plan.items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(entity.TableName()),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		},
	})

	if parentRef != "" {
		plan.items = append(plan.items, s.relationshipItem(entity, parentRef, uniquePKs))
	}
	return plan
}

// UniqueKeys returns the unique constraint partition keys Create reserves for
// entity, sorted by field name.
func UniqueKeys(entity Entity) []string {
	uf, ok := entity.(UniqueFielder)
	if !ok {
		return nil
	}
	pc, ok := entity.(ParentChecker)
	if !ok || pc.ParentRef() == "" {
		return nil
	}
	fields := uf.UniqueFields()
	var pks []string
	for _, field := range slices.Sorted(maps.Keys(fields)) {
		pks = append(pks, shard.UniqueConstraintPK(pc.ParentRef(), entity.EntityType(), field, fields[field]))
	}
	return pks
}

func parentCheckItem(check *ConditionCheck, now time.Time) types.TransactWriteItem {
	cond := check.ConditionExpr
	if cond == "" {
		cond = ParentExistsCondition()
	}
	return types.TransactWriteItem{
		ConditionCheck: &types.ConditionCheck{
			TableName:                 aws.String(check.TableName),
			Key:                       check.Key,
			ConditionExpression:       aws.String(cond),
			ExpressionAttributeNames:  ttlNames(),
			ExpressionAttributeValues: map[string]types.AttributeValue{":now": number(now.Unix())},
		},
	}
}

func (s *Store) uniqueItem(entity Entity, parentRef, pk, field, value string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(s.config.UniqueTable),
			Item: map[string]types.AttributeValue{
				"pk":          str(pk),
				"sk":          str("CONSTRAINT"),
				"parent_ref":  str(parentRef),
				"entity_type": str(entity.EntityType()),
				"field_name":  str(field),
				"field_value": str(value),
				"entity_ref":  str(entity.EntityRef()),
			},
			ConditionExpression: aws.String("attribute_not_exists(pk)"),
		},
	}
}

// relationshipItem stores the child's key as-is; SetTTLByKey reuses it verbatim.
func (s *Store) relationshipItem(entity Entity, parentRef string, uniquePKs []types.AttributeValue) types.TransactWriteItem {
	childRef := entity.EntityRef()
	item := map[string]types.AttributeValue{
		"pk":          str(s.relationshipPK(parentRef, childRef)),
		"child_ref":   str(childRef),
		"parent_ref":  str(parentRef),
		"child_type":  str(entity.EntityType()),
		"child_table": str(entity.TableName()),
		"child_key":   &types.AttributeValueMemberM{Value: entity.GetKey()},
	}
	if len(uniquePKs) > 0 {
		item["_unique_pks"] = &types.AttributeValueMemberL{Value: uniquePKs}
	}
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(s.config.RelationshipTable),
			Item:      item,
		},
	}
}

// Get retrieves an entity by key, returning ErrNotFound if deleted or missing.
func (s *Store) Get(ctx context.Context, table string, key PK) (*Item, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       key,
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil || IsDeleted(out.Item) {
		return nil, ErrNotFound
	}
	return unmarshalItem(out.Item), nil
}

// DeleteOptions configures Delete.
type DeleteOptions struct {
	// OrphanProtect fails the delete while active children exist.
	OrphanProtect bool
}

// Delete marks entity deleted by setting its TTL. Dependents are handled by a
// Sweeper or by the stream Handler.
func (s *Store) Delete(ctx context.Context, entity Entity, opts DeleteOptions) error {
	if opts.OrphanProtect {
		busy, err := s.HasActiveChildren(ctx, entity.EntityRef())
		if err != nil {
			return err
		}
		if busy {
			return ErrHasChildren
		}
	}
	return s.SetTTLByKey(ctx, entity.TableName(), entity.GetKey(), time.Now().Unix())
}

// HasActiveChildren reports whether any live fixture was created under entityRef.
func (s *Store) HasActiveChildren(ctx context.Context, entityRef string) (bool, error) {
	now := time.Now().Unix()
	var active atomic.Bool

	g, ctx := errgroup.WithContext(ctx)
	for n := range s.config.NumShards {
		g.Go(func() error {
			out, err := s.client.Query(ctx, &dynamodb.QueryInput{
				TableName:                aws.String(s.config.RelationshipTable),
				KeyConditionExpression:   aws.String("pk = :pk"),
				FilterExpression:         aws.String(TTLFilterExpr()),
				ExpressionAttributeNames: ttlNames(),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":pk":  str(shard.PK(entityRef, n)),
					":now": number(now),
				},
				Limit: aws.Int32(1),
			})
			if err != nil {
				return fmt.Errorf("shard %02x: %w", n, err)
			}
			if len(out.Items) > 0 {
				active.Store(true)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}
	return active.Load(), nil
}

// QueryAllChildren returns every relationship record under parentRef, deleted
// ones included, so teardown stays idempotent.
func (s *Store) QueryAllChildren(ctx context.Context, parentRef string) ([]ChildRef, error) {
	perShard := make([][]ChildRef, s.config.NumShards)

	g, ctx := errgroup.WithContext(ctx)
	for n := range s.config.NumShards {
		g.Go(func() error {
			pk := shard.PK(parentRef, n)
			paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
				TableName:              aws.String(s.config.RelationshipTable),
				KeyConditionExpression: aws.String("pk = :pk"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":pk": str(pk),
				},
			})
			for paginator.HasMorePages() {
				page, err := paginator.NextPage(ctx)
				if err != nil {
					return fmt.Errorf("shard %02x: %w", n, err)
				}
				for _, item := range page.Items {
					perShard[n] = append(perShard[n], unmarshalChildRef(item, pk))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var children []ChildRef
	for _, refs := range perShard {
		children = append(children, refs...)
	}
	return children, nil
}

// SetTTLByKey marks the item at key deleted as of ttl. Already deleted items
// are left alone.
func (s *Store) SetTTLByKey(ctx context.Context, table string, key PK, ttl int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(table),
		Key:                 key,
		UpdateExpression:    aws.String("SET #ttl = :ttl, #version = #version + :one"),
		ConditionExpression: aws.String("attribute_not_exists(#ttl)"),
		ExpressionAttributeNames: map[string]string{
			"#ttl":     "ttl",
			"#version": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ttl": number(ttl),
			":one": number(1),
		},
	})
	return ignoreConditionFailure(err)
}

// SetRelationshipTTL marks the relationship record of childRef under parentRef deleted.
func (s *Store) SetRelationshipTTL(ctx context.Context, childRef, parentRef string, ttl int64) error {
	return s.setRecordTTL(ctx, s.config.RelationshipTable, PK{
		"pk":        str(s.relationshipPK(parentRef, childRef)),
		"child_ref": str(childRef),
	}, ttl)
}

// SetUniqueConstraintTTL marks a unique constraint record deleted.
func (s *Store) SetUniqueConstraintTTL(ctx context.Context, pk string, ttl int64) error {
	return s.setRecordTTL(ctx, s.config.UniqueTable, PK{
		"pk": str(pk),
		"sk": str("CONSTRAINT"),
	}, ttl)
}

func (s *Store) setRecordTTL(ctx context.Context, table string, key PK, ttl int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       key,
		UpdateExpression:          aws.String("SET #ttl = :ttl"),
		ConditionExpression:       aws.String("attribute_not_exists(#ttl)"),
		ExpressionAttributeNames:  ttlNames(),
		ExpressionAttributeValues: map[string]types.AttributeValue{":ttl": number(ttl)},
	})
	return ignoreConditionFailure(err)
}

func ignoreConditionFailure(err error) error {
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	return err
}

// mapCreateError turns a cancelled create transaction into the store error
// matching the item whose condition failed.
func mapCreateError(err error, plan createPlan) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if !errors.As(err, &txErr) {
		return err
	}
	for i, reason := range txErr.CancellationReasons {
		if aws.ToString(reason.Code) != "ConditionalCheckFailed" {
			continue
		}
		switch i {
		case plan.parentCheck:
			return ErrParentNotFound
		case plan.entityPut:
			return ErrAlreadyExists
		default:
			return ErrDuplicateValue
		}
	}
	return err
}

func unmarshalItem(raw map[string]types.AttributeValue) *Item {
	item := &Item{Raw: raw}
	if v, ok := raw["version"].(*types.AttributeValueMemberN); ok {
		item.Version, _ = strconv.ParseInt(v.Value, 10, 64)
	}
	if v, ok := raw["created_at"].(*types.AttributeValueMemberS); ok {
		item.CreatedAt = v.Value
	}
	if v, ok := raw["entity_ref"].(*types.AttributeValueMemberS); ok {
		item.EntityRef = v.Value
	}
	if v, ok := raw["parent_ref"].(*types.AttributeValueMemberS); ok {
		item.ParentRef = v.Value
	}
	return item
}

func unmarshalChildRef(item map[string]types.AttributeValue, shardPK string) ChildRef {
	ref := ChildRef{ShardPK: shardPK}
	if v, ok := item["child_ref"].(*types.AttributeValueMemberS); ok {
		ref.Ref = v.Value
	}
	if v, ok := item["child_table"].(*types.AttributeValueMemberS); ok {
		ref.TableName = v.Value
	}
	if v, ok := item["child_key"].(*types.AttributeValueMemberM); ok {
		ref.Key = v.Value
	}
	if v, ok := item["_unique_pks"].(*types.AttributeValueMemberL); ok {
		for _, pk := range v.Value {
			if s, ok := pk.(*types.AttributeValueMemberS); ok {
				ref.UniquePKs = append(ref.UniquePKs, s.Value)
			}
		}
	}
	return ref
}
