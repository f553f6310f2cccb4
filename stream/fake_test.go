package stream_test

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/groundwork/store"
)

// fakeClient serves relationship records from memory and records TTL updates
// as "table/key". Keys that are not a string attribute are recorded as
// "table/<malformed key>".
type fakeClient struct {
	mu       sync.Mutex
	children map[string][]map[string]types.AttributeValue
	updated  []string
	queryErr error
}

var _ store.Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{children: make(map[string][]map[string]types.AttributeValue)}
}

// addChild records child under parentRef in shard 00.
func (f *fakeClient) addChild(parentRef, childRef, table, id string, uniquePKs ...string) {
	rec := map[string]types.AttributeValue{
		"child_ref":   &types.AttributeValueMemberS{Value: childRef},
		"child_table": &types.AttributeValueMemberS{Value: table},
		"child_key":   &types.AttributeValueMemberM{Value: store.IDKey(id)},
	}
	if len(uniquePKs) > 0 {
		var list []types.AttributeValue
		for _, pk := range uniquePKs {
			list = append(list, &types.AttributeValueMemberS{Value: pk})
		}
		rec["_unique_pks"] = &types.AttributeValueMemberL{Value: list}
	}
	pk := parentRef + "#00"
	f.children[pk] = append(f.children[pk], rec)
}

// TransactWriteItems keeps the relationship records Store.Create writes so
// Query can serve them back.
func (f *fakeClient) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range in.TransactItems {
		if tx.Put == nil || aws.ToString(tx.Put.TableName) != "groundwork_relationships" {
			continue
		}
		pk := tx.Put.Item["pk"].(*types.AttributeValueMemberS).Value
		f.children[pk] = append(f.children[pk], tx.Put.Item)
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeClient) GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{}, nil
}

func (f *fakeClient) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := in.Key["id"]
	if key == nil {
		key = in.Key["child_ref"]
	}
	if key == nil {
		key = in.Key["pk"]
	}
	id := "<malformed key>"
	if v, ok := key.(*types.AttributeValueMemberS); ok {
		id = v.Value
	}
	f.updated = append(f.updated, aws.ToString(in.TableName)+"/"+id)
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeClient) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	pk := in.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value
	return &dynamodb.QueryOutput{Items: f.children[pk]}, nil
}

func (f *fakeClient) updates() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := make(map[string]bool, len(f.updated))
	for _, u := range f.updated {
		set[u] = true
	}
	return set
}
