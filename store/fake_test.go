package store_test

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/groundwork/store"
)

// fakeClient records every call and answers from canned data.
type fakeClient struct {
	mu sync.Mutex

	txs     []*dynamodb.TransactWriteItemsInput
	updates []*dynamodb.UpdateItemInput
	queries []*dynamodb.QueryInput

	// rows answers GetItem by table name.
	rows map[string]map[string]types.AttributeValue

	// children answers Query by partition key.
	children map[string][]map[string]types.AttributeValue

	txErr     error
	updateErr error
	queryErr  error
}

var _ store.Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{
		rows:     make(map[string]map[string]types.AttributeValue),
		children: make(map[string][]map[string]types.AttributeValue),
	}
}

func (f *fakeClient) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = append(f.txs, in)
	if f.txErr != nil {
		return nil, f.txErr
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.rows[aws.ToString(in.TableName)]}, nil
}

func (f *fakeClient) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, in)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeClient) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, in)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	pk := in.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value
	return &dynamodb.QueryOutput{Items: f.children[pk]}, nil
}

func (f *fakeClient) putItems() [][]types.TransactWriteItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]types.TransactWriteItem
	for _, tx := range f.txs {
		out = append(out, tx.TransactItems)
	}
	return out
}

func attrS(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func attrN(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberN); ok {
		return v.Value
	}
	return ""
}
