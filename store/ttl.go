package store

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// IsDeleted reports whether an item carries a TTL that has passed.
func IsDeleted(item map[string]types.AttributeValue) bool {
	n, ok := item["ttl"].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return false
	}
	return ttl <= time.Now().Unix()
}

// TTLFilterExpr is the filter expression excluding deleted items.
func TTLFilterExpr() string {
	return "attribute_not_exists(#ttl) OR #ttl > :now"
}

// ParentExistsCondition requires the parent to exist and not be deleted.
func ParentExistsCondition() string {
	return "attribute_exists(id) AND (attribute_not_exists(#ttl) OR #ttl > :now)"
}

func ttlNames() map[string]string {
	return map[string]string{"#ttl": "ttl"}
}

func number(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func str(s string) *types.AttributeValueMemberS {
	return &types.AttributeValueMemberS{Value: s}
}
