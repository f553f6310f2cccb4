// Package shard computes partition keys for the relationship and unique
// constraint tables.
package shard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
)

// PK is the partition key of shard n of parentRef.
func PK(parentRef string, n int) string {
	return fmt.Sprintf("%s#%02x", parentRef, n)
}

// RelationshipPK picks the shard of parentRef that holds childRef's record.
// With numShards <= 1 every child lands in shard 00.
func RelationshipPK(parentRef, childRef string, numShards int) string {
	if numShards <= 1 {
		return PK(parentRef, 0)
	}
	h := fnv.New32a()
	h.Write([]byte(childRef))
	return PK(parentRef, int(h.Sum32()%uint32(numShards)))
}

// UniqueConstraintPK hashes a unique value within its parent scope so every
// constraint lands in its own partition.
func UniqueConstraintPK(parentRef, entityType, field, value string) string {
	sum := sha256.Sum256([]byte(parentRef + "#" + entityType + "#" + field + "#" + value))
	return hex.EncodeToString(sum[:16])
}
