// Package stream tears down fixture trees: deleting a root marks every
// fixture created under it deleted as well.
package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jacentio/groundwork/store"
)

// step is the teardown of one fixture whose own item is already marked
// deleted as of ttl.
type step struct {
	ref       string
	parentRef string
	uniquePKs []string
	ttl       int64
}

// cascade runs teardown steps against a Store.
type cascade struct {
	store  *store.Store
	logger *slog.Logger
}

// run marks every child of st deleted, then releases st's own relationship and
// unique constraint records. It returns the children, deleted ones included,
// so repeated runs stay idempotent.
func (c cascade) run(ctx context.Context, st step) ([]store.ChildRef, error) {
	children, err := c.store.QueryAllChildren(ctx, st.ref)
	if err != nil {
		return nil, fmt.Errorf("query children of %s: %w", st.ref, err)
	}

	c.logger.Info("found children to cascade",
		"entityRef", st.ref,
		"childCount", len(children),
	)

	for _, child := range children {
		if err := c.store.SetTTLByKey(ctx, child.TableName, child.Key, st.ttl); err != nil {
			c.logger.Warn("failed to set TTL on child",
				"child", child.Ref,
				"error", err,
			)
		}
	}

	if st.parentRef != "" {
		if err := c.store.SetRelationshipTTL(ctx, st.ref, st.parentRef, st.ttl); err != nil {
			c.logger.Warn("failed to set relationship TTL",
				"entity", st.ref,
				"parent", st.parentRef,
				"error", err,
			)
		}
	}

	for _, pk := range st.uniquePKs {
		if err := c.store.SetUniqueConstraintTTL(ctx, pk, st.ttl); err != nil {
			c.logger.Warn("failed to set unique constraint TTL",
				"pk", pk,
				"error", err,
			)
		}
	}

	return children, nil
}
