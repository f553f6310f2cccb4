package stream

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jacentio/groundwork/store"
)

const defaultConcurrency = 8

// Sweeper tears a fixture tree down in process, for local DynamoDB where
// neither streams nor TTL expiry run. Fixtures are processed one level at a
// time, up to Concurrency at once.
type Sweeper struct {
	// Concurrency bounds the fixtures processed in parallel. Default: 8.
	Concurrency int

	cascade cascade
	logger  *slog.Logger
}

// NewSweeper creates a Sweeper.
func NewSweeper(s *store.Store, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		Concurrency: defaultConcurrency,
		cascade:     cascade{store: s, logger: logger},
		logger:      logger,
	}
}

// Sweep marks root and everything created under it deleted. Running it again
// on the same root is harmless.
func (sw *Sweeper) Sweep(ctx context.Context, root store.Entity) error {
	ttl := time.Now().Unix()
	if err := sw.cascade.store.SetTTLByKey(ctx, root.TableName(), root.GetKey(), ttl); err != nil {
		return fmt.Errorf("mark %s deleted: %w", root.EntityRef(), err)
	}

	var parentRef string
	if pc, ok := root.(store.ParentChecker); ok {
		parentRef = pc.ParentRef()
	}
	level := []step{{
		ref:       root.EntityRef(),
		parentRef: parentRef,
		uniquePKs: store.UniqueKeys(root),
		ttl:       ttl,
	}}

	swept := 0
	for depth := 0; len(level) > 0; depth++ {
		next := make([][]step, len(level))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(sw.Concurrency, 1))
		for i, st := range level {
			g.Go(func() error {
				children, err := sw.cascade.run(gctx, st)
				if err != nil {
					return err
				}
				for _, child := range children {
					next[i] = append(next[i], step{
						ref:       child.Ref,
						parentRef: st.ref,
						uniquePKs: child.UniquePKs,
						ttl:       ttl,
					})
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		swept += len(level)
		level = slices.Concat(next...)
		sw.logger.Debug("sweep level done", "entityRef", root.EntityRef(), "depth", depth, "next", len(level))
	}

	sw.logger.Info("sweep completed", "entityRef", root.EntityRef(), "fixtures", swept)
	return nil
}
