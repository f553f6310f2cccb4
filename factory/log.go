package factory

import (
	"context"
	"log/slog"

	"github.com/jacentio/groundwork/internal/ctxlog"
)

// WithLogger returns a copy of ctx whose resolutions log through logger.
// Without one, slog.Default() is used.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return ctxlog.WithLogger(ctx, logger)
}
