// Package tracing records one OpenTelemetry span per persisted fixture.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jacentio/groundwork/factory"
)

const (
	instrumentationName = "github.com/jacentio/groundwork"

	// SpanName is the name of every persist span.
	SpanName = "groundwork.persist"

	// EntityKey is the span attribute holding the entity name.
	EntityKey = attribute.Key("groundwork.entity")
)

// Wrap returns an adapter that traces every call to next. A nil tp uses the
// global provider. Dependencies are persisted before their dependents, so the
// spans of one Create are siblings in persist order.
func Wrap(next factory.Adapter, tp trace.TracerProvider) factory.Adapter {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(instrumentationName)

	return factory.AdapterFunc(func(ctx context.Context, entity any) (any, error) {
		ctx, span := tracer.Start(ctx, SpanName,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(EntityKey.String(factory.EntityType(entity))),
		)
		defer span.End()

		out, err := next.Persist(ctx, entity)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return out, err
	})
}
