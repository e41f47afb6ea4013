package dal

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TraceableReader wraps an EntityReader with one span per call, named
// "<entity>.read_raw", "<entity>.read_basic" or "<entity>.read_detail".
type TraceableReader struct {
	next   EntityReader
	tracer trace.Tracer
}

func NewTraceableReader(next EntityReader, tracer trace.Tracer) *TraceableReader {
	return &TraceableReader{next: next, tracer: tracer}
}

func (r *TraceableReader) ReadRaw(ctx context.Context, definition string, ids []string, sc ShopContext) (*Collection[*Record], error) {
	return traced(ctx, r.tracer, definition+".read_raw", idAttributes(definition, ids), func(ctx context.Context) (*Collection[*Record], error) {
		return r.next.ReadRaw(ctx, definition, ids, sc)
	})
}

func (r *TraceableReader) ReadBasic(ctx context.Context, definition string, ids []string, sc ShopContext) (*Collection[*Record], error) {
	return traced(ctx, r.tracer, definition+".read_basic", idAttributes(definition, ids), func(ctx context.Context) (*Collection[*Record], error) {
		return r.next.ReadBasic(ctx, definition, ids, sc)
	})
}

func (r *TraceableReader) ReadDetail(ctx context.Context, definition string, ids []string, sc ShopContext) (*Collection[*Record], error) {
	return traced(ctx, r.tracer, definition+".read_detail", idAttributes(definition, ids), func(ctx context.Context) (*Collection[*Record], error) {
		return r.next.ReadDetail(ctx, definition, ids, sc)
	})
}

// TraceableSearcher wraps an EntitySearcher with a "<entity>.search_ids" span.
type TraceableSearcher struct {
	next   EntitySearcher
	tracer trace.Tracer
}

func NewTraceableSearcher(next EntitySearcher, tracer trace.Tracer) *TraceableSearcher {
	return &TraceableSearcher{next: next, tracer: tracer}
}

func (s *TraceableSearcher) SearchIDs(ctx context.Context, definition string, criteria *Criteria, sc ShopContext) (*IDSearchResult, error) {
	attrs := []attribute.KeyValue{attribute.String("dal.entity", definition)}
	if criteria != nil {
		attrs = append(attrs,
			attribute.Int("dal.filters", len(criteria.Filters)),
			attribute.Int("dal.limit", criteria.Limit),
			attribute.Int("dal.offset", criteria.Offset),
		)
	}
	return traced(ctx, s.tracer, definition+".search_ids", attrs, func(ctx context.Context) (*IDSearchResult, error) {
		return s.next.SearchIDs(ctx, definition, criteria, sc)
	})
}

func idAttributes(definition string, ids []string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("dal.entity", definition),
		attribute.Int("dal.ids", len(ids)),
	}
}

// traced runs fn inside a span that is ended on every exit path.
// The outcome of fn is returned unchanged.
func traced[T any](ctx context.Context, tracer trace.Tracer, name string, attrs []attribute.KeyValue, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	defer span.End()

	result, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}
