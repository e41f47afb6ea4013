// Package tracing sets up the OpenTelemetry tracer provider of the service.
package tracing

import (
	"context"

	"github.com/fekuna/omnipos-product-dal/internal/logger"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// NewProvider returns a tracer provider that logs every ended span.
func NewProvider(log logger.ZapLogger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(NewLogProcessor(log)),
	)
}

// LogProcessor writes ended spans to the logger at debug level, failed spans at warn.
type LogProcessor struct {
	logger logger.ZapLogger
}

func NewLogProcessor(log logger.ZapLogger) *LogProcessor {
	return &LogProcessor{logger: log}
}

func (p *LogProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *LogProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	fields := []zap.Field{
		zap.String("span", s.Name()),
		zap.String("trace_id", s.SpanContext().TraceID().String()),
		zap.Duration("duration", s.EndTime().Sub(s.StartTime())),
	}
	for _, attr := range s.Attributes() {
		fields = append(fields, zap.String(string(attr.Key), attr.Value.Emit()))
	}
	if s.Status().Code == codes.Error {
		p.logger.Warn("span failed", append(fields, zap.String("error", s.Status().Description))...)
		return
	}
	p.logger.Debug("span", fields...)
}

func (p *LogProcessor) Shutdown(context.Context) error { return nil }

func (p *LogProcessor) ForceFlush(context.Context) error { return nil }
