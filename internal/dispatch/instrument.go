package dispatch

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/BaSui01/aihub/types"
)

const instrumentationName = "github.com/BaSui01/aihub/dispatch"

// instruments holds the OTel tracer and meter instruments for dispatches.
// Instruments that fail to register are left nil and skipped.
type instruments struct {
	tracer   trace.Tracer
	total    metric.Int64Counter
	duration metric.Float64Histogram
	tokens   metric.Int64Counter
}

func newInstruments(tp trace.TracerProvider, mp metric.MeterProvider) *instruments {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	in := &instruments{tracer: tp.Tracer(instrumentationName)}
	in.total, _ = meter.Int64Counter("dispatch.request.total",
		metric.WithDescription("Total number of dispatched requests"),
		metric.WithUnit("{request}"))
	in.duration, _ = meter.Float64Histogram("dispatch.request.duration",
		metric.WithDescription("Dispatch duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60))
	in.tokens, _ = meter.Int64Counter("dispatch.token.total",
		metric.WithDescription("Tokens reported by providers"),
		metric.WithUnit("{token}"))
	return in
}

func (in *instruments) start(ctx context.Context, kind Kind, provider string) (context.Context, trace.Span) {
	return in.tracer.Start(ctx, "dispatch."+string(kind),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("dispatch.kind", string(kind)),
			attribute.String("dispatch.provider", provider),
		))
}

func (in *instruments) end(ctx context.Context, span trace.Span, kind Kind, provider string, env types.ResultEnvelope, elapsed time.Duration) {
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("kind", string(kind)),
		attribute.String("provider", provider),
		attribute.String("status", string(env.Status)),
	}
	if env.OK() {
		span.SetStatus(codes.Ok, "")
	} else {
		attrs = append(attrs, attribute.String("error_code", string(env.Code)))
		span.SetAttributes(attribute.String("dispatch.error_code", string(env.Code)))
		span.SetStatus(codes.Error, env.Error)
	}

	if in.total != nil {
		in.total.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if in.duration != nil {
		in.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
	}
}

func (in *instruments) recordTokens(ctx context.Context, provider string, out TextOutput) {
	if in.tokens == nil || out.PromptTokens+out.CompletionTokens == 0 {
		return
	}
	in.tokens.Add(ctx, int64(out.PromptTokens), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("model", out.Model),
		attribute.String("type", "prompt")))
	in.tokens.Add(ctx, int64(out.CompletionTokens), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("model", out.Model),
		attribute.String("type", "completion")))
}
