// Package correlation propagates a per-run correlation ID through contexts
// so log lines and downstream calls of one promotion run can be tied
// together across process boundaries.
package correlation

import (
	"context"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"
)

type correlationKey struct{}

// FromContext fetches the correlation ID from the context if present.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(correlationKey{}).(string); ok {
		return val
	}
	return ""
}

// WithCorrelationID sets the correlation ID onto the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// EnsureCorrelationID guarantees a correlation ID on the context, generating
// a ULID when missing.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	cid := FromContext(ctx)
	if cid == "" {
		cid = ulid.Make().String()
	}
	return WithCorrelationID(ctx, cid), cid
}

// WithRemoteSpan seeds the context with a remote parent span when valid
// identifiers arrive from an upstream trigger.
func WithRemoteSpan(ctx context.Context, traceIDHex, spanIDHex string) context.Context {
	if traceIDHex == "" || spanIDHex == "" {
		return ctx
	}

	traceID, err := trace.TraceIDFromHex(traceIDHex)
	if err != nil {
		return ctx
	}
	spanID, err := trace.SpanIDFromHex(spanIDHex)
	if err != nil {
		return ctx
	}

	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	return trace.ContextWithSpanContext(ctx, parent)
}
