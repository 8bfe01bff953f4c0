package workerpresentation

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/payfacade/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/payfacade/app/internal/observability"
	"github.com/Zhima-Mochi/payfacade/app/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext injects a request-scoped logger for background/worker executions.
// Dynamic fields only: trace_id/span_id (if valid), event_id (generated if empty),
// plus caller-provided low-cardinality attributes (e.g. "use_case", "event").
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	tel observability.Observability,
	traceID trace.TraceID,
	spanID trace.SpanID,
	attrs map[string]string,
) context.Context {
	if base == nil && tel != nil {
		base = tel.Logger()
	}
	if base == nil {
		base = observability.NopLogger()
	}

	fields := make([]observability.Field, 0, 4+len(attrs))

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))

	if traceID.IsValid() {
		fields = append(fields, observability.F("trace_id", traceID.String()))
	}
	if spanID.IsValid() {
		fields = append(fields, observability.F("span_id", spanID.String()))
	}

	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	return logctx.With(ctx, base.With(fields...))
}

// identified is implemented by events that carry a stable id.
type identified interface {
	EventID() string
}

// EventMiddleware wraps a bus handler so each delivery runs with an event-scoped logger.
func EventMiddleware(base observability.Logger, tel observability.Observability) domoutbox.Middleware {
	return func(next domoutbox.Handler) domoutbox.Handler {
		return func(ctx context.Context, e domoutbox.Event) error {
			attrs := map[string]string{"event": e.EventName()}
			if id, ok := e.(identified); ok {
				attrs["event_id"] = id.EventID()
			}
			sc := trace.SpanContextFromContext(ctx)
			ctx = WithEventContext(ctx, logctx.FromOr(ctx, base), tel, sc.TraceID(), sc.SpanID(), attrs)
			return next(ctx, e)
		}
	}
}
