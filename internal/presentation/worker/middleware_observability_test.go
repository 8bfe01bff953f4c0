package workerpresentation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	domoutbox "github.com/Zhima-Mochi/payfacade/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/payfacade/app/internal/domain/outcome"
	"github.com/Zhima-Mochi/payfacade/app/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/payfacade/app/internal/observability/logctx"
	workerpresentation "github.com/Zhima-Mochi/payfacade/app/internal/presentation/worker"
)

func TestEventMiddlewareScopesLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zaplogger.FromZap(zap.New(core))

	var handled bool
	h := workerpresentation.EventMiddleware(base, nil)(func(ctx context.Context, e domoutbox.Event) error {
		handled = true
		logctx.From(ctx).Info("inside")
		return nil
	})

	err := h(context.Background(), outcome.RecordedEvent{Entry: outcome.Entry{Seq: 42}})
	require.NoError(t, err)
	require.True(t, handled)

	entries := logs.FilterMessage("inside").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "outcome-42", fields["event_id"])
	assert.Equal(t, outcome.RecordedEventName, fields["event"])
	assert.NotContains(t, fields, "trace_id")
}

func TestWithEventContextGeneratesEventID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := workerpresentation.WithEventContext(context.Background(), zaplogger.FromZap(zap.New(core)), nil,
		trace.TraceID{}, trace.SpanID{}, nil)

	logctx.From(ctx).Info("probe")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ContextMap()["event_id"])
}
