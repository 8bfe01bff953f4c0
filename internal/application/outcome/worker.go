package outcome

import (
	"context"
	"fmt"
	"time"

	domoutbox "github.com/Zhima-Mochi/payfacade/app/internal/domain/outbox"
	domoutcome "github.com/Zhima-Mochi/payfacade/app/internal/domain/outcome"
	"github.com/Zhima-Mochi/payfacade/app/internal/observability"
	"github.com/Zhima-Mochi/payfacade/app/internal/observability/logctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	workerService  = "outcome_worker"
	useCaseRecord  = "outcome.worker.recorded"
	spanPrefix     = "Worker."
	archiveTimeout = 5 * time.Second
)

// Worker mirrors outcome entries published on the bus into the structured log,
// the outcome_entries_total counter and, when configured, the archive.
type Worker struct {
	subscriber domoutbox.Subscriber
	archive    domoutcome.Archive
	middleware []domoutbox.Middleware
	tel        observability.Observability

	log          observability.Logger
	entries      observability.Counter   // outcome_entries_total{level}
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func New(
	subscriber domoutbox.Subscriber,
	archive domoutcome.Archive,
	tel observability.Observability,
	middleware ...domoutbox.Middleware,
) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	return &Worker{
		subscriber:   subscriber,
		archive:      archive,
		middleware:   middleware,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", workerService)),
		entries:      metrics.Counter(observability.MOutcomeEntries),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil {
		return
	}
	var h domoutbox.Handler = w.Handle
	for i := len(w.middleware) - 1; i >= 0; i-- {
		h = w.middleware[i](h)
	}
	w.subscriber.Subscribe(domoutcome.RecordedEventName, h)
}

// Handle processes one outcome.recorded event.
func (w *Worker) Handle(ctx context.Context, e domoutbox.Event) (err error) {
	evt, ok := e.(domoutcome.RecordedEvent)
	if !ok {
		w.count("ignored")
		return nil
	}
	entry := evt.Entry

	ctx, span := w.tel.Tracer().Start(ctx, spanPrefix+"OutcomeRecorded",
		attribute.String("use_case", useCaseRecord),
		attribute.String("event", e.EventName()),
		attribute.Int64("outcome.seq", int64(entry.Seq)),
	)
	start := time.Now()
	outcome, status := "success", "OK"

	logger := logctx.FromOr(ctx, w.log).With(
		observability.F("use_case", useCaseRecord),
		observability.F("seq", entry.Seq),
	)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With(
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	ctx = logctx.With(ctx, logger)

	defer func() {
		lat := time.Since(start).Seconds()
		w.observe(outcome, lat)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", status),
			observability.F("latency_seconds", lat),
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Debug("use_case_done", fields...)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, status)
		} else {
			span.SetStatus(codes.Ok, status)
		}
		span.End()
	}()

	w.entries.Add(1, observability.L("level", string(entry.Level)))
	mirror := logger.Info
	if entry.Level == domoutcome.LevelError {
		mirror = logger.Warn
	}
	mirror("outcome_recorded",
		observability.F("level", string(entry.Level)),
		observability.F("message", entry.Message),
		observability.F("at", entry.At),
	)

	if w.archive == nil {
		return nil
	}
	actx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()
	if aerr := w.archive.Append(actx, entry); aerr != nil {
		outcome, status = "error", "ARCHIVE_FAILED"
		return fmt.Errorf("worker: archive outcome %d: %w", entry.Seq, aerr)
	}
	return nil
}

func (w *Worker) count(outcome string) {
	w.reqCounter.Add(1,
		observability.L("use_case", useCaseRecord),
		observability.L("outcome", outcome),
	)
}

func (w *Worker) observe(outcome string, latencySeconds float64) {
	w.count(outcome)
	w.durHistogram.Observe(latencySeconds,
		observability.L("use_case", useCaseRecord),
	)
}
