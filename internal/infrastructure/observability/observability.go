package observability

import (
	"github.com/Zhima-Mochi/payfacade/app/internal/observability"
)

// bundle is the Observability handed to the processor, the outcome worker and the HTTP layer.
type bundle struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics *instruments
}

// instruments resolves metric keys to the collectors registered at startup.
// A key without a collector resolves to a no-op and is reported once at debug level.
type instruments struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
	log        observability.Logger
}

func (m *instruments) Counter(key observability.MetricKey) observability.Counter {
	if c, ok := m.counters[key]; ok {
		return c
	}
	m.log.Debug("metric_not_registered", observability.F("metric", string(key)), observability.F("kind", "counter"))
	return observability.NopCounter()
}

func (m *instruments) Histogram(key observability.MetricKey) observability.Histogram {
	if h, ok := m.histograms[key]; ok {
		return h
	}
	m.log.Debug("metric_not_registered", observability.F("metric", string(key)), observability.F("kind", "histogram"))
	return observability.NopHistogram()
}

// withoutNil copies src, dropping keys bound to nil instruments.
func withoutNil[T any](src map[observability.MetricKey]T) map[observability.MetricKey]T {
	out := make(map[observability.MetricKey]T, len(src))
	for k, v := range src {
		if any(v) == nil {
			continue
		}
		out[k] = v
	}
	return out
}

// New builds the service's Observability from the tracer, the base logger and the
// instruments returned by prometrics.Standard. Nil parts degrade to no-ops.
func New(
	tracer observability.Tracer,
	logger observability.Logger,
	counters map[observability.MetricKey]observability.Counter,
	histograms map[observability.MetricKey]observability.Histogram,
) observability.Observability {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &bundle{
		tracer: tracer,
		logger: logger,
		metrics: &instruments{
			counters:   withoutNil(counters),
			histograms: withoutNil(histograms),
			log:        logger.With(observability.F("component", "metrics")),
		},
	}
}

// WithLogger returns an Observability that logs through l and shares o's tracer and
// instruments. main uses it to give the outcome worker its own component logger.
func WithLogger(o observability.Observability, l observability.Logger) observability.Observability {
	if o == nil {
		o = observability.Nop()
	}
	if l == nil {
		return o
	}
	if b, ok := o.(*bundle); ok {
		return &bundle{tracer: b.tracer, logger: l, metrics: b.metrics}
	}
	return &derived{Observability: o, logger: l}
}

// derived overrides the logger of a foreign Observability implementation.
type derived struct {
	observability.Observability
	logger observability.Logger
}

func (d *derived) Logger() observability.Logger { return d.logger }

func (b *bundle) Tracer() observability.Tracer   { return b.tracer }
func (b *bundle) Logger() observability.Logger   { return b.logger }
func (b *bundle) Metrics() observability.Metrics { return b.metrics }
