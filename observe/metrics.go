package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Cache lookup results recorded by RecordLookup.
const (
	LookupHit     = "hit"
	LookupMiss    = "miss"
	LookupInvalid = "invalid"
	LookupError   = "error"
)

// Metrics records cache and invocation metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordLookup records one cache lookup with its result (hit|miss|invalid|error).
	RecordLookup(ctx context.Context, namespace, result string)

	// RecordStore records one cache write; err is nil on success.
	RecordStore(ctx context.Context, namespace string, err error)

	// RecordAttempt records one remote-call attempt; err is nil on success.
	RecordAttempt(ctx context.Context, meta OperationMeta, err error)

	// RecordInvocation records a finished invocation with its outcome.
	RecordInvocation(ctx context.Context, meta OperationMeta, outcome string, duration time.Duration)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	lookups      metric.Int64Counter
	stores       metric.Int64Counter
	storeErrors  metric.Int64Counter
	attempts     metric.Int64Counter
	attemptErrs  metric.Int64Counter
	outcomes     metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates a Metrics instance with instruments from meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	lookups, err := meter.Int64Counter(
		"invoke.cache.lookups",
		metric.WithDescription("Cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	stores, err := meter.Int64Counter(
		"invoke.cache.stores",
		metric.WithDescription("Cache writes"),
		metric.WithUnit("{write}"),
	)
	if err != nil {
		return nil, err
	}

	storeErrors, err := meter.Int64Counter(
		"invoke.cache.store_errors",
		metric.WithDescription("Cache writes that failed"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	attempts, err := meter.Int64Counter(
		"invoke.attempts",
		metric.WithDescription("Remote-call attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	attemptErrs, err := meter.Int64Counter(
		"invoke.attempt_errors",
		metric.WithDescription("Remote-call attempts that failed or did not validate"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	outcomes, err := meter.Int64Counter(
		"invoke.outcomes",
		metric.WithDescription("Finished invocations by outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"invoke.duration_ms",
		metric.WithDescription("Invocation duration in milliseconds, including retries"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		lookups:      lookups,
		stores:       stores,
		storeErrors:  storeErrors,
		attempts:     attempts,
		attemptErrs:  attemptErrs,
		outcomes:     outcomes,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordLookup(ctx context.Context, namespace, result string) {
	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op.namespace", namespace),
		attribute.String("result", result),
	))
}

func (m *metricsImpl) RecordStore(ctx context.Context, namespace string, err error) {
	opt := metric.WithAttributes(attribute.String("op.namespace", namespace))
	m.stores.Add(ctx, 1, opt)
	if err != nil {
		m.storeErrors.Add(ctx, 1, opt)
	}
}

func (m *metricsImpl) RecordAttempt(ctx context.Context, meta OperationMeta, err error) {
	opt := metric.WithAttributes(metaAttrs(meta)...)
	m.attempts.Add(ctx, 1, opt)
	if err != nil {
		m.attemptErrs.Add(ctx, 1, opt)
	}
}

func (m *metricsImpl) RecordInvocation(ctx context.Context, meta OperationMeta, outcome string, duration time.Duration) {
	attrs := append(metaAttrs(meta), attribute.String("outcome", outcome))
	opt := metric.WithAttributes(attrs...)
	m.outcomes.Add(ctx, 1, opt)
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func metaAttrs(meta OperationMeta) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("op.id", meta.ID())}
	if meta.Namespace != "" {
		attrs = append(attrs, attribute.String("op.namespace", meta.Namespace))
	}
	return attrs
}

// nopMetrics is a metrics implementation that does nothing.
type nopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return nopMetrics{} }

func (nopMetrics) RecordLookup(context.Context, string, string)                            {}
func (nopMetrics) RecordStore(context.Context, string, error)                              {}
func (nopMetrics) RecordAttempt(context.Context, OperationMeta, error)                     {}
func (nopMetrics) RecordInvocation(context.Context, OperationMeta, string, time.Duration) {}
