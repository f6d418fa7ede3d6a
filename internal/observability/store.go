package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"gatekeeper/internal/ratelimit"
)

// InstrumentedStore wraps a ratelimit.Store with OpenTelemetry metrics: a
// decision counter partitioned by outcome, an operation latency histogram,
// and an error counter. Store errors still propagate so the guard's
// fail-open handling is unchanged.
type InstrumentedStore struct {
	inner     ratelimit.Store
	decisions metric.Int64Counter
	duration  metric.Float64Histogram
	errors    metric.Int64Counter
}

// NewInstrumentedStore creates the metrics instruments and wraps the store.
func NewInstrumentedStore(inner ratelimit.Store) (*InstrumentedStore, error) {
	meter := otel.Meter("gatekeeper/ratelimit")

	decisions, err := meter.Int64Counter(
		"admission.decisions",
		metric.WithDescription("Number of admission decisions by outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"admission.counter.duration",
		metric.WithDescription("Duration of counter increments in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"admission.counter.errors",
		metric.WithDescription("Number of counter store errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStore{
		inner:     inner,
		decisions: decisions,
		duration:  duration,
		errors:    errCounter,
	}, nil
}

// Increment delegates to the wrapped store and records the outcome.
func (s *InstrumentedStore) Increment(key string, p ratelimit.Policy, now time.Time) (ratelimit.Result, error) {
	start := time.Now()
	res, err := s.inner.Increment(key, p, now)
	elapsed := time.Since(start).Seconds()

	// Client keys are unbounded cardinality; only the outcome is labeled.
	ctx := context.Background()
	s.duration.Record(ctx, elapsed)

	if err != nil {
		s.errors.Add(ctx, 1)
		return res, err
	}

	outcome := "admitted"
	if !res.Admitted {
		outcome = "denied"
	}
	s.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))

	return res, nil
}

// Close closes the wrapped store.
func (s *InstrumentedStore) Close() {
	s.inner.Close()
}
