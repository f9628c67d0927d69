package feesobs

import (
	"context"
	"time"

	"hedgedash/internal/interfaces"
	"hedgedash/internal/logger"
	"hedgedash/internal/metrics"
	"hedgedash/internal/trace"
	"hedgedash/internal/types"
)

// observableSource wraps a FeeSource with logging, tracing and attempt metrics
type observableSource struct {
	inner   interfaces.FeeSource
	metrics *metrics.Registry
}

// Wrap wraps a FeeSource with observability middleware. m may be nil.
func Wrap(source interfaces.FeeSource, m *metrics.Registry) interfaces.FeeSource {
	return &observableSource{inner: source, metrics: m}
}

func (o *observableSource) Name() string { return o.inner.Name() }

func (o *observableSource) FetchFees(ctx context.Context) ([]types.FeeRow, error) {
	ctx, span := trace.StartSpan(ctx, "fees.FetchFees")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching fee table", "source", o.inner.Name())
	start := time.Now()

	rows, err := o.inner.FetchFees(ctx)

	if o.metrics != nil {
		o.metrics.FeeFetchAttempts.WithLabelValues(o.inner.Name(), metrics.Result(err)).Inc()
	}

	if err != nil {
		trace.Fail(ctx, err)
		logger.ErrorWithErrSkip(ctx, 1, "Fee table fetch failed", err,
			"source", o.inner.Name(),
			"duration_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	if o.metrics != nil {
		o.metrics.FeeRows.Set(float64(len(rows)))
	}
	logger.InfoSkip(ctx, 1, "Fee table fetched",
		"source", o.inner.Name(),
		"rows", len(rows),
		"duration_ms", time.Since(start).Milliseconds())

	return rows, nil
}
