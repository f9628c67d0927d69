package hedgeobs

import (
	"context"
	"time"

	"hedgedash/internal/interfaces"
	"hedgedash/internal/logger"
	"hedgedash/internal/metrics"
	"hedgedash/internal/trace"
	"hedgedash/internal/types"
)

type observableCalculator struct {
	inner   interfaces.HedgeCalculator
	metrics *metrics.Registry
}

// Wrap wraps a HedgeCalculator with logging, tracing and a computation counter.
func Wrap(calc interfaces.HedgeCalculator, m *metrics.Registry) interfaces.HedgeCalculator {
	return &observableCalculator{inner: calc, metrics: m}
}

func (o *observableCalculator) Compute(ctx context.Context, notionalWan float64) (*types.HedgeTable, error) {
	ctx, span := trace.StartSpan(ctx, "hedge.Compute")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Computing hedge", "notional_wan", notionalWan)
	start := time.Now()

	table, err := o.inner.Compute(ctx, notionalWan)

	if o.metrics != nil {
		o.metrics.HedgeComputations.WithLabelValues(metrics.Result(err)).Inc()
	}
	if err != nil {
		trace.Fail(ctx, err)
		logger.ErrorWithErrSkip(ctx, 1, "Hedge computation failed", err,
			"notional_wan", notionalWan,
			"duration_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Hedge computed",
		"notional_wan", notionalWan,
		"contracts", len(table.Rows),
		"data_updated", table.DataUpdated,
		"duration_ms", time.Since(start).Milliseconds())
	return table, nil
}
