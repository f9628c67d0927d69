package navobs

import (
	"context"
	"errors"
	"time"

	"hedgedash/internal/auth"
	"hedgedash/internal/interfaces"
	"hedgedash/internal/logger"
	"hedgedash/internal/metrics"
	"hedgedash/internal/trace"
	"hedgedash/internal/types"
)

// observableExtractor wraps NavExtractor with logging, tracing and scan metrics
type observableExtractor struct {
	inner   interfaces.NavExtractor
	metrics *metrics.Registry
}

// Wrap wraps a NavExtractor with observability middleware. m may be nil.
func Wrap(extractor interfaces.NavExtractor, m *metrics.Registry) interfaces.NavExtractor {
	return &observableExtractor{inner: extractor, metrics: m}
}

// Refresh never logs the password, only whether one was supplied.
func (o *observableExtractor) Refresh(ctx context.Context, password string) (*types.NavSummary, error) {
	ctx, span := trace.StartSpan(ctx, "navmail.Refresh")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Refreshing holdings", "password_supplied", password != "")
	start := time.Now()

	summary, err := o.inner.Refresh(ctx, password)

	if o.metrics != nil {
		o.metrics.NavScans.WithLabelValues(scanResult(err)).Inc()
	}
	if err != nil {
		trace.Fail(ctx, err)
		logger.ErrorWithErrSkip(ctx, 1, "Holdings refresh failed", err,
			"duration_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Holdings refreshed",
		"scan_id", summary.ScanID,
		"records", len(summary.Records),
		"messages", summary.Messages,
		"extract_errors", len(summary.Errors),
		"total_post", summary.TotalPost.StringFixed(2),
		"duration_ms", time.Since(start).Milliseconds())
	return summary, nil
}

func scanResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, auth.ErrEmptyPassword), errors.Is(err, auth.ErrBadPassword):
		return "denied"
	default:
		return "error"
	}
}
