package fees

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"hedgedash/internal/interfaces"
	"hedgedash/internal/logger"
	"hedgedash/internal/types"
)

// ErrExhausted is returned inside the breaker when every attempt failed. It
// never escapes Fetch; callers see an empty table instead.
var ErrExhausted = errors.New("fee source exhausted all attempts")

// breakerTrips is how many consecutive exhausted fetches open the breaker.
const breakerTrips = 3

// Fetcher retries a FeeSource and degrades to an empty table when the source
// stays down. Only context cancellation is reported as an error.
type Fetcher struct {
	source      interfaces.FeeSource
	maxAttempts int
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
}

// NewFetcher builds a Fetcher. interval paces attempts; zero means no pacing.
func NewFetcher(source interfaces.FeeSource, maxAttempts int, interval, cooldown time.Duration) *Fetcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	settings := gobreaker.Settings{
		Name:    "fees-" + source.Name(),
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTrips
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "Fee source breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &Fetcher{
		source:      source,
		maxAttempts: maxAttempts,
		limiter:     rate.NewLimiter(limit, 1),
		breaker:     gobreaker.NewCircuitBreaker(settings),
	}
}

func (f *Fetcher) Name() string { return f.source.Name() }

// FetchFees lets a Fetcher stand in wherever a FeeSource is expected.
func (f *Fetcher) FetchFees(ctx context.Context) ([]types.FeeRow, error) {
	return f.Fetch(ctx)
}

// Fetch returns the fee table, or an empty slice when the source could not be
// reached within maxAttempts or the breaker is open.
func (f *Fetcher) Fetch(ctx context.Context) ([]types.FeeRow, error) {
	out, err := f.breaker.Execute(func() (interface{}, error) {
		return f.attempt(ctx)
	})

	switch {
	case err == nil:
		return out.([]types.FeeRow), nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		logger.Warn(ctx, "Fee source breaker open, returning empty table", "source", f.source.Name())
		return []types.FeeRow{}, nil
	default:
		logger.ErrorWithErr(ctx, "Fee data unavailable", err, "source", f.source.Name(), "attempts", f.maxAttempts)
		return []types.FeeRow{}, nil
	}
}

func (f *Fetcher) attempt(ctx context.Context) ([]types.FeeRow, error) {
	var lastErr error
	for i := 1; i <= f.maxAttempts; i++ {
		if err := f.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}

		rows, err := f.source.FetchFees(ctx)
		if err == nil {
			return rows, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		logger.Debug(ctx, "Fee fetch attempt failed", "source", f.source.Name(), "attempt", i, "error", err)
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrExhausted, f.maxAttempts, lastErr)
}
