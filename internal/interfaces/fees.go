package interfaces

import (
	"context"

	"hedgedash/internal/types"
)

// FeeSource fetches the futures fee/margin reference table.
type FeeSource interface {
	Name() string
	FetchFees(ctx context.Context) ([]types.FeeRow, error)
}
