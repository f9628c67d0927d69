package interfaces

import (
	"context"

	"hedgedash/internal/types"
)

type HedgeCalculator interface {
	Compute(ctx context.Context, notionalWan float64) (*types.HedgeTable, error)
}
