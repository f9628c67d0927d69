package interfaces

import (
	"context"

	"hedgedash/internal/types"
)

// NavExtractor gates on the dashboard password and scans the mailbox for NAV notices.
type NavExtractor interface {
	Refresh(ctx context.Context, password string) (*types.NavSummary, error)
}
