package fees

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"hedgedash/internal/api"
	"hedgedash/internal/logger"
	"hedgedash/internal/types"
)

const aktoolsFeesPath = "/api/public/futures_fees_info"

// AKToolsSource reads the same fee table through a local AKTools HTTP server,
// which returns one JSON object per contract keyed by the column names.
type AKToolsSource struct {
	client *api.Client
}

func NewAKToolsSource(baseURL string, timeout time.Duration, opts ...api.ClientOption) *AKToolsSource {
	base := []api.ClientOption{
		api.WithBaseURL(baseURL),
		api.WithTimeout(timeout),
		api.WithHeader("Accept", "application/json"),
		api.WithLogging(logger.IsDebugEnabled()),
	}
	return &AKToolsSource{client: api.NewClient(append(base, opts...)...)}
}

func (s *AKToolsSource) Name() string { return "aktools" }

func (s *AKToolsSource) FetchFees(ctx context.Context) ([]types.FeeRow, error) {
	resp, err := s.client.GET(ctx, aktoolsFeesPath)
	if err != nil {
		return nil, fmt.Errorf("aktools request failed: %w", err)
	}

	var records []map[string]any
	if err := resp.ParseJSON(&records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrTableNotFound
	}

	rows := make([]types.FeeRow, 0, len(records))
	for _, rec := range records {
		row, err := rowFromRecord(stringify(rec))
		if err != nil {
			logger.Debug(ctx, "Skipping fee record", "error", err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func stringify(rec map[string]any) map[string]string {
	out := make(map[string]string, len(rec))
	for k, v := range rec {
		switch val := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}
