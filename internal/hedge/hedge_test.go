package hedge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgedash/internal/store"
	"hedgedash/internal/types"
)

type staticSource struct {
	rows  []types.FeeRow
	err   error
	calls int
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) FetchFees(ctx context.Context) ([]types.FeeRow, error) {
	s.calls++
	return s.rows, s.err
}

func defaultOptions() Options {
	return OptionsFromConfig(store.Default())
}

func imRow() types.FeeRow {
	return types.FeeRow{
		Code: "IM2503", Name: "中证1000", LastPrice: 6000, PrevClose: 5940,
		Multiplier: 200, LongMarginRate: 0.12, ShortMarginRate: 0.14,
		OpenInterest: 80000, UpdatedAt: "2025-01-10 15:00:00",
	}
}

func TestComputeRowsWorkedExample(t *testing.T) {
	rows := ComputeRows([]types.FeeRow{imRow()}, 500, defaultOptions())
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, int64(1200000), r.LotValue)
	assert.Equal(t, int64(4), r.Lots)
	assert.Equal(t, int64(4800000), r.Hedged)
	assert.Equal(t, int64(200000), r.Unhedged)
	assert.Equal(t, int64(672000), r.RequiredMargin)
	assert.Equal(t, int64(384000), r.Buffer)
	assert.Equal(t, int64(1056000), r.RequiredEquity)
	assert.Equal(t, int64(144000), r.LongMarginPerLot)
	assert.Equal(t, "+1.01%", r.ChangePct)
	assert.InDelta(t, 0.14, r.MarginRate, 1e-12)
}

func TestComputeRowsPriceFallback(t *testing.T) {
	row := imRow()
	row.LastPrice = 0
	row.PrevClose = 5000

	rows := ComputeRows([]types.FeeRow{row}, 500, defaultOptions())
	require.Len(t, rows, 1)
	assert.InDelta(t, 5000, rows[0].Price, 1e-9)
	assert.Equal(t, int64(1000000), rows[0].LotValue)
	assert.Equal(t, int64(5), rows[0].Lots)
	assert.Equal(t, "+0.00%", rows[0].ChangePct)
}

func TestComputeRowsInvariants(t *testing.T) {
	contracts := []types.FeeRow{
		imRow(),
		{Code: "IC2501", LastPrice: 5600.2, PrevClose: 5580, Multiplier: 200, ShortMarginRate: 0.12},
		{Code: "IC2503", LastPrice: 99, PrevClose: 5500.4, Multiplier: 200, ShortMarginRate: 0.12},
	}
	opts := defaultOptions()

	var prevLots map[string]int64
	for _, n := range []float64{1, 50, 100, 111.5, 500, 1234.56, 10000} {
		rows := ComputeRows(contracts, n, opts)
		eff := effectiveNotional(n, opts)
		lots := map[string]int64{}
		for _, r := range rows {
			assert.Equal(t, eff, r.Hedged+r.Unhedged, "%s at %.2f", r.Code, n)
			assert.GreaterOrEqual(t, r.Lots, int64(0))
			assert.Equal(t, eff/r.LotValue, r.Lots)
			assert.Less(t, r.Unhedged, r.LotValue)
			if prevLots != nil {
				assert.GreaterOrEqual(t, r.Lots, prevLots[r.Code], "lots must not shrink as notional grows")
			}
			lots[r.Code] = r.Lots
		}
		prevLots = lots
	}
}

func TestComputeRowsOrderedByCode(t *testing.T) {
	contracts := []types.FeeRow{
		{Code: "IM2503", LastPrice: 6000, Multiplier: 200},
		{Code: "IC2506", LastPrice: 5500, Multiplier: 200},
		{Code: "IC2501", LastPrice: 5600, Multiplier: 200},
	}
	rows := ComputeRows(contracts, 500, defaultOptions())
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"IC2501", "IC2506", "IM2503"}, []string{rows[0].Code, rows[1].Code, rows[2].Code})
}

func TestComputeRowsZeroLotValue(t *testing.T) {
	rows := ComputeRows([]types.FeeRow{{Code: "IC2501", Multiplier: 200}}, 500, defaultOptions())
	require.Len(t, rows, 1)
	assert.Zero(t, rows[0].Lots)
	assert.Zero(t, rows[0].Hedged)
	assert.Equal(t, int64(5000000), rows[0].Unhedged)
}

func TestComputeRowsNotionalBufferAndLeverage(t *testing.T) {
	opts := defaultOptions()
	opts.LeverageFactor = 0.79
	opts.BufferMode = store.BufferOfNotional
	opts.BufferFraction = 0.21
	opts.MarginRateSource = store.MarginRateFixed
	opts.FixedMarginRate = 0.08

	rows := ComputeRows([]types.FeeRow{imRow()}, 500, opts)
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, int64(3), r.Lots)
	assert.Equal(t, int64(3600000), r.Hedged)
	assert.Equal(t, int64(350000), r.Unhedged)
	assert.Equal(t, int64(288000), r.RequiredMargin)
	assert.Equal(t, int64(1050000), r.Buffer)
	assert.Equal(t, int64(1338000), r.RequiredEquity)
}

func TestComputeRowsMissingFeedRateFallsBack(t *testing.T) {
	row := imRow()
	row.ShortMarginRate = 0
	rows := ComputeRows([]types.FeeRow{row}, 500, defaultOptions())
	require.Len(t, rows, 1)
	assert.InDelta(t, 0.14, rows[0].MarginRate, 1e-12)
}

func TestCalculatorCompute(t *testing.T) {
	src := &staticSource{rows: []types.FeeRow{
		imRow(),
		{Code: "IF2501", LastPrice: 3900, PrevClose: 3890, Multiplier: 300, ShortMarginRate: 0.12},
		{Code: "IC2501", LastPrice: 5600, PrevClose: 5580, Multiplier: 200, ShortMarginRate: 0.12, UpdatedAt: "2025-01-10 14:59:00"},
	}}
	calc := NewCalculator(src, defaultOptions())
	fixed := time.Date(2025, 1, 10, 15, 1, 0, 0, time.UTC)
	calc.now = func() time.Time { return fixed }

	table, err := calc.Compute(context.Background(), 500)
	require.NoError(t, err)

	require.Len(t, table.Rows, 2)
	assert.Equal(t, "IC2501", table.Rows[0].Code)
	assert.Equal(t, "IM2503", table.Rows[1].Code)
	assert.InDelta(t, 500, table.NotionalWan, 1e-9)
	assert.InDelta(t, 5000000, table.Effective, 1e-9)
	assert.Equal(t, "2025-01-10 15:00:00", table.DataUpdated)
	assert.Equal(t, fixed, table.ComputedAt)
}

func TestCalculatorComputeEmptyData(t *testing.T) {
	calc := NewCalculator(&staticSource{rows: []types.FeeRow{}}, defaultOptions())
	table, err := calc.Compute(context.Background(), 500)
	require.NoError(t, err)
	assert.Empty(t, table.Rows)
}

func TestCalculatorRejectsNotionalBeforeFetch(t *testing.T) {
	src := &staticSource{}
	calc := NewCalculator(src, defaultOptions())

	for _, n := range []float64{0, -5} {
		_, err := calc.Compute(context.Background(), n)
		assert.ErrorIs(t, err, ErrInvalidNotional)
	}
	assert.Zero(t, src.calls)
}

func TestCalculatorSourceError(t *testing.T) {
	calc := NewCalculator(&staticSource{err: context.Canceled}, defaultOptions())
	_, err := calc.Compute(context.Background(), 500)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestParseNotional(t *testing.T) {
	v, err := ParseNotional(" 1,200.5 ")
	require.NoError(t, err)
	assert.InDelta(t, 1200.5, v, 1e-9)

	for _, bad := range []string{"", "abc", "0", "-3", "NaN", "Inf"} {
		_, err := ParseNotional(bad)
		assert.ErrorIs(t, err, ErrInvalidNotional, bad)
	}
}
