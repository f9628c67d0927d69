package hedge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"hedgedash/internal/fees"
	"hedgedash/internal/interfaces"
	"hedgedash/internal/logger"
	"hedgedash/internal/store"
	"hedgedash/internal/types"
)

var ErrInvalidNotional = errors.New("notional must be a positive number (万元)")

// Options control the per-contract arithmetic.
type Options struct {
	LotUnit          float64 // base currency per input unit (万元 = 10000)
	LeverageFactor   float64
	MarginRateSource string
	FixedMarginRate  float64
	PriceFloor       float64
	BufferMode       string
	BufferFraction   float64
	Families         []string
}

func OptionsFromConfig(cfg *store.Config) Options {
	return Options{
		LotUnit:          cfg.Hedge.LotUnit,
		LeverageFactor:   cfg.Hedge.LeverageFactor,
		MarginRateSource: cfg.Hedge.MarginRateSource,
		FixedMarginRate:  cfg.Hedge.FixedMarginRate,
		PriceFloor:       cfg.Hedge.PriceFloor,
		BufferMode:       cfg.Hedge.Buffer.Mode,
		BufferFraction:   cfg.Hedge.Buffer.Fraction,
		Families:         cfg.Fees.Families,
	}
}

// Calculator sizes a short index-futures hedge against a long notional.
type Calculator struct {
	source interfaces.FeeSource
	opts   Options
	now    func() time.Time
}

func NewCalculator(source interfaces.FeeSource, opts Options) *Calculator {
	return &Calculator{source: source, opts: opts, now: time.Now}
}

// Compute fetches the fee table and sizes the hedge for notionalWan (万元).
// An empty fee table yields a table with no rows; callers report that as
// "data unavailable".
func (c *Calculator) Compute(ctx context.Context, notionalWan float64) (*types.HedgeTable, error) {
	if !(notionalWan > 0) || math.IsInf(notionalWan, 0) {
		return nil, ErrInvalidNotional
	}

	all, err := c.source.FetchFees(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch fee table: %w", err)
	}
	rows := fees.FilterFamilies(all, c.opts.Families)

	table := &types.HedgeTable{
		NotionalWan: notionalWan,
		Effective:   float64(effectiveNotional(notionalWan, c.opts)),
		DataUpdated: fees.LatestUpdate(rows),
		ComputedAt:  c.now(),
		Rows:        ComputeRows(rows, notionalWan, c.opts),
	}

	for _, r := range table.Rows {
		logger.Hedge(ctx, r.Code, r.Lots, r.Hedged, r.RequiredMargin, r.RequiredEquity,
			"price", r.Price, "lot_value", r.LotValue)
	}
	return table, nil
}

// ComputeRows is the pure sizing step. Rows come back ordered by contract code.
func ComputeRows(rows []types.FeeRow, notionalWan float64, opts Options) []types.HedgeResult {
	effective := effectiveNotional(notionalWan, opts)
	total := notionalWan * opts.LotUnit

	out := make([]types.HedgeResult, 0, len(rows))
	for _, r := range rows {
		price := fees.EffectivePrice(r, opts.PriceFloor)
		lotValue := truncate(price * r.Multiplier)

		var lots int64
		if lotValue > 0 && effective > 0 {
			lots = effective / lotValue
		}
		hedged := lots * lotValue

		rate := marginRate(r, opts)
		margin := truncate(float64(hedged) * rate)

		var buffer int64
		if opts.BufferMode == store.BufferOfNotional {
			buffer = truncate(total * opts.BufferFraction)
		} else {
			buffer = truncate(float64(hedged) * opts.BufferFraction)
		}

		out = append(out, types.HedgeResult{
			Code:             r.Code,
			Name:             r.Name,
			LotValue:         lotValue,
			Lots:             lots,
			Hedged:           hedged,
			Unhedged:         effective - hedged,
			RequiredMargin:   margin,
			Buffer:           buffer,
			RequiredEquity:   margin + buffer,
			PrevClose:        r.PrevClose,
			Price:            price,
			ChangePct:        changePct(price, r.PrevClose),
			OpenInterest:     r.OpenInterest,
			Multiplier:       r.Multiplier,
			MarginRate:       rate,
			LongMarginPerLot: truncate(price * r.Multiplier * r.LongMarginRate),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// effectiveNotional converts 万元 to base currency and applies leverage,
// truncated to whole units.
func effectiveNotional(notionalWan float64, opts Options) int64 {
	lev := opts.LeverageFactor
	if lev <= 0 {
		lev = 1
	}
	return truncate(notionalWan * opts.LotUnit * lev)
}

// truncate drops the fractional part of a non-negative amount. The epsilon
// absorbs float noise such as 5000000*0.21 landing a hair under 1050000.
func truncate(x float64) int64 {
	if x <= 0 {
		return int64(x)
	}
	return int64(math.Floor(x + 1e-6))
}

// marginRate uses each row's own short rate; a missing feed rate falls back
// to the fixed rate.
func marginRate(r types.FeeRow, opts Options) float64 {
	if opts.MarginRateSource == store.MarginRateFixed || r.ShortMarginRate <= 0 {
		return opts.FixedMarginRate
	}
	return r.ShortMarginRate
}

func changePct(price, prevClose float64) string {
	if prevClose == 0 {
		return "+0.00%"
	}
	return fmt.Sprintf("%+.2f%%", (price-prevClose)/prevClose*100)
}

// ParseNotional reads user input such as "500", " 1,200.5 ".
func ParseNotional(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, ErrInvalidNotional
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !(v > 0) || math.IsInf(v, 0) {
		return 0, ErrInvalidNotional
	}
	return v, nil
}
