package navmail

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hedgedash/internal/interfaces"
	"hedgedash/internal/logger"
	"hedgedash/internal/mailbox"
	"hedgedash/internal/metrics"
	"hedgedash/internal/store"
	"hedgedash/internal/types"
)

// Scanner walks recent NAV notices newest first and keeps the first record
// each vendor yields.
type Scanner struct {
	extractors   []Extractor
	subjects     []string
	lookbackDays int
	loc          *time.Location
	costBasis    decimal.Decimal
	pnlSince     string
	metrics      *metrics.Registry
	now          func() time.Time
}

func NewScanner(cfg *store.Config, m *metrics.Registry) *Scanner {
	extractors := make([]Extractor, 0, len(cfg.Nav.Vendors))
	for _, v := range cfg.Nav.Vendors {
		extractors = append(extractors, NewExtractor(v))
	}
	return &Scanner{
		extractors:   extractors,
		subjects:     cfg.Mail.Subjects,
		lookbackDays: cfg.Mail.LookbackDays,
		loc:          cfg.Location(),
		costBasis:    decimal.NewFromFloat(cfg.Nav.CostBasis),
		pnlSince:     cfg.Nav.PnLSince,
		metrics:      m,
		now:          time.Now,
	}
}

// Since is the calendar day lookbackDays before now in loc. IMAP SINCE only
// compares dates, so the time of day is dropped.
func Since(now time.Time, loc *time.Location, lookbackDays int) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -lookbackDays)
}

func (s *Scanner) Scan(ctx context.Context, mb interfaces.Mailbox) (*types.NavSummary, error) {
	started := s.now()
	since := Since(started, s.loc, s.lookbackDays)

	uids, err := mb.Search(ctx, since, s.subjects)
	if err != nil {
		return nil, err
	}
	dates, err := mb.FetchDates(ctx, uids)
	if err != nil {
		return nil, err
	}
	ordered := newestFirst(uids, dates)

	logger.Info(ctx, "NAV notices found", "count", len(ordered), "since", since.Format(navDateLayout))

	found := make(map[string]types.NavRecord, len(s.extractors))
	var extractErrs []types.ExtractionError

	for _, uid := range ordered {
		if len(found) == len(s.extractors) {
			break
		}

		raw, err := mb.FetchRaw(ctx, uid)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn(ctx, "Skipping message that could not be fetched", "uid", uid, "error", err)
			extractErrs = append(extractErrs, types.ExtractionError{Source: types.MessageRef{UID: uid}, Error: err.Error()})
			continue
		}

		msg, err := mailbox.ParseMessage(raw)
		if err != nil {
			logger.Warn(ctx, "Skipping unparsable message", "uid", uid, "error", err)
			extractErrs = append(extractErrs, types.ExtractionError{Source: types.MessageRef{UID: uid}, Error: err.Error()})
			continue
		}

		ref := types.MessageRef{UID: uid, Subject: msg.Subject, From: msg.From, Date: msg.Date}
		if d, ok := dates[uid]; ok {
			ref.Date = d
		}

		for _, html := range msg.HTMLParts {
			for _, ex := range s.extractors {
				if _, done := found[ex.Key()]; done || !ex.Matches(html) {
					continue
				}
				rec, err := ex.Extract(html, ref)
				if err != nil {
					logger.Warn(ctx, "NAV notice extraction failed", "vendor", ex.Key(), "uid", uid,
						"format_changed", errors.Is(err, ErrFormatChanged), "error", err)
					extractErrs = append(extractErrs, types.ExtractionError{Vendor: ex.Key(), Source: ref, Error: err.Error()})
					s.countError(ex.Key())
					continue
				}
				found[ex.Key()] = rec
				s.countRecord(ex.Key())
				logger.NavRecord(ctx, rec.Vendor, rec.Product, rec.NavDate,
					"pre_fee", rec.PreFee.StringFixed(2), "post_fee", rec.PostFee.StringFixed(2))
			}
		}
	}

	records := make([]types.NavRecord, 0, len(found))
	for _, ex := range s.extractors {
		if rec, ok := found[ex.Key()]; ok {
			records = append(records, rec)
		}
	}

	summary := Summarize(records, s.costBasis, s.pnlSince)
	summary.ScanID = uuid.NewString()
	summary.RefreshedAt = started
	summary.Messages = len(ordered)
	summary.Errors = extractErrs

	if s.metrics != nil {
		s.metrics.ScanDuration.Observe(s.now().Sub(started).Seconds())
	}
	return summary, nil
}

func (s *Scanner) countRecord(vendor string) {
	if s.metrics != nil {
		s.metrics.NavRecords.WithLabelValues(vendor).Inc()
	}
}

func (s *Scanner) countError(vendor string) {
	if s.metrics != nil {
		s.metrics.NavExtractErrors.WithLabelValues(vendor).Inc()
	}
}

// newestFirst orders uids by Date header descending. Messages without a
// parsable date go last, higher UIDs (newer arrivals) first among them.
func newestFirst(uids []uint32, dates map[uint32]time.Time) []uint32 {
	out := append([]uint32(nil), uids...)
	sort.SliceStable(out, func(i, j int) bool {
		di, iok := dates[out[i]]
		dj, jok := dates[out[j]]
		switch {
		case iok && jok:
			if di.Equal(dj) {
				return out[i] > out[j]
			}
			return di.After(dj)
		case iok != jok:
			return iok
		default:
			return out[i] > out[j]
		}
	})
	return out
}

// Summarize sorts records by pre-fee amount, largest first, and totals them.
// Sums are rounded to cents; an empty set totals to zero.
func Summarize(records []types.NavRecord, costBasis decimal.Decimal, pnlSince string) *types.NavSummary {
	sorted := append(make([]types.NavRecord, 0, len(records)), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		c := sorted[i].PreFee.Cmp(sorted[j].PreFee)
		if c == 0 {
			return sorted[i].Vendor < sorted[j].Vendor
		}
		return c > 0
	})

	pre, post := decimal.Zero, decimal.Zero
	for _, r := range sorted {
		pre = pre.Add(r.PreFee)
		post = post.Add(r.PostFee)
	}
	pre = pre.Round(2)
	post = post.Round(2)
	costBasis = costBasis.Round(2)

	return &types.NavSummary{
		Records:   sorted,
		TotalPre:  pre,
		TotalPost: post,
		TotalFee:  pre.Sub(post),
		CostBasis: costBasis,
		PnL:       post.Sub(costBasis),
		PnLSince:  pnlSince,
	}
}
