package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeRow is one futures contract from the exchange fee/margin reference table.
type FeeRow struct {
	Exchange        string  `json:"exchange,omitempty"`
	Code            string  `json:"code"`
	Name            string  `json:"name"`
	LastPrice       float64 `json:"last_price"`
	PrevClose       float64 `json:"prev_close"`
	PrevSettle      float64 `json:"prev_settle,omitempty"`
	Multiplier      float64 `json:"multiplier"`
	LongMarginRate  float64 `json:"long_margin_rate"`
	ShortMarginRate float64 `json:"short_margin_rate"`
	OpenInterest    float64 `json:"open_interest"`
	Volume          float64 `json:"volume,omitempty"`
	UpdatedAt       string  `json:"updated_at,omitempty"`
}

// HedgeResult is the short-hedge sizing for one contract. Money is in whole
// yuan, truncated.
type HedgeResult struct {
	Code             string  `json:"code"`
	Name             string  `json:"name"`
	LotValue         int64   `json:"lot_value"`
	Lots             int64   `json:"lots"`
	Hedged           int64   `json:"hedged"`
	Unhedged         int64   `json:"unhedged"`
	RequiredEquity   int64   `json:"required_equity"`
	RequiredMargin   int64   `json:"required_margin"`
	Buffer           int64   `json:"buffer"`
	PrevClose        float64 `json:"prev_close"`
	Price            float64 `json:"price"`
	ChangePct        string  `json:"change_pct"`
	OpenInterest     float64 `json:"open_interest"`
	Multiplier       float64 `json:"multiplier"`
	MarginRate       float64 `json:"margin_rate"`
	LongMarginPerLot int64   `json:"long_margin_per_lot"`
}

// HedgeTable is what one "compute" action returns.
type HedgeTable struct {
	NotionalWan float64       `json:"notional_wan"`
	Effective   float64       `json:"effective_notional"`
	DataUpdated string        `json:"data_updated"`
	ComputedAt  time.Time     `json:"computed_at"`
	Rows        []HedgeResult `json:"rows"`
}

// MessageRef identifies the email a NAV record came from.
type MessageRef struct {
	UID     uint32    `json:"uid"`
	Subject string    `json:"subject"`
	From    string    `json:"from"`
	Date    time.Time `json:"date"`
}

// NavRecord is one fund vendor's NAV notice normalized.
type NavRecord struct {
	Vendor    string          `json:"vendor"`
	Product   string          `json:"product"`
	NavDate   string          `json:"nav_date"`
	PreFee    decimal.Decimal `json:"pre_fee"`
	PostFee   decimal.Decimal `json:"post_fee"`
	PeriodFee decimal.Decimal `json:"period_fee"`
	Units     decimal.Decimal `json:"units"`
	UnitNAV   decimal.Decimal `json:"unit_nav"`
	ShadowNAV decimal.Decimal `json:"shadow_nav"`
	Source    MessageRef      `json:"source"`
}

// ExtractionError records a message that matched a vendor but could not be parsed.
type ExtractionError struct {
	Vendor string     `json:"vendor"`
	Source MessageRef `json:"source"`
	Error  string     `json:"error"`
}

// NavSummary is the aggregated holdings view of one mailbox scan.
type NavSummary struct {
	ScanID      string            `json:"scan_id"`
	RefreshedAt time.Time         `json:"refreshed_at"`
	Records     []NavRecord       `json:"records"`
	TotalPre    decimal.Decimal   `json:"total_pre"`
	TotalPost   decimal.Decimal   `json:"total_post"`
	TotalFee    decimal.Decimal   `json:"total_fee"`
	CostBasis   decimal.Decimal   `json:"cost_basis"`
	PnL         decimal.Decimal   `json:"pnl"`
	PnLSince    string            `json:"pnl_since,omitempty"`
	Messages    int               `json:"messages"`
	Errors      []ExtractionError `json:"errors,omitempty"`
}
