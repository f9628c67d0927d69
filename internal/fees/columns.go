package fees

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"hedgedash/internal/types"
)

// Column names used by the fee reference table, both on the openctp page and
// in the AKTools JSON records.
const (
	colExchange        = "交易所"
	colCode            = "合约代码"
	colName            = "合约名称"
	colMultiplier      = "合约乘数"
	colLongMarginRate  = "做多保证金率（按金额）"
	colShortMarginRate = "做空保证金率（按金额）"
	colPrevSettle      = "上日结算价"
	colPrevClose       = "上日收盘价"
	colLastPrice       = "最新价"
	colVolume          = "成交量"
	colOpenInterest    = "持仓量"
	colUpdatedAt       = "更新时间"
)

var requiredColumns = []string{colCode, colLastPrice, colPrevClose, colMultiplier}

var errMissingValue = errors.New("missing value")

// missingColumns reports which required columns a header row lacks.
func missingColumns(header []string) []string {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[normalizeHeader(h)] = true
	}
	var missing []string
	for _, c := range requiredColumns {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// normalizeHeader folds the ASCII/full-width parenthesis variants the source
// has used over time.
func normalizeHeader(h string) string {
	h = strings.TrimSpace(h)
	h = strings.ReplaceAll(h, "(", "（")
	h = strings.ReplaceAll(h, ")", "）")
	return h
}

// rowFromRecord maps a column-name keyed record onto a FeeRow.
func rowFromRecord(rec map[string]string) (types.FeeRow, error) {
	norm := make(map[string]string, len(rec))
	for k, v := range rec {
		norm[normalizeHeader(k)] = strings.TrimSpace(v)
	}

	row := types.FeeRow{
		Exchange:  norm[colExchange],
		Code:      strings.ToUpper(norm[colCode]),
		Name:      norm[colName],
		UpdatedAt: norm[colUpdatedAt],
	}
	if row.Code == "" {
		return row, fmt.Errorf("%s: %w", colCode, errMissingValue)
	}

	required := []struct {
		col string
		dst *float64
	}{
		{colLastPrice, &row.LastPrice},
		{colPrevClose, &row.PrevClose},
		{colMultiplier, &row.Multiplier},
	}
	for _, f := range required {
		v, err := parseNumber(norm[f.col])
		if err != nil {
			return row, fmt.Errorf("%s %s: %w", row.Code, f.col, err)
		}
		*f.dst = v
	}

	optional := []struct {
		col string
		dst *float64
	}{
		{colLongMarginRate, &row.LongMarginRate},
		{colShortMarginRate, &row.ShortMarginRate},
		{colPrevSettle, &row.PrevSettle},
		{colVolume, &row.Volume},
		{colOpenInterest, &row.OpenInterest},
	}
	for _, f := range optional {
		if v, err := parseNumber(norm[f.col]); err == nil {
			*f.dst = v
		}
	}

	return row, nil
}

// parseNumber accepts "1,234.5", "12%" (as 0.12) and rejects blanks and dashes.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" || s == "-" || s == "--" {
		return 0, errMissingValue
	}
	pct := strings.HasSuffix(s, "%")
	s = strings.TrimSuffix(s, "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if pct {
		v /= 100
	}
	return v, nil
}
