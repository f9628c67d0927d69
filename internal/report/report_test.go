package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgedash/internal/types"
)

func sampleHedge() *types.HedgeTable {
	return &types.HedgeTable{
		NotionalWan: 500,
		Effective:   5000000,
		DataUpdated: "2025-01-10 15:00:00",
		ComputedAt:  time.Date(2025, 1, 10, 15, 1, 0, 0, time.UTC),
		Rows: []types.HedgeResult{{
			Code: "IM2503", Name: "中证1000", LotValue: 1200000, Lots: 4, Hedged: 4800000, Unhedged: 200000,
			RequiredMargin: 672000, Buffer: 384000, RequiredEquity: 1056000, PrevClose: 5940, Price: 6000,
			ChangePct: "+1.01%", OpenInterest: 80000, Multiplier: 200, MarginRate: 0.14, LongMarginPerLot: 144000,
		}},
	}
}

func sampleNav() *types.NavSummary {
	d := decimal.RequireFromString
	return &types.NavSummary{
		RefreshedAt: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC),
		Records: []types.NavRecord{{
			Vendor: "mengxi", Product: "MX", NavDate: "2025-01-02",
			PreFee: d("300000"), PostFee: d("294000"), PeriodFee: d("6000"),
			Units: d("200000"), UnitNAV: d("1.5"), ShadowNAV: d("1.47"),
		}},
		TotalPre: d("300000"), TotalPost: d("294000"), TotalFee: d("6000"),
		CostBasis: d("250000"), PnL: d("44000"), PnLSince: "2024-11-08", Messages: 3,
		Errors: []types.ExtractionError{{Vendor: "zhengding", Source: types.MessageRef{UID: 9}, Error: "field units: format changed"}},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestWriteHedgeCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHedge(&buf, sampleHedge(), FormatCSV))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, HedgeColumns, records[0])
	assert.Len(t, records[1], len(HedgeColumns))
	assert.Equal(t, "IM2503", records[1][0])
	assert.Equal(t, "4", records[1][3])
	assert.Equal(t, "0.1400", records[1][14])
}

func TestWriteHedgeJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHedge(&buf, sampleHedge(), FormatJSON))

	var got types.HedgeTable
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got.Rows, 1)
	assert.Equal(t, int64(1056000), got.Rows[0].RequiredEquity)
}

func TestWriteHedgeText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHedge(&buf, sampleHedge(), FormatText))
	out := buf.String()
	assert.Contains(t, out, "HEDGE TABLE - 500.00 万元")
	assert.Contains(t, out, "IM2503")
	assert.Contains(t, out, "1056000")

	empty := sampleHedge()
	empty.Rows = nil
	buf.Reset()
	require.NoError(t, WriteHedge(&buf, empty, FormatText))
	assert.Contains(t, buf.String(), "Market data unavailable")
}

func TestWriteNavText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteNav(&buf, sampleNav(), FormatText))
	out := buf.String()
	assert.Contains(t, out, "合计")
	assert.Contains(t, out, "294000.00")
	assert.Contains(t, out, "P&L since 2024-11-08: 44000.00")
	assert.Contains(t, out, "[zhengding] uid 9")
}

func TestWriteNavCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteNav(&buf, sampleNav(), FormatCSV))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "mengxi,MX,2025-01-02,300000.00,294000.00,6000.00,200000.00,1.5000,1.4700", lines[1])
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	p, err := Save(dir, "hedge_20250110", FormatCSV, func(w io.Writer) error {
		return WriteHedge(w, sampleHedge(), FormatCSV)
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p, "hedge_20250110.csv"))

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(b), "IM2503")
}
