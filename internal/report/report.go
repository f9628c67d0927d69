package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"hedgedash/internal/types"
)

// Format specifies the output format for rendered tables
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatCSV  Format = "csv"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatText, FormatCSV:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// HedgeColumns is the fixed display column set of the hedge table.
var HedgeColumns = []string{
	"合约代码", "合约名称", "每手价值", "空头手数", "对冲金额", "未对冲金额",
	"所需保证金", "缓冲资金", "所需权益", "上日收盘价", "最新价", "涨跌幅",
	"持仓量", "合约乘数", "保证金率", "多头每手保证金",
}

// NavColumns is the display column set of the holdings table.
var NavColumns = []string{
	"管理人", "产品", "净值日期", "计提前资产", "计提后资产", "业绩报酬",
	"持有份额", "单位净值", "虚拟净值",
}

func WriteHedge(w io.Writer, table *types.HedgeTable, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, table)
	case FormatCSV:
		return writeCSV(w, HedgeColumns, HedgeCells(table))
	case FormatText:
		return writeHedgeText(w, table)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func WriteNav(w io.Writer, summary *types.NavSummary, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, summary)
	case FormatCSV:
		return writeCSV(w, NavColumns, NavCells(summary))
	case FormatText:
		return writeNavText(w, summary)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// Save writes a rendered hedge table or holdings summary under dir and
// returns the file path.
func Save(dir, name string, format Format, render func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	ext := string(format)
	if format == FormatText {
		ext = "txt"
	}
	p := filepath.Join(dir, name+"."+ext)
	f, err := os.Create(p)
	if err != nil {
		return "", err
	}
	if err := render(f); err != nil {
		f.Close()
		return "", err
	}
	return p, f.Close()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// HedgeCells renders each result as display strings in HedgeColumns order.
func HedgeCells(table *types.HedgeTable) [][]string {
	rows := make([][]string, 0, len(table.Rows))
	for _, r := range table.Rows {
		rows = append(rows, []string{
			r.Code,
			r.Name,
			strconv.FormatInt(r.LotValue, 10),
			strconv.FormatInt(r.Lots, 10),
			strconv.FormatInt(r.Hedged, 10),
			strconv.FormatInt(r.Unhedged, 10),
			strconv.FormatInt(r.RequiredMargin, 10),
			strconv.FormatInt(r.Buffer, 10),
			strconv.FormatInt(r.RequiredEquity, 10),
			formatFloat(r.PrevClose),
			formatFloat(r.Price),
			r.ChangePct,
			formatFloat(r.OpenInterest),
			formatFloat(r.Multiplier),
			strconv.FormatFloat(r.MarginRate, 'f', 4, 64),
			strconv.FormatInt(r.LongMarginPerLot, 10),
		})
	}
	return rows
}

// NavCells is the NavColumns counterpart of HedgeCells.
func NavCells(s *types.NavSummary) [][]string {
	rows := make([][]string, 0, len(s.Records))
	for _, r := range s.Records {
		rows = append(rows, []string{
			r.Vendor,
			r.Product,
			r.NavDate,
			r.PreFee.StringFixed(2),
			r.PostFee.StringFixed(2),
			r.PeriodFee.StringFixed(2),
			r.Units.StringFixed(2),
			r.UnitNAV.StringFixed(4),
			r.ShadowNAV.StringFixed(4),
		})
	}
	return rows
}

func writeHedgeText(w io.Writer, table *types.HedgeTable) error {
	var sb strings.Builder
	sb.WriteString(strings.Repeat("=", 80) + "\n")
	sb.WriteString(fmt.Sprintf("HEDGE TABLE - %.2f 万元 (effective %.0f)\n", table.NotionalWan, table.Effective))
	sb.WriteString(strings.Repeat("=", 80) + "\n")
	sb.WriteString(fmt.Sprintf("Data updated: %s\n", orDash(table.DataUpdated)))
	sb.WriteString(fmt.Sprintf("Computed:     %s\n\n", table.ComputedAt.Format("2006-01-02 15:04:05")))

	if len(table.Rows) == 0 {
		sb.WriteString("Market data unavailable, try again shortly.\n")
		_, err := io.WriteString(w, sb.String())
		return err
	}
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}
	return writeTabular(w, HedgeColumns, HedgeCells(table))
}

func writeNavText(w io.Writer, s *types.NavSummary) error {
	var sb strings.Builder
	sb.WriteString(strings.Repeat("=", 80) + "\n")
	sb.WriteString("HOLDINGS\n")
	sb.WriteString(strings.Repeat("=", 80) + "\n")
	sb.WriteString(fmt.Sprintf("Refreshed: %s  (%d messages scanned)\n\n", s.RefreshedAt.Format("2006-01-02 15:04:05"), s.Messages))
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}

	rows := NavCells(s)
	rows = append(rows, []string{"合计", "", "", s.TotalPre.StringFixed(2), s.TotalPost.StringFixed(2), s.TotalFee.StringFixed(2), "", "", ""})
	if err := writeTabular(w, NavColumns, rows); err != nil {
		return err
	}

	sb.Reset()
	label := "P&L"
	if s.PnLSince != "" {
		label = fmt.Sprintf("P&L since %s", s.PnLSince)
	}
	sb.WriteString(fmt.Sprintf("\n%s: %s (cost basis %s)\n", label, s.PnL.StringFixed(2), s.CostBasis.StringFixed(2)))
	if len(s.Errors) > 0 {
		sb.WriteString(fmt.Sprintf("\n%d notice(s) could not be read:\n", len(s.Errors)))
		for _, e := range s.Errors {
			vendor := e.Vendor
			if vendor == "" {
				vendor = "-"
			}
			sb.WriteString(fmt.Sprintf("  • [%s] uid %d: %s\n", vendor, e.Source.UID, e.Error))
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeTabular(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t")+"\t")
	}
	return tw.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
