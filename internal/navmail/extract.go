package navmail

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"hedgedash/internal/store"
	"hedgedash/internal/types"
)

// ErrFormatChanged means a vendor notice matched by signature no longer has
// the layout its extractor expects.
var ErrFormatChanged = errors.New("vendor notice format changed")

const navDateLayout = "2006-01-02"

// Extractor pulls one NavRecord out of a vendor's HTML notice according to a
// declarative layout.
type Extractor struct {
	cfg store.VendorConfig
}

func NewExtractor(cfg store.VendorConfig) Extractor {
	return Extractor{cfg: cfg}
}

func (e Extractor) Key() string { return e.cfg.Key }

// Matches reports whether html looks like this vendor's notice.
func (e Extractor) Matches(html string) bool {
	return strings.Contains(html, e.cfg.Signature)
}

func (e Extractor) Extract(html string, src types.MessageRef) (types.NavRecord, error) {
	cells, err := e.cells(html)
	if err != nil {
		return types.NavRecord{}, err
	}
	f := fieldReader{vendor: e.cfg.Key, fields: e.cfg.Fields, cells: cells}

	rec := types.NavRecord{Vendor: e.cfg.Key, Source: src}

	name, err := f.text("name")
	if err != nil {
		return rec, err
	}
	rec.Product = ProductInitials(name)

	date, err := f.text("date")
	if err != nil {
		return rec, err
	}
	if rec.NavDate, err = e.normalizeDate(date); err != nil {
		return rec, f.fail("date", err.Error())
	}

	if rec.Units, err = f.number("units"); err != nil {
		return rec, err
	}
	if rec.UnitNAV, err = f.number("unit_nav"); err != nil {
		return rec, err
	}

	switch e.cfg.Derive {
	case store.DeriveReportedFee:
		if rec.PreFee, err = f.number("pre"); err != nil {
			return rec, err
		}
		if rec.PeriodFee, err = f.number("fee"); err != nil {
			return rec, err
		}
		if rec.ShadowNAV, err = f.number("shadow_nav"); err != nil {
			return rec, err
		}
		rec.PostFee = rec.PreFee.Sub(rec.PeriodFee)

	case store.DeriveUnits:
		if rec.ShadowNAV, err = f.number("shadow_nav"); err != nil {
			return rec, err
		}
		rec.PreFee = rec.UnitNAV.Mul(rec.Units).Round(2)
		rec.PostFee = rec.ShadowNAV.Mul(rec.Units).Round(2)
		rec.PeriodFee = rec.PreFee.Sub(rec.PostFee).Round(2)

	case store.DeriveReportedPrePost:
		if rec.PreFee, err = f.number("pre"); err != nil {
			return rec, err
		}
		if rec.PostFee, err = f.number("post"); err != nil {
			return rec, err
		}
		if rec.Units.IsZero() {
			return rec, f.fail("units", "zero units")
		}
		rec.ShadowNAV = rec.PostFee.DivRound(rec.Units, 4)
		rec.PeriodFee = rec.PreFee.Sub(rec.PostFee)

	default:
		return rec, fmt.Errorf("vendor %s: unknown derive %q", e.cfg.Key, e.cfg.Derive)
	}

	return rec, nil
}

func (e Extractor) cells(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("vendor %s: parse html: %w", e.cfg.Key, err)
	}

	var cells []string
	switch e.cfg.Layout {
	case store.LayoutSpan:
		doc.Find("span[yahei]").Each(func(_ int, s *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(s.Text()))
		})
	default:
		doc.Find("td").Each(func(_ int, s *goquery.Selection) {
			// styled cells are labels and decoration; values sit in bare <td>
			if len(s.Nodes[0].Attr) > 0 {
				return
			}
			cells = append(cells, afterSplit(strings.TrimSpace(s.Text()), e.cfg.Split))
		})
	}
	return cells, nil
}

func (e Extractor) normalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	layout := e.cfg.DateFormat
	if layout == "" {
		layout = navDateLayout
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return "", fmt.Errorf("date %q does not match %s", s, layout)
	}
	return t.Format(navDateLayout), nil
}

func afterSplit(s, sep string) string {
	if sep == "" {
		return s
	}
	if i := strings.LastIndex(s, sep); i >= 0 {
		return strings.TrimSpace(s[i+len(sep):])
	}
	return s
}

type fieldReader struct {
	vendor string
	fields map[string]int
	cells  []string
}

func (f fieldReader) fail(field, reason string) error {
	return fmt.Errorf("vendor %s field %s: %w: %s", f.vendor, field, ErrFormatChanged, reason)
}

func (f fieldReader) text(field string) (string, error) {
	idx, ok := f.fields[field]
	if !ok {
		return "", f.fail(field, "no index configured")
	}
	if idx < 0 || idx >= len(f.cells) {
		return "", f.fail(field, fmt.Sprintf("index %d out of range, notice has %d cells", idx, len(f.cells)))
	}
	v := strings.TrimSpace(f.cells[idx])
	if v == "" {
		return "", f.fail(field, fmt.Sprintf("cell %d is empty", idx))
	}
	return v, nil
}

func (f fieldReader) number(field string) (decimal.Decimal, error) {
	s, err := f.text(field)
	if err != nil {
		return decimal.Zero, err
	}
	clean := strings.NewReplacer(",", "", "，", "", " ", "", "元", "", "份", "").Replace(s)
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, f.fail(field, fmt.Sprintf("%q is not a number", s))
	}
	return d, nil
}
