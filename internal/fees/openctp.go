package fees

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"hedgedash/internal/api"
	"hedgedash/internal/logger"
	"hedgedash/internal/types"
)

var (
	ErrTableNotFound = errors.New("fee table not found on page")

	updatedAtPattern = regexp.MustCompile(`更新时间[:：]\s*([0-9]{4}-[0-9]{2}-[0-9]{2}[ T]?[0-9:]*)`)
)

// OpenCTPSource scrapes the openctp fee reference page. Columns are located by
// header text so a reordered table still parses.
type OpenCTPSource struct {
	url     string
	timeout time.Duration
}

func NewOpenCTPSource(pageURL string, timeout time.Duration) *OpenCTPSource {
	return &OpenCTPSource{url: pageURL, timeout: timeout}
}

func (s *OpenCTPSource) Name() string { return "openctp" }

func (s *OpenCTPSource) FetchFees(ctx context.Context) ([]types.FeeRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := colly.NewCollector(
		colly.AllowedDomains(getDomain(s.url)),
		colly.MaxDepth(1),
		colly.Async(false),
		colly.DetectCharset(),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	if s.timeout > 0 {
		c.SetRequestTimeout(s.timeout)
	}

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		for k, v := range api.BrowserHeaders() {
			r.Headers.Set(k, v)
		}
	})

	var (
		rows      []types.FeeRow
		found     bool
		skipped   int
		pageStamp string
		visitErr  error
	)

	c.OnHTML("table", func(e *colly.HTMLElement) {
		if found {
			return
		}
		var header []string
		e.ForEach("tr", func(_ int, tr *colly.HTMLElement) {
			cells := tr.ChildTexts("th, td")
			if header == nil {
				if len(missingColumns(cells)) == 0 {
					header = cells
				}
				return
			}
			rec := make(map[string]string, len(header))
			for i, h := range header {
				if i < len(cells) {
					rec[h] = cells[i]
				}
			}
			row, err := rowFromRecord(rec)
			if err != nil {
				skipped++
				logger.Debug(ctx, "Skipping fee row", "error", err)
				return
			}
			rows = append(rows, row)
		})
		found = header != nil
	})

	c.OnHTML("body", func(e *colly.HTMLElement) {
		if m := updatedAtPattern.FindStringSubmatch(e.Text); m != nil {
			pageStamp = strings.TrimSpace(m[1])
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		visitErr = err
		logger.Warn(ctx, "Fee page request failed", "url", r.Request.URL.String(), "status", r.StatusCode, "error", err)
	})

	err := c.Visit(s.url)
	c.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", s.url, err)
	}
	if visitErr != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", s.url, visitErr)
	}
	if !found {
		return nil, ErrTableNotFound
	}

	if pageStamp != "" {
		for i := range rows {
			if rows[i].UpdatedAt == "" {
				rows[i].UpdatedAt = pageStamp
			}
		}
	}

	logger.Debug(ctx, "Fee page parsed", "rows", len(rows), "skipped", skipped)
	return rows, nil
}

func getDomain(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
