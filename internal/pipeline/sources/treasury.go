package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chainlens/market-pipeline/internal/metric"
	"github.com/chainlens/market-pipeline/internal/scrape"
)

const holdingsTableMinRows = 3

// HoldingsPage is one scraped corporate-treasury page: the aggregate
// metric it feeds and the asset ticker naming its holdings column.
type HoldingsPage struct {
	Key    metric.Key
	URL    string
	Ticker string
}

// DefaultHoldingsPages covers BTC and ETH treasury league tables.
func DefaultHoldingsPages() []HoldingsPage {
	return []HoldingsPage{
		{Key: metric.KeyDATHoldingsBTC, URL: "https://bitcointreasuries.net/", Ticker: "BTC"},
		{Key: metric.KeyDATHoldingsETH, URL: "https://ethereumtreasuries.net/", Ticker: "ETH"},
	}
}

// Treasury scrapes aggregate corporate treasury holdings. Unlike the flow
// tables these pages show current state with no date column, so records
// are dated to the scrape day itself.
type Treasury struct {
	browser scrape.Browser
	logger  *slog.Logger
	pages   []HoldingsPage
	now     func() time.Time
}

func NewTreasury(browser scrape.Browser, logger *slog.Logger, pages []HoldingsPage) *Treasury {
	return &Treasury{browser: browser, logger: logger, pages: pages, now: time.Now}
}

func (t *Treasury) Name() string { return "treasury" }

func (t *Treasury) Fetch(ctx context.Context) ([]metric.Record, error) {
	var records []metric.Record
	var errs []error

	for _, page := range t.pages {
		rec, err := t.scrapePage(ctx, page)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", page.Key, err))
			continue
		}
		records = append(records, *rec)
	}

	return records, errors.Join(errs...)
}

func (t *Treasury) scrapePage(ctx context.Context, page HoldingsPage) (*metric.Record, error) {
	tables, err := t.browser.Tables(ctx, page.URL)
	if err != nil {
		return nil, err
	}

	table, err := scrape.FindDataTable(tables, []string{page.Ticker}, holdingsTableMinRows)
	if err != nil {
		return nil, err
	}

	total, issuers, err := parseHoldings(table, page.Ticker)
	if err != nil {
		return nil, err
	}

	return &metric.Record{
		Date:  metric.Day(t.now()),
		Key:   page.Key,
		Value: metric.Float(total),
		Metadata: map[string]any{
			"issuer_holdings": issuers,
			"scraped_at":      t.now().UTC().Format(time.RFC3339),
		},
		Scraped: true,
		Source:  t.Name(),
	}, nil
}

// parseHoldings sums the ticker-named column across issuer rows. The
// header row names the columns; the issuer name is the first cell. An
// aggregate "Total" footer row is skipped to avoid double counting.
func parseHoldings(table scrape.Table, ticker string) (float64, map[string]any, error) {
	holdCol := -1
	headerIdx := -1
	for i, row := range table.Rows {
		for j, cell := range row {
			if strings.Contains(strings.ToUpper(cell), strings.ToUpper(ticker)) {
				holdCol = j
				headerIdx = i
				break
			}
		}
		if holdCol >= 0 {
			break
		}
	}
	if holdCol < 1 {
		// Column 0 is the issuer name; holdings must live to its right.
		return 0, nil, fmt.Errorf("%w: no %s holdings column", scrape.ErrTableNotFound, ticker)
	}

	var total float64
	issuers := make(map[string]any)
	for _, row := range table.Rows[headerIdx+1:] {
		if len(row) <= holdCol {
			continue
		}
		name := strings.TrimSpace(row[0])
		if name == "" || strings.EqualFold(name, "total") {
			continue
		}
		v, ok := scrape.ParseSignedNumber(row[holdCol])
		if !ok {
			continue
		}
		total += v
		issuers[name] = v
	}

	if len(issuers) == 0 {
		return 0, nil, fmt.Errorf("%w: %s holdings table had no numeric rows", scrape.ErrTableNotFound, ticker)
	}
	return total, issuers, nil
}
