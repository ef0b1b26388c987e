package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chainlens/market-pipeline/internal/metric"
	"github.com/chainlens/market-pipeline/internal/scrape"
)

const flowTableMinRows = 3

// FlowPage is one scraped ETF flow page: the metric it feeds and the
// issuer tickers that identify its data table.
type FlowPage struct {
	Key     metric.Key
	URL     string
	Tickers []string
}

// DefaultFlowPages covers the BTC, ETH and SOL spot ETF flow tables.
func DefaultFlowPages() []FlowPage {
	return []FlowPage{
		{
			Key:     metric.KeyETFFlowBTC,
			URL:     "https://farside.co.uk/btc/",
			Tickers: []string{"IBIT", "FBTC", "GBTC", "ARKB", "BITB", "BTC"},
		},
		{
			Key:     metric.KeyETFFlowETH,
			URL:     "https://farside.co.uk/eth/",
			Tickers: []string{"ETHA", "FETH", "ETHE", "ETHW", "ETH"},
		},
		{
			Key:     metric.KeyETFFlowSOL,
			URL:     "https://farside.co.uk/sol/",
			Tickers: []string{"BSOL", "GSOL", "SOL"},
		},
	}
}

// ETFFlows scrapes daily fund-flow tables from rendered pages. Rows are
// parsed newest-last in page order; only the newest row feeds a record,
// and the orchestrator's freshness gate decides whether it is current.
type ETFFlows struct {
	browser scrape.Browser
	logger  *slog.Logger
	pages   []FlowPage
	now     func() time.Time
}

func NewETFFlows(browser scrape.Browser, logger *slog.Logger, pages []FlowPage) *ETFFlows {
	return &ETFFlows{browser: browser, logger: logger, pages: pages, now: time.Now}
}

func (e *ETFFlows) Name() string { return "etf_flows" }

func (e *ETFFlows) Fetch(ctx context.Context) ([]metric.Record, error) {
	var records []metric.Record
	var errs []error

	for _, page := range e.pages {
		rec, err := e.scrapePage(ctx, page)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", page.Key, err))
			continue
		}
		if rec == nil {
			// Every recent row was placeholder dashes: market closed,
			// nothing to store and nothing wrong.
			e.logger.Info("flow page has no fresh rows", "key", page.Key, "url", page.URL)
			continue
		}
		records = append(records, *rec)
	}

	return records, errors.Join(errs...)
}

func (e *ETFFlows) scrapePage(ctx context.Context, page FlowPage) (*metric.Record, error) {
	tables, err := e.browser.Tables(ctx, page.URL)
	if err != nil {
		return nil, err
	}

	table, err := scrape.FindDataTable(tables, page.Tickers, flowTableMinRows)
	if err != nil {
		return nil, err
	}

	rows, err := scrape.ParseFlowRows(table, page.Tickers)
	if err != nil {
		return nil, err
	}
	latest := scrape.LatestRows(rows, 1)
	if len(latest) == 0 {
		return nil, nil
	}

	row := latest[0]
	issuers := make(map[string]any, len(row.Flows))
	for tk, v := range row.Flows {
		issuers[tk] = v
	}

	return &metric.Record{
		Date:  row.Date,
		Key:   page.Key,
		Value: metric.Float(row.Total),
		Metadata: map[string]any{
			"issuer_flows": issuers,
			"scraped_at":   e.now().UTC().Format(time.RFC3339),
		},
		Scraped: true,
		Source:  e.Name(),
	}, nil
}
