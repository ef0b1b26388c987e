// Package scrape extracts structured rows from rendered third-party pages
// that have no API. The browser is isolated behind the Browser interface so
// table discovery and value parsing stay unit-testable on captured cell
// fixtures without spawning Chrome.
package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

// Table is one rendered <table>, as raw cell text in page order. The first
// row is usually, but not reliably, a header.
type Table struct {
	Rows [][]string
}

// Browser renders a page and returns every table on it.
type Browser interface {
	Tables(ctx context.Context, url string) ([]Table, error)
}

// Chrome drives a headless browser session per call. Each scrape runs the
// full Launch → Navigate → WaitForRender → Extract → Close cycle; the
// deferred cancels guarantee the browser process is released on any path.
type Chrome struct {
	logger     *slog.Logger
	renderWait time.Duration
	timeout    time.Duration
}

func NewChrome(logger *slog.Logger) *Chrome {
	return &Chrome{
		logger:     logger,
		renderWait: 2 * time.Second,
		timeout:    45 * time.Second,
	}
}

func (c *Chrome) Tables(ctx context.Context, url string) ([]Table, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-crash-reporter", true),
		chromedp.Flag("crash-dumps-dir", "/tmp"),
		chromedp.UserDataDir("/tmp/chromedp-profile"),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, c.timeout)
	defer cancel()

	var resultJSON string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(`table`, chromedp.ByQuery),
		chromedp.Sleep(c.renderWait),
		chromedp.Evaluate(extractTablesJS, &resultJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp run %s: %w", url, err)
	}

	var raw [][][]string
	if err := json.Unmarshal([]byte(resultJSON), &raw); err != nil {
		return nil, fmt.Errorf("parse extracted tables: %w", err)
	}

	tables := make([]Table, 0, len(raw))
	for _, rows := range raw {
		tables = append(tables, Table{Rows: rows})
	}
	c.logger.Info("scraped page", "url", url, "tables", len(tables))
	return tables, nil
}

// extractTablesJS is evaluated in the browser to pull every table's cell
// text, header rows included, in page order.
const extractTablesJS = `
(() => {
	const tables = [];
	document.querySelectorAll('table').forEach(table => {
		const rows = [];
		table.querySelectorAll('tr').forEach(tr => {
			const cells = [];
			tr.querySelectorAll('th, td').forEach(cell => {
				cells.push((cell.textContent || '').trim());
			});
			if (cells.length > 0) rows.push(cells);
		});
		tables.push(rows);
	});
	return JSON.stringify(tables);
})()
`
