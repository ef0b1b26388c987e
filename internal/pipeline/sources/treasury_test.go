package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chainlens/market-pipeline/internal/metric"
	"github.com/chainlens/market-pipeline/internal/scrape"
)

func btcHoldingsTable() scrape.Table {
	return scrape.Table{Rows: [][]string{
		{"Company", "BTC", "Value"},
		{"Strategy Inc", "601,550", "$60B"},
		{"Mining Co", "52,477", "$5B"},
		{"Holdings Ltd", "10,000", "$1B"},
		{"Total", "664,027", "$66B"},
	}}
}

func TestTreasuryFetch(t *testing.T) {
	page := HoldingsPage{Key: metric.KeyDATHoldingsBTC, URL: "https://example.test/btc-treasuries/", Ticker: "BTC"}
	browser := &fakeBrowser{tables: map[string][]scrape.Table{
		page.URL: {btcHoldingsTable()},
	}}

	tr := &Treasury{browser: browser, logger: discardLogger(), pages: []HoldingsPage{page}, now: fixedNow}
	records, err := tr.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	rec := records[0]
	if got := *rec.Value; got != 601550+52477+10000 {
		t.Errorf("value = %v, want sum of issuer rows without the footer", got)
	}
	wantDate := time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC)
	if !rec.Date.Equal(wantDate) {
		t.Errorf("date = %v, want scrape day %v", rec.Date, wantDate)
	}
	if !rec.Scraped {
		t.Error("record not marked scraped")
	}
	issuers, ok := rec.Metadata["issuer_holdings"].(map[string]any)
	if !ok {
		t.Fatalf("issuer_holdings metadata missing: %v", rec.Metadata)
	}
	if issuers["Strategy Inc"] != 601550.0 {
		t.Errorf("Strategy Inc holdings = %v, want 601550", issuers["Strategy Inc"])
	}
	if _, ok := issuers["Total"]; ok {
		t.Error("footer row leaked into issuer holdings")
	}
}

func TestParseHoldingsNoColumn(t *testing.T) {
	table := scrape.Table{Rows: [][]string{
		{"Company", "Shares", "Value"},
		{"Strategy Inc", "100", "$1B"},
		{"Mining Co", "200", "$2B"},
	}}
	_, _, err := parseHoldings(table, "BTC")
	if !errors.Is(err, scrape.ErrTableNotFound) {
		t.Fatalf("err = %v, want ErrTableNotFound", err)
	}
}

func TestParseHoldingsNoNumericRows(t *testing.T) {
	table := scrape.Table{Rows: [][]string{
		{"Company", "BTC"},
		{"Strategy Inc", "-"},
		{"Mining Co", "—"},
	}}
	_, _, err := parseHoldings(table, "BTC")
	if !errors.Is(err, scrape.ErrTableNotFound) {
		t.Fatalf("err = %v, want ErrTableNotFound", err)
	}
}
