// Package sources holds one adapter per external data provider. Adapters
// normalize upstream payloads into metric records and report failures as
// values; partial data with a non-nil error is a legitimate outcome.
package sources

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/chainlens/market-pipeline/internal/fetch"
	"github.com/chainlens/market-pipeline/internal/metric"
)

const binanceAPI = "https://api.binance.com"

// Prices fetches spot prices and the 7-day ETH change from the exchange
// ticker API.
type Prices struct {
	client  *fetch.Client
	baseURL string
	now     func() time.Time
}

func NewPrices(client *fetch.Client) *Prices {
	return &Prices{client: client, baseURL: binanceAPI, now: time.Now}
}

func (p *Prices) Name() string { return "prices" }

type tickerResp struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Fetch returns whatever prices it could get. One pair failing does not
// discard the other; the ratio is only derived when both legs are present.
func (p *Prices) Fetch(ctx context.Context) ([]metric.Record, error) {
	day := metric.Day(p.now())
	var records []metric.Record
	var errs []error

	btc, err := p.fetchPrice(ctx, "BTCUSDT")
	if err != nil {
		errs = append(errs, fmt.Errorf("btc price: %w", err))
	} else {
		records = append(records, p.record(day, metric.KeyBTCPrice, btc))
	}

	eth, err := p.fetchPrice(ctx, "ETHUSDT")
	if err != nil {
		errs = append(errs, fmt.Errorf("eth price: %w", err))
	} else {
		records = append(records, p.record(day, metric.KeyETHPrice, eth))
	}

	// Derived ratio: only when both operands exist, never a division
	// artifact from a half-failed fetch.
	if btc != nil && eth != nil && *btc != 0 {
		records = append(records, p.record(day, metric.KeyETHBTCRatio, metric.Float(*eth / *btc)))
	}

	change, err := p.fetchChange7d(ctx, "ETHUSDT")
	if err != nil {
		errs = append(errs, fmt.Errorf("eth 7d change: %w", err))
	} else {
		records = append(records, p.record(day, metric.KeyETHPriceChange7d, change))
	}

	return records, errors.Join(errs...)
}

func (p *Prices) record(day time.Time, key metric.Key, v *float64) metric.Record {
	return metric.Record{Date: day, Key: key, Value: v, Source: p.Name()}
}

func (p *Prices) fetchPrice(ctx context.Context, symbol string) (*float64, error) {
	var ticker tickerResp
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", p.baseURL, symbol)
	if err := p.client.GetJSON(ctx, url, &ticker, fetch.DefaultOptions()); err != nil {
		return nil, err
	}
	v, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", ticker.Price, err)
	}
	return &v, nil
}

// fetchChange7d computes the 7-day percent change from an 8-point daily
// close window, so the boundary sample 8 days back is included.
func (p *Prices) fetchChange7d(ctx context.Context, symbol string) (*float64, error) {
	var klines [][]any
	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=1d&limit=8", p.baseURL, symbol)
	if err := p.client.GetJSON(ctx, url, &klines, fetch.DefaultOptions()); err != nil {
		return nil, err
	}
	if len(klines) < 8 {
		return nil, fmt.Errorf("kline window has %d points, want 8", len(klines))
	}

	oldest, err := klineClose(klines[0])
	if err != nil {
		return nil, err
	}
	latest, err := klineClose(klines[len(klines)-1])
	if err != nil {
		return nil, err
	}
	if oldest == 0 {
		return nil, fmt.Errorf("zero close 8 days ago")
	}
	return metric.Float((latest - oldest) / oldest * 100), nil
}

func klineClose(row []any) (float64, error) {
	// Kline layout: [openTime, open, high, low, close, ...], close at 4.
	if len(row) < 5 {
		return 0, fmt.Errorf("kline row has %d fields", len(row))
	}
	s, ok := row[4].(string)
	if !ok {
		return 0, fmt.Errorf("kline close is %T, want string", row[4])
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse kline close %q: %w", s, err)
	}
	return v, nil
}
