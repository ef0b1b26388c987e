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

const binanceFuturesAPI = "https://fapi.binance.com"

// Derivatives fetches funding rate and open interest from the perpetual
// futures API.
type Derivatives struct {
	client  *fetch.Client
	baseURL string
	now     func() time.Time
}

func NewDerivatives(client *fetch.Client) *Derivatives {
	return &Derivatives{client: client, baseURL: binanceFuturesAPI, now: time.Now}
}

func (d *Derivatives) Name() string { return "derivatives" }

func (d *Derivatives) Fetch(ctx context.Context) ([]metric.Record, error) {
	day := metric.Day(d.now())
	var records []metric.Record
	var errs []error

	var premium struct {
		LastFundingRate string `json:"lastFundingRate"`
	}
	url := fmt.Sprintf("%s/fapi/v1/premiumIndex?symbol=BTCUSDT", d.baseURL)
	if err := d.client.GetJSON(ctx, url, &premium, fetch.DefaultOptions()); err != nil {
		errs = append(errs, fmt.Errorf("funding rate: %w", err))
	} else if rate, err := strconv.ParseFloat(premium.LastFundingRate, 64); err != nil {
		errs = append(errs, fmt.Errorf("parse funding rate %q: %w", premium.LastFundingRate, err))
	} else {
		records = append(records, metric.Record{
			Date: day, Key: metric.KeyFundingBTC,
			Value:  metric.Float(rate * 100),
			Source: d.Name(),
		})
	}

	var oi struct {
		OpenInterest string `json:"openInterest"`
	}
	url = fmt.Sprintf("%s/fapi/v1/openInterest?symbol=BTCUSDT", d.baseURL)
	if err := d.client.GetJSON(ctx, url, &oi, fetch.DefaultOptions()); err != nil {
		errs = append(errs, fmt.Errorf("open interest: %w", err))
	} else if v, err := strconv.ParseFloat(oi.OpenInterest, 64); err != nil {
		errs = append(errs, fmt.Errorf("parse open interest %q: %w", oi.OpenInterest, err))
	} else {
		records = append(records, metric.Record{
			Date: day, Key: metric.KeyOpenInterestBTC,
			Value:  metric.Float(v),
			Source: d.Name(),
		})
	}

	return records, errors.Join(errs...)
}
