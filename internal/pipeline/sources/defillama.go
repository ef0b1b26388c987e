package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chainlens/market-pipeline/internal/fetch"
	"github.com/chainlens/market-pipeline/internal/metric"
)

const (
	llamaTVLAPI         = "https://api.llama.fi/v2/historicalChainTvl"
	llamaStablecoinsAPI = "https://stablecoins.llama.fi/stablecoins"
)

// DefiLlama fetches aggregate DeFi TVL and total stablecoin market cap.
type DefiLlama struct {
	client         *fetch.Client
	tvlURL         string
	stablecoinsURL string
	now            func() time.Time
}

func NewDefiLlama(client *fetch.Client) *DefiLlama {
	return &DefiLlama{client: client, tvlURL: llamaTVLAPI, stablecoinsURL: llamaStablecoinsAPI, now: time.Now}
}

func (d *DefiLlama) Name() string { return "defillama" }

type tvlPoint struct {
	Date int64   `json:"date"`
	TVL  float64 `json:"tvl"`
}

type stablecoinsResp struct {
	PeggedAssets []struct {
		Circulating struct {
			PeggedUSD float64 `json:"peggedUSD"`
		} `json:"circulating"`
	} `json:"peggedAssets"`
}

func (d *DefiLlama) Fetch(ctx context.Context) ([]metric.Record, error) {
	day := metric.Day(d.now())
	var records []metric.Record
	var errs []error

	var history []tvlPoint
	if err := d.client.GetJSON(ctx, d.tvlURL, &history, fetch.DefaultOptions()); err != nil {
		errs = append(errs, fmt.Errorf("tvl history: %w", err))
	} else if len(history) == 0 {
		errs = append(errs, fmt.Errorf("tvl history empty"))
	} else {
		latest := history[len(history)-1]
		records = append(records, metric.Record{
			Date: day, Key: metric.KeyDefiTVL,
			Value:  metric.Float(latest.TVL),
			Source: d.Name(),
		})
	}

	var stables stablecoinsResp
	if err := d.client.GetJSON(ctx, d.stablecoinsURL, &stables, fetch.DefaultOptions()); err != nil {
		errs = append(errs, fmt.Errorf("stablecoins: %w", err))
	} else {
		var total float64
		for _, a := range stables.PeggedAssets {
			total += a.Circulating.PeggedUSD
		}
		records = append(records, metric.Record{
			Date: day, Key: metric.KeyStablecoinMcap,
			Value:  metric.Float(total),
			Source: d.Name(),
		})
	}

	return records, errors.Join(errs...)
}
