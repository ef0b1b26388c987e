package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/chainlens/market-pipeline/internal/fetch"
	"github.com/chainlens/market-pipeline/internal/metric"
)

const supplyOracleAPI = "https://ultrasound.money/api/v2/fees/supply-summary"

// Supply fetches total ETH supply and the trailing 24h burn from the
// burn/issuance oracle.
type Supply struct {
	client  *fetch.Client
	baseURL string
	now     func() time.Time
}

func NewSupply(client *fetch.Client) *Supply {
	return &Supply{client: client, baseURL: supplyOracleAPI, now: time.Now}
}

func (s *Supply) Name() string { return "supply" }

type supplyResp struct {
	EthSupply float64 `json:"ethSupply"`
	Burn24h   float64 `json:"burn24h"`
}

func (s *Supply) Fetch(ctx context.Context) ([]metric.Record, error) {
	var resp supplyResp
	if err := s.client.GetJSON(ctx, s.baseURL, &resp, fetch.DefaultOptions()); err != nil {
		return nil, fmt.Errorf("supply oracle: %w", err)
	}
	if resp.EthSupply <= 0 {
		return nil, fmt.Errorf("supply oracle reported non-positive supply %v", resp.EthSupply)
	}

	day := metric.Day(s.now())
	return []metric.Record{
		{Date: day, Key: metric.KeyETHSupply, Value: metric.Float(resp.EthSupply), Source: s.Name()},
		{Date: day, Key: metric.KeyETHBurn24h, Value: metric.Float(resp.Burn24h), Source: s.Name()},
	}, nil
}
