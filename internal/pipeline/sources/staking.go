package sources

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chainlens/market-pipeline/internal/fetch"
	"github.com/chainlens/market-pipeline/internal/metric"
)

const (
	beaconAPI   = "https://beaconcha.in/api/v1/ethstore/latest"
	solStakeAPI = "https://api.stakingrewards.info/v1/solana/apr"

	// ETH validator rewards compound daily; SOL rewards compound per
	// epoch, roughly 150 epochs a year.
	ethCompoundPeriods = 365
	solCompoundPeriods = 150
)

// Staking converts validator reward rates into effective APY for ETH and
// SOL.
type Staking struct {
	client    *fetch.Client
	beaconURL string
	solURL    string
	now       func() time.Time
}

func NewStaking(client *fetch.Client) *Staking {
	return &Staking{client: client, beaconURL: beaconAPI, solURL: solStakeAPI, now: time.Now}
}

func (s *Staking) Name() string { return "staking" }

type aprResp struct {
	Data struct {
		APR float64 `json:"apr"`
	} `json:"data"`
}

func (s *Staking) Fetch(ctx context.Context) ([]metric.Record, error) {
	day := metric.Day(s.now())
	var records []metric.Record
	var errs []error

	if apr, err := s.fetchAPR(ctx, s.beaconURL); err != nil {
		errs = append(errs, fmt.Errorf("eth staking apr: %w", err))
	} else {
		records = append(records, metric.Record{
			Date: day, Key: metric.KeyStakingAPYETH,
			Value:  metric.Float(aprToAPY(apr, ethCompoundPeriods) * 100),
			Source: s.Name(),
		})
	}

	if apr, err := s.fetchAPR(ctx, s.solURL); err != nil {
		errs = append(errs, fmt.Errorf("sol staking apr: %w", err))
	} else {
		records = append(records, metric.Record{
			Date: day, Key: metric.KeyStakingAPYSOL,
			Value:  metric.Float(aprToAPY(apr, solCompoundPeriods) * 100),
			Source: s.Name(),
		})
	}

	return records, errors.Join(errs...)
}

func (s *Staking) fetchAPR(ctx context.Context, url string) (float64, error) {
	var resp aprResp
	if err := s.client.GetJSON(ctx, url, &resp, fetch.DefaultOptions()); err != nil {
		return 0, err
	}
	if resp.Data.APR < 0 {
		return 0, fmt.Errorf("negative apr %v", resp.Data.APR)
	}
	return resp.Data.APR, nil
}

// aprToAPY converts a nominal annual rate to the effective annual yield
// for the given number of compounding periods.
func aprToAPY(apr float64, periods float64) float64 {
	return math.Pow(1+apr/periods, periods) - 1
}
