package sources

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chainlens/market-pipeline/internal/metric"
)

func TestAprToAPY(t *testing.T) {
	tests := []struct {
		name    string
		apr     float64
		periods float64
		want    float64
	}{
		{"zero rate", 0, 365, 0},
		{"3% daily compounding", 0.03, 365, math.Pow(1+0.03/365, 365) - 1},
		{"7% epoch compounding", 0.07, 150, math.Pow(1+0.07/150, 150) - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := aprToAPY(tt.apr, tt.periods)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("aprToAPY(%v, %v) = %v, want %v", tt.apr, tt.periods, got, tt.want)
			}
			if tt.apr > 0 && got <= tt.apr {
				t.Errorf("compounded yield %v not above nominal rate %v", got, tt.apr)
			}
		})
	}
}

func aprServer(apr float64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"apr": apr}})
	}))
}

func TestStakingFetch(t *testing.T) {
	eth := aprServer(0.032)
	defer eth.Close()
	sol := aprServer(0.071)
	defer sol.Close()

	s := &Staking{client: testFetchClient(), beaconURL: eth.URL, solURL: sol.URL, now: fixedNow}
	records, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	byKey := recordsByKey(records)
	wantETH := aprToAPY(0.032, ethCompoundPeriods) * 100
	if got := *byKey[metric.KeyStakingAPYETH].Value; math.Abs(got-wantETH) > 1e-9 {
		t.Errorf("staking_apy_eth = %v, want %v", got, wantETH)
	}
	wantSOL := aprToAPY(0.071, solCompoundPeriods) * 100
	if got := *byKey[metric.KeyStakingAPYSOL].Value; math.Abs(got-wantSOL) > 1e-9 {
		t.Errorf("staking_apy_sol = %v, want %v", got, wantSOL)
	}
}

func TestStakingPartialFailure(t *testing.T) {
	eth := aprServer(0.032)
	defer eth.Close()
	sol := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer sol.Close()

	s := &Staking{client: testFetchClient(), beaconURL: eth.URL, solURL: sol.URL, now: fixedNow}
	records, err := s.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error for failed SOL leg")
	}
	byKey := recordsByKey(records)
	if _, ok := byKey[metric.KeyStakingAPYETH]; !ok {
		t.Error("staking_apy_eth missing despite successful fetch")
	}
	if _, ok := byKey[metric.KeyStakingAPYSOL]; ok {
		t.Error("staking_apy_sol present despite failed fetch")
	}
}
