package metric

import (
	"fmt"
	"time"
)

// Key identifies what a stored value represents. The set of keys is closed:
// the store rejects anything outside this enumeration, so adding a chart
// metric means adding a constant here, not inventing a string at a call site.
type Key string

const (
	KeyBTCPrice         Key = "btc_price"
	KeyETHPrice         Key = "eth_price"
	KeyETHBTCRatio      Key = "eth_btc_ratio"
	KeyETHPriceChange7d Key = "eth_price_change_7d"
	KeyStakingAPYETH    Key = "staking_apy_eth"
	KeyStakingAPYSOL    Key = "staking_apy_sol"
	KeyDefiTVL          Key = "defi_tvl"
	KeyStablecoinMcap   Key = "stablecoin_mcap"
	KeyFundingBTC       Key = "funding_btc"
	KeyOpenInterestBTC  Key = "open_interest_btc"
	KeyETHSupply        Key = "eth_supply"
	KeyETHBurn24h       Key = "eth_burn_24h"
	KeyGasPriceGwei     Key = "gas_price_gwei"
	KeyETFFlowBTC       Key = "etf_flow_btc"
	KeyETFFlowETH       Key = "etf_flow_eth"
	KeyETFFlowSOL       Key = "etf_flow_sol"
	KeyDATHoldingsBTC   Key = "dat_holdings_btc"
	KeyDATHoldingsETH   Key = "dat_holdings_eth"
)

var allKeys = []Key{
	KeyBTCPrice, KeyETHPrice, KeyETHBTCRatio, KeyETHPriceChange7d,
	KeyStakingAPYETH, KeyStakingAPYSOL, KeyDefiTVL, KeyStablecoinMcap,
	KeyFundingBTC, KeyOpenInterestBTC, KeyETHSupply, KeyETHBurn24h,
	KeyGasPriceGwei, KeyETFFlowBTC, KeyETFFlowETH, KeyETFFlowSOL,
	KeyDATHoldingsBTC, KeyDATHoldingsETH,
}

var keySet = func() map[Key]bool {
	m := make(map[Key]bool, len(allKeys))
	for _, k := range allKeys {
		m[k] = true
	}
	return m
}()

// Keys returns the full enumeration in declaration order.
func Keys() []Key {
	out := make([]Key, len(allKeys))
	copy(out, allKeys)
	return out
}

// Valid reports whether k belongs to the closed enumeration.
func (k Key) Valid() bool { return keySet[k] }

// ParseKey validates a raw string against the enumeration.
func ParseKey(s string) (Key, error) {
	k := Key(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown metric key %q", s)
	}
	return k, nil
}

// Record is the unit of persistence: one value for one metric on one
// UTC calendar day. Value nil means "no data yet", which is distinct
// from zero. Metadata is display/debug payload only; downstream logic
// must never depend on it numerically.
type Record struct {
	Date     time.Time      `json:"date"`
	Key      Key            `json:"key"`
	Value    *float64       `json:"value"`
	Metadata map[string]any `json:"metadata,omitempty"`

	// Scraped marks records derived from rendered third-party pages.
	// The orchestrator applies the freshness gate only to these.
	Scraped bool   `json:"-"`
	Source  string `json:"-"`
}

// Float returns a pointer to v, for building nullable record values.
func Float(v float64) *float64 { return &v }

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Dedupe collapses records sharing a (date, key) pair, keeping the
// last-seen entry. Order of first appearance is preserved.
func Dedupe(records []Record) []Record {
	index := make(map[string]int, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		k := r.Date.Format("2006-01-02") + "|" + string(r.Key)
		if i, ok := index[k]; ok {
			out[i] = r
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}
