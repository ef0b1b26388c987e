package sources

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chainlens/market-pipeline/internal/fetch"
	"github.com/chainlens/market-pipeline/internal/metric"
)

// Chain reads gas price straight from an Ethereum node over JSON-RPC.
// It goes through the bounded fetcher like every other adapter, so RPC
// calls share the same timeout and retry policy.
type Chain struct {
	client *fetch.Client
	rpcURL string
	now    func() time.Time
}

func NewChain(client *fetch.Client, rpcURL string) *Chain {
	return &Chain{client: client, rpcURL: rpcURL, now: time.Now}
}

func (c *Chain) Name() string { return "chain" }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Chain) Fetch(ctx context.Context) ([]metric.Record, error) {
	req := rpcRequest{JSONRPC: "2.0", Method: "eth_gasPrice", Params: []any{}, ID: 1}
	var resp rpcResponse
	if err := c.client.PostJSON(ctx, c.rpcURL, req, &resp, fetch.DefaultOptions()); err != nil {
		return nil, fmt.Errorf("eth_gasPrice: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("eth_gasPrice rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	wei, err := parseHexUint(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("eth_gasPrice result: %w", err)
	}

	return []metric.Record{{
		Date:   metric.Day(c.now()),
		Key:    metric.KeyGasPriceGwei,
		Value:  metric.Float(float64(wei) / 1e9),
		Source: c.Name(),
	}}, nil
}

func parseHexUint(s string) (uint64, error) {
	hex := strings.TrimPrefix(s, "0x")
	if hex == "" {
		return 0, fmt.Errorf("empty hex quantity %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hex quantity %q: %w", s, err)
	}
	return v, nil
}
