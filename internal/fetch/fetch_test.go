package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	c := New(1000, 1000)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestGetJSONSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price": 42.5}`))
	}))
	defer srv.Close()

	var out struct {
		Price float64 `json:"price"`
	}
	err := testClient().GetJSON(context.Background(), srv.URL, &out, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 42.5, out.Price)
}

func TestRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := testClient().GetJSON(context.Background(), srv.URL, &out,
		Options{Timeout: time.Second, Retries: 3, BackoffBase: time.Millisecond})
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRateLimitExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := testClient().GetJSON(context.Background(), srv.URL, nil,
		Options{Timeout: time.Second, Retries: 2, BackoffBase: time.Millisecond})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus two retries")
}

func TestNoRetryOnOtherStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := testClient().GetJSON(context.Background(), srv.URL, nil,
		Options{Timeout: time.Second, Retries: 5, BackoffBase: time.Millisecond})
	require.Error(t, err)
	assert.False(t, IsRateLimited(err))
	assert.Equal(t, int32(1), calls.Load(), "non-429 must fail without retry")
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	err := testClient().GetJSON(context.Background(), srv.URL, nil,
		Options{Timeout: 20 * time.Millisecond, Retries: 0, BackoffBase: time.Millisecond})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	var out map[string]any
	err := testClient().GetJSON(context.Background(), srv.URL, &out, DefaultOptions())
	require.Error(t, err)
	assert.False(t, IsRateLimited(err))
	assert.False(t, IsTimeout(err))
}

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"jsonrpc":"2.0","result":"0x1"}`))
	}))
	defer srv.Close()

	var out struct {
		Result string `json:"result"`
	}
	body := map[string]any{"jsonrpc": "2.0", "method": "eth_gasPrice", "id": 1}
	err := testClient().PostJSON(context.Background(), srv.URL, body, &out, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "0x1", out.Result)
}
