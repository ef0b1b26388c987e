package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chainlens/market-pipeline/internal/metric"
	"github.com/chainlens/market-pipeline/internal/pipeline"
)

type stubStore struct {
	err error
}

func (s *stubStore) UpsertRecords(ctx context.Context, records []metric.Record) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return len(records), nil
}

type stubAdapter struct {
	name    string
	records []metric.Record
	err     error
}

func (a *stubAdapter) Name() string { return a.name }
func (a *stubAdapter) Fetch(ctx context.Context) ([]metric.Record, error) {
	return a.records, a.err
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testEngine(st pipeline.SnapshotStore) *pipeline.Engine {
	e := pipeline.NewEngine(st, testLogger())
	e.Register(&stubAdapter{name: "prices", records: []metric.Record{
		{Date: time.Now().UTC(), Key: metric.KeyBTCPrice, Value: metric.Float(100000)},
	}})
	return e
}

func TestCronAuth(t *testing.T) {
	handler := Cron(testEngine(&stubStore{}), "topsecret")

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid secret", "Bearer topsecret", http.StatusOK},
		{"wrong secret", "Bearer wrong", http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic topsecret", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/cron", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestCronNoSecretConfigured(t *testing.T) {
	handler := Cron(testEngine(&stubStore{}), "")

	req := httptest.NewRequest(http.MethodGet, "/cron", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d (empty secret must not match)", rec.Code, http.StatusUnauthorized)
	}
}

func TestCronRunResult(t *testing.T) {
	handler := Cron(testEngine(&stubStore{}), "topsecret")

	req := httptest.NewRequest(http.MethodGet, "/cron", nil)
	req.Header.Set("Authorization", "Bearer topsecret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var result pipeline.RunResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Success || result.MetricsStored != 1 {
		t.Errorf("result = %+v, want success with 1 stored", result)
	}
	if result.Errors == nil {
		t.Error("errors field decoded as nil, want []")
	}
}

func TestCronStorageFailureIs500(t *testing.T) {
	handler := Cron(testEngine(&stubStore{err: errors.New("connection refused")}), "topsecret")

	req := httptest.NewRequest(http.MethodGet, "/cron", nil)
	req.Header.Set("Authorization", "Bearer topsecret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestAdminFetch(t *testing.T) {
	engine := testEngine(&stubStore{})
	engine.Register(&stubAdapter{name: "staking", err: errors.New("down")})
	handler := AdminFetch(engine)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"no body runs everything", "", http.StatusOK},
		{"named source", `{"sources":["prices"]}`, http.StatusOK},
		{"unknown source", `{"sources":["nonexistent"]}`, http.StatusBadRequest},
		{"invalid JSON", `{invalid`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(http.MethodPost, "/admin/fetch", body)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestAdminFetchFilterSkipsFailingSource(t *testing.T) {
	engine := testEngine(&stubStore{})
	engine.Register(&stubAdapter{name: "staking", err: errors.New("down")})
	handler := AdminFetch(engine)

	req := httptest.NewRequest(http.MethodPost, "/admin/fetch", strings.NewReader(`{"sources":["prices"]}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var result pipeline.RunResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Errorf("errors = %v, want none when the failing source is filtered out", result.Errors)
	}
}
