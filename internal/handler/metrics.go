package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/chainlens/market-pipeline/internal/metric"
	"github.com/chainlens/market-pipeline/internal/store"
)

const defaultLookbackDays = 30

// MetricHistory returns stored snapshots for one metric key, newest first.
// ?days=N bounds the lookback; 0 means everything.
func MetricHistory(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := metric.ParseKey(chi.URLParam(r, "key"))
		if err != nil {
			http.Error(w, `{"error":"unknown metric key"}`, http.StatusBadRequest)
			return
		}

		days := defaultLookbackDays
		if raw := r.URL.Query().Get("days"); raw != "" {
			days, err = strconv.Atoi(raw)
			if err != nil || days < 0 {
				http.Error(w, `{"error":"invalid days parameter"}`, http.StatusBadRequest)
				return
			}
		}

		snaps, err := s.History(r.Context(), key, days)
		if err != nil {
			http.Error(w, `{"error":"failed to read history"}`, http.StatusInternalServerError)
			return
		}
		if snaps == nil {
			snaps = []store.Snapshot{}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snaps)
	}
}

// MetricKeys lists every metric key the pipeline can store.
func MetricKeys() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(metric.Keys())
	}
}
