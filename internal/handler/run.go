package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/chainlens/market-pipeline/internal/pipeline"
)

// Cron triggers a full aggregation run. Meant for the platform scheduler:
// authentication is a shared secret in the Authorization header, compared
// in constant time.
func Cron(engine *pipeline.Engine, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !validBearer(r, secret) {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		writeRunResult(w, engine.Run(r.Context(), nil))
	}
}

// AdminFetch triggers a run on demand, optionally restricted to named
// sources. Session-gated by middleware; the handler only validates input.
func AdminFetch(engine *pipeline.Engine) http.HandlerFunc {
	type request struct {
		Sources []string `json:"sources"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
		}

		known := make(map[string]bool)
		for _, n := range engine.SourceNames() {
			known[n] = true
		}
		for _, n := range req.Sources {
			if !known[n] {
				http.Error(w, `{"error":"unknown source: `+n+`"}`, http.StatusBadRequest)
				return
			}
		}

		writeRunResult(w, engine.Run(r.Context(), req.Sources))
	}
}

// writeRunResult serializes the run outcome. Partial adapter failures are
// still a 200 with the errors listed; only a storage failure is a 500.
func writeRunResult(w http.ResponseWriter, result pipeline.RunResult) {
	w.Header().Set("Content-Type", "application/json")
	if !result.Success {
		w.WriteHeader(http.StatusInternalServerError)
	}
	_ = json.NewEncoder(w).Encode(result)
}

func validBearer(r *http.Request, secret string) bool {
	if secret == "" {
		// No secret configured means the endpoint is disabled, not open.
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
