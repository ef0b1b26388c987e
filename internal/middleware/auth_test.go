package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chainlens/market-pipeline/internal/auth"
)

func TestRequireSession(t *testing.T) {
	signer := auth.NewSigner("test-key")
	token := signer.Issue("alice")

	var gotOwner string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOwner, _ = Owner(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireSession(signer)(next)

	tests := []struct {
		name       string
		setup      func(*http.Request)
		wantStatus int
		wantOwner  string
	}{
		{
			name:       "valid cookie",
			setup:      func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "session", Value: token}) },
			wantStatus: http.StatusOK,
			wantOwner:  "alice",
		},
		{
			name:       "valid bearer token",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
			wantStatus: http.StatusOK,
			wantOwner:  "alice",
		},
		{
			name:       "no credentials",
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "tampered token",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: "session", Value: token + "x"})
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "token from another key",
			setup: func(r *http.Request) {
				other := auth.NewSigner("other-key").Issue("alice")
				r.AddCookie(&http.Cookie{Name: "session", Value: other})
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotOwner = ""
			req := httptest.NewRequest(http.MethodPost, "/admin/fetch", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantOwner != "" && gotOwner != tt.wantOwner {
				t.Errorf("owner = %q, want %q", gotOwner, tt.wantOwner)
			}
		})
	}
}
