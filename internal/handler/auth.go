package handler

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/chainlens/market-pipeline/internal/auth"
	"github.com/chainlens/market-pipeline/internal/metrics"
)

// CodeSender delivers a one-time passcode out of band.
type CodeSender interface {
	SendLoginCode(chatID int64, code string) error
}

// RequestOTP issues a passcode for an allow-listed owner and delivers it
// over Telegram. Unknown owners get a 403 and no code is generated.
func RequestOTP(codes auth.CodeStore, sender CodeSender, owners map[string]int64, logger *slog.Logger) http.HandlerFunc {
	type request struct {
		Owner string `json:"ownerId"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Owner == "" {
			http.Error(w, `{"error":"ownerId required"}`, http.StatusBadRequest)
			return
		}

		chatID, ok := owners[req.Owner]
		if !ok {
			http.Error(w, `{"error":"unknown owner"}`, http.StatusForbidden)
			return
		}

		code, err := auth.GenerateCode()
		if err != nil {
			http.Error(w, `{"error":"failed to generate code"}`, http.StatusInternalServerError)
			return
		}
		if err := codes.Put(r.Context(), req.Owner, code, auth.CodeTTL); err != nil {
			logger.Error("store passcode", "owner", req.Owner, "error", err)
			http.Error(w, `{"error":"failed to store code"}`, http.StatusInternalServerError)
			return
		}
		if err := sender.SendLoginCode(chatID, code); err != nil {
			http.Error(w, `{"error":"failed to deliver code"}`, http.StatusInternalServerError)
			return
		}

		metrics.OTPIssuedTotal.Inc()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}
}

// VerifyOTP exchanges a passcode for a session token. The stored code is
// deleted on every outcome, so a code can never be tried twice.
func VerifyOTP(codes auth.CodeStore, signer *auth.Signer, logger *slog.Logger) http.HandlerFunc {
	type request struct {
		Owner string `json:"ownerId"`
		Code  string `json:"code"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Owner == "" || req.Code == "" {
			http.Error(w, `{"error":"ownerId and code required"}`, http.StatusBadRequest)
			return
		}

		stored, err := codes.Get(r.Context(), req.Owner)
		if err != nil {
			if !errors.Is(err, auth.ErrCodeNotFound) {
				logger.Error("read passcode", "owner", req.Owner, "error", err)
			}
			metrics.OTPVerifiedTotal.WithLabelValues("rejected").Inc()
			http.Error(w, `{"error":"invalid code"}`, http.StatusUnauthorized)
			return
		}
		// Single use: the code is gone whether or not it matches.
		if err := codes.Delete(r.Context(), req.Owner); err != nil {
			logger.Error("delete passcode", "owner", req.Owner, "error", err)
		}

		if subtle.ConstantTimeCompare([]byte(stored), []byte(req.Code)) != 1 {
			metrics.OTPVerifiedTotal.WithLabelValues("rejected").Inc()
			http.Error(w, `{"error":"invalid code"}`, http.StatusUnauthorized)
			return
		}

		token := signer.Issue(req.Owner)
		http.SetCookie(w, &http.Cookie{
			Name:     auth.SessionCookie,
			Value:    token,
			Path:     "/",
			MaxAge:   int(auth.SessionTTL.Seconds()),
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		})

		metrics.OTPVerifiedTotal.WithLabelValues("accepted").Inc()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "token": token})
	}
}
