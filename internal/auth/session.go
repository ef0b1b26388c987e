package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SessionTTL is the fixed token lifetime. No sliding expiry: the embedded
// timestamp decides, full stop.
const SessionTTL = 7 * 24 * time.Hour

// SessionCookie is the cookie carrying the signed session token. Shared by
// the issuing handler and the verifying middleware.
const SessionCookie = "session"

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrExpiredToken = errors.New("expired session token")
)

// Signer issues and verifies compact stateless session tokens. The token
// is `base64url(ownerID|issuedAt|expiresAt).hex(hmac-sha256)`; there is no
// server-side session table to consult or clean up.
type Signer struct {
	key []byte
	now func() time.Time
}

func NewSigner(key string) *Signer {
	return &Signer{key: []byte(key), now: time.Now}
}

// Issue creates a token for ownerID valid for SessionTTL from now.
func (s *Signer) Issue(ownerID string) string {
	issued := s.now().UTC()
	expires := issued.Add(SessionTTL)
	payload := fmt.Sprintf("%s|%d|%d", ownerID, issued.Unix(), expires.Unix())
	encoded := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return encoded + "." + s.tag(encoded)
}

// Verify recomputes the integrity tag and checks the embedded expiry.
// Returns the owner identity on success.
func (s *Signer) Verify(token string) (string, error) {
	encoded, tag, ok := strings.Cut(token, ".")
	if !ok {
		return "", ErrInvalidToken
	}
	if !hmac.Equal([]byte(s.tag(encoded)), []byte(tag)) {
		return "", ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidToken
	}
	parts := strings.Split(string(payload), "|")
	if len(parts) != 3 {
		return "", ErrInvalidToken
	}
	expires, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", ErrInvalidToken
	}
	if s.now().UTC().Unix() >= expires {
		return "", ErrExpiredToken
	}
	return parts[0], nil
}

func (s *Signer) tag(encoded string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(encoded))
	return hex.EncodeToString(mac.Sum(nil))
}
