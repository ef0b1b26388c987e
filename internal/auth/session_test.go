package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRoundTrip(t *testing.T) {
	s := NewSigner("test-signing-key")
	token := s.Issue("alice")

	owner, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
}

func TestSessionTamperedPayload(t *testing.T) {
	s := NewSigner("test-signing-key")
	token := s.Issue("alice")

	parts := strings.SplitN(token, ".", 2)
	forged := "Ym9ifDF8OTk5OTk5OTk5OQ" + "." + parts[1]
	_, err := s.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionWrongKey(t *testing.T) {
	token := NewSigner("key-one").Issue("alice")
	_, err := NewSigner("key-two").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionMalformed(t *testing.T) {
	s := NewSigner("test-signing-key")
	for _, token := range []string{"", "no-dot", "a.b.c.d", "!!!.???"} {
		_, err := s.Verify(token)
		assert.Error(t, err, "token %q", token)
	}
}

func TestSessionExpiry(t *testing.T) {
	s := NewSigner("test-signing-key")
	issued := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }
	token := s.Issue("alice")

	// Still valid one minute before the 7-day mark.
	s.now = func() time.Time { return issued.Add(SessionTTL - time.Minute) }
	owner, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)

	// Hard expiry, no sliding window.
	s.now = func() time.Time { return issued.Add(SessionTTL) }
	_, err = s.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
