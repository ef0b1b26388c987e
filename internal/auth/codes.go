// Package auth implements the access gate: one-time passcodes held in an
// expiring store, and stateless HMAC-signed session tokens.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeTTL is how long an issued passcode stays verifiable.
const CodeTTL = 5 * time.Minute

// ErrCodeNotFound means no passcode is stored for the owner — either none
// was requested or it already expired or was consumed.
var ErrCodeNotFound = errors.New("no passcode for owner")

// CodeStore holds pending one-time passcodes keyed by owner identity.
// Implementations must expire entries on their own; Delete is still called
// on every verification outcome so codes are single-use regardless.
type CodeStore interface {
	Put(ctx context.Context, ownerID, code string, ttl time.Duration) error
	Get(ctx context.Context, ownerID string) (string, error)
	Delete(ctx context.Context, ownerID string) error
}

// RedisCodes is a CodeStore backed by Redis SETEX, so the 5-minute expiry
// holds even across process restarts.
type RedisCodes struct {
	rdb *redis.Client
}

func NewRedisCodes(redisURL, password string) (*RedisCodes, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	if password != "" {
		opts.Password = password
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisCodes{rdb: rdb}, nil
}

func (c *RedisCodes) Close() error { return c.rdb.Close() }

func (c *RedisCodes) Put(ctx context.Context, ownerID, code string, ttl time.Duration) error {
	return c.rdb.Set(ctx, codeKey(ownerID), code, ttl).Err()
}

func (c *RedisCodes) Get(ctx context.Context, ownerID string) (string, error) {
	code, err := c.rdb.Get(ctx, codeKey(ownerID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCodeNotFound
	}
	return code, err
}

func (c *RedisCodes) Delete(ctx context.Context, ownerID string) error {
	return c.rdb.Del(ctx, codeKey(ownerID)).Err()
}

func codeKey(ownerID string) string { return "otp:" + ownerID }

// GenerateCode returns a random 6-digit passcode, zero-padded.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate passcode: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
