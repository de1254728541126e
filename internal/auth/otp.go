package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"userhub/internal/cache"
	apperrors "userhub/internal/errors"
)

const otpKeyPrefix = "otp:"

var otpMax = big.NewInt(1000000)

// GenerateOTP returns a 6-digit numeric one-time code.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpMax)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// OTPStore holds at most one live OTP per user. Save overwrites any prior
// code; Consume removes the code as part of the read, so each issuance allows
// exactly one validation attempt.
type OTPStore interface {
	Save(ctx context.Context, userID, code string, ttl time.Duration) error
	Consume(ctx context.Context, userID string) (string, error)
}

// RedisOTPStore keeps OTP codes in Redis keyed by user id, expiring via TTL.
type RedisOTPStore struct {
	cache *cache.Client
}

var _ OTPStore = (*RedisOTPStore)(nil)

// NewOTPStore creates a Redis-backed OTP store.
func NewOTPStore(cache *cache.Client) *RedisOTPStore {
	return &RedisOTPStore{cache: cache}
}

// Save stores the latest code for the user, replacing any previous one.
func (s *RedisOTPStore) Save(ctx context.Context, userID, code string, ttl time.Duration) error {
	return s.cache.Set(ctx, otpKeyPrefix+userID, []byte(code), ttl)
}

// Consume returns the live code for the user and invalidates it.
func (s *RedisOTPStore) Consume(ctx context.Context, userID string) (string, error) {
	data, err := s.cache.GetDel(ctx, otpKeyPrefix+userID)
	if err != nil {
		return "", err
	}
	if data == nil {
		return "", apperrors.ErrOTPNotFound
	}
	return string(data), nil
}
