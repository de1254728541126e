package auth

import (
	"context"
	"fmt"
	"time"

	"userhub/internal/cache"
	apperrors "userhub/internal/errors"
)

const consumedTokenKeyPrefix = "consumed_token:"

// TokenStoreInterface records which verification tokens have been consumed.
// Tokens are stateless, so single-use is enforced with a denylist of JTIs
// held until the token would have expired anyway.
type TokenStoreInterface interface {
	ConsumeToken(ctx context.Context, jti string, ttl time.Duration) error
}

// TokenStore is the Redis-backed consumed-token store.
type TokenStore struct {
	cache *cache.Client
}

// Ensure TokenStore implements TokenStoreInterface
var _ TokenStoreInterface = (*TokenStore)(nil)

// NewTokenStore creates a new token store.
func NewTokenStore(cache *cache.Client) *TokenStore {
	return &TokenStore{cache: cache}
}

// ConsumeToken marks a token as used. Returns ErrTokenConsumed when the JTI
// has been seen before. The denylist fails closed: an unreachable store is an
// error, never a fresh token.
func (s *TokenStore) ConsumeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return apperrors.ErrTokenExpired
	}
	stored, err := s.cache.SetNX(ctx, consumedTokenKeyPrefix+jti, []byte("1"), ttl)
	if err != nil {
		return fmt.Errorf("consumed-token store: %w", err)
	}
	if !stored {
		return apperrors.ErrTokenConsumed
	}
	return nil
}
