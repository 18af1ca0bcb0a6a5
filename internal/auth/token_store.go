package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "userapi/internal/errors"
)

const (
	refreshTokenKeyPrefix = "refresh_token:"
	userTokensKeyPrefix   = "user_refresh_tokens:"
	accessTokenKeyPrefix  = "blacklist:access_token:"
)

// TokenStoreInterface defines the interface for token storage operations.
type TokenStoreInterface interface {
	StoreRefreshToken(ctx context.Context, tokenID string, userID uuid.UUID, email string, ttl time.Duration) error
	GetRefreshToken(ctx context.Context, tokenID string) (userID uuid.UUID, email string, err error)
	RevokeRefreshToken(ctx context.Context, tokenID string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
	BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error
	IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error)
}

// ErrRefreshTokenNotFound is returned when a refresh token was never issued,
// has expired or was revoked.
var ErrRefreshTokenNotFound = errors.New("refresh token not found")

// TokenStore keeps issued refresh tokens and blacklisted access tokens in Redis.
// Unlike the user cache it reports redis failures: revocation must not fail open.
type TokenStore struct {
	client redis.UniversalClient
}

// Ensure TokenStore implements TokenStoreInterface
var _ TokenStoreInterface = (*TokenStore)(nil)

// NewTokenStore creates a new token store.
func NewTokenStore(client redis.UniversalClient) *TokenStore {
	return &TokenStore{client: client}
}

type refreshTokenData struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

// StoreRefreshToken stores a refresh token in Redis with TTL and indexes it under its user.
func (s *TokenStore) StoreRefreshToken(ctx context.Context, tokenID string, userID uuid.UUID, email string, ttl time.Duration) error {
	payload, err := json.Marshal(refreshTokenData{UserID: userID, Email: email})
	if err != nil {
		return fmt.Errorf("marshal token data: %w", err)
	}

	userKey := userTokensKeyPrefix + userID.String()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, refreshTokenKeyPrefix+tokenID, payload, ttl)
		pipe.SAdd(ctx, userKey, tokenID)
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return unavailable("store refresh token", err)
	}
	return nil
}

// GetRefreshToken retrieves refresh token data from Redis.
func (s *TokenStore) GetRefreshToken(ctx context.Context, tokenID string) (uuid.UUID, string, error) {
	data, err := s.client.Get(ctx, refreshTokenKeyPrefix+tokenID).Bytes()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, "", ErrRefreshTokenNotFound
	}
	if err != nil {
		return uuid.Nil, "", unavailable("get refresh token", err)
	}

	var tokenData refreshTokenData
	if err := json.Unmarshal(data, &tokenData); err != nil {
		return uuid.Nil, "", fmt.Errorf("unmarshal token data: %w", err)
	}
	return tokenData.UserID, tokenData.Email, nil
}

// RevokeRefreshToken removes a refresh token from Redis.
func (s *TokenStore) RevokeRefreshToken(ctx context.Context, tokenID string) error {
	if err := s.client.Del(ctx, refreshTokenKeyPrefix+tokenID).Err(); err != nil {
		return unavailable("revoke refresh token", err)
	}
	return nil
}

// RevokeAllForUser removes every refresh token issued to the user.
func (s *TokenStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	userKey := userTokensKeyPrefix + userID.String()
	tokenIDs, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return unavailable("list user refresh tokens", err)
	}

	keys := make([]string, 0, len(tokenIDs)+1)
	for _, id := range tokenIDs {
		keys = append(keys, refreshTokenKeyPrefix+id)
	}
	keys = append(keys, userKey)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return unavailable("revoke user refresh tokens", err)
	}
	return nil
}

// BlacklistAccessToken adds an access token to the blacklist until it expires.
func (s *TokenStore) BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, accessTokenKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return unavailable("blacklist access token", err)
	}
	return nil
}

// IsAccessTokenBlacklisted checks if an access token is blacklisted.
func (s *TokenStore) IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, accessTokenKeyPrefix+tokenID).Result()
	if err != nil {
		return false, unavailable("check access token", err)
	}
	return n > 0, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, apperrors.ErrServiceUnavailable, err)
}
