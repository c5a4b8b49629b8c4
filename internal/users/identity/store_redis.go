// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/ventigrow/internal/platform/constants"
)

// # Refresh Session Repository

// RedisRefreshRepository implements [RefreshRepository] using Redis.
type RedisRefreshRepository struct {
	client redis.UniversalClient
}

// NewRefreshRepository creates a new Redis-backed RefreshRepository.
func NewRefreshRepository(client redis.UniversalClient) *RedisRefreshRepository {
	return &RedisRefreshRepository{client: client}
}

/*
Save stores the refresh record under its token hash until ttl elapses.

Parameters:
  - context: context.Context
  - tokenHash: string (hex SHA-256 of the refresh token)
  - record: RefreshRecord
  - ttl: time.Duration

Returns:
  - error: Execution errors
*/
func (repository *RedisRefreshRepository) Save(context context.Context, tokenHash string, record RefreshRecord, ttl time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("redis_refresh_encode_failed: %w", err)
	}

	if err := repository.client.Set(context, constants.RedisPrefixRefresh+tokenHash, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis_refresh_save_failed: %w", err)
	}
	return nil
}

/*
Find resolves a refresh token hash.

Returns:
  - *RefreshRecord: The stored record
  - error: ErrInvalidToken when absent, or connectivity errors
*/
func (repository *RedisRefreshRepository) Find(context context.Context, tokenHash string) (*RefreshRecord, error) {
	payload, err := repository.client.Get(context, constants.RedisPrefixRefresh+tokenHash).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("redis_refresh_find_failed: %w", err)
	}

	record := &RefreshRecord{}
	if err := json.Unmarshal(payload, record); err != nil {
		return nil, fmt.Errorf("redis_refresh_decode_failed: %w", err)
	}
	return record, nil
}

// Revoke deletes the refresh record. Revoking an unknown hash is not an error.
func (repository *RedisRefreshRepository) Revoke(context context.Context, tokenHash string) error {
	if err := repository.client.Del(context, constants.RedisPrefixRefresh+tokenHash).Err(); err != nil {
		return fmt.Errorf("redis_refresh_revoke_failed: %w", err)
	}
	return nil
}

// # One-time Token Repository

// RedisOneTimeTokenRepository implements [OneTimeTokenRepository] for one key prefix.
type RedisOneTimeTokenRepository struct {
	client redis.UniversalClient
	prefix string
}

// NewResetTokenRepository stores password recovery tokens.
func NewResetTokenRepository(client redis.UniversalClient) *RedisOneTimeTokenRepository {
	return &RedisOneTimeTokenRepository{client: client, prefix: constants.RedisPrefixResetToken}
}

// NewVerificationTokenRepository stores email confirmation tokens.
func NewVerificationTokenRepository(client redis.UniversalClient) *RedisOneTimeTokenRepository {
	return &RedisOneTimeTokenRepository{client: client, prefix: constants.RedisPrefixVerifyToken}
}

// Set stores a token hash with its user ID and TTL.
func (repository *RedisOneTimeTokenRepository) Set(context context.Context, tokenHash, userID string, ttl time.Duration) error {
	if err := repository.client.Set(context, repository.prefix+tokenHash, userID, ttl).Err(); err != nil {
		return fmt.Errorf("redis_one_time_token_set_failed: %w", err)
	}
	return nil
}

/*
Consume reads and deletes the token in one GETDEL round trip, so a token can
be redeemed at most once even under concurrent requests.

Returns:
  - string: The user ID the token was issued for
  - error: ErrInvalidToken when absent or expired
*/
func (repository *RedisOneTimeTokenRepository) Consume(context context.Context, tokenHash string) (string, error) {
	userID, err := repository.client.GetDel(context, repository.prefix+tokenHash).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("redis_one_time_token_consume_failed: %w", err)
	}
	return userID, nil
}

// # Client Session Repository

// RedisClientSessionRepository implements [ClientSessionRepository] using Redis.
type RedisClientSessionRepository struct {
	client redis.UniversalClient
}

// NewClientSessionRepository creates a new Redis-backed ClientSessionRepository.
func NewClientSessionRepository(client redis.UniversalClient) *RedisClientSessionRepository {
	return &RedisClientSessionRepository{client: client}
}

// Load returns the persisted session, or nil when the client has none.
func (repository *RedisClientSessionRepository) Load(context context.Context, clientID string) (*Session, error) {
	payload, err := repository.client.Get(context, constants.RedisPrefixClientSession+clientID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis_client_session_load_failed: %w", err)
	}

	session := &Session{}
	if err := json.Unmarshal(payload, session); err != nil {
		return nil, fmt.Errorf("redis_client_session_decode_failed: %w", err)
	}
	return session, nil
}

// Save persists the session until ttl elapses.
func (repository *RedisClientSessionRepository) Save(context context.Context, clientID string, session *Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("redis_client_session_encode_failed: %w", err)
	}

	if err := repository.client.Set(context, constants.RedisPrefixClientSession+clientID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis_client_session_save_failed: %w", err)
	}
	return nil
}

// Clear removes the persisted session.
func (repository *RedisClientSessionRepository) Clear(context context.Context, clientID string) error {
	if err := repository.client.Del(context, constants.RedisPrefixClientSession+clientID).Err(); err != nil {
		return fmt.Errorf("redis_client_session_clear_failed: %w", err)
	}
	return nil
}
