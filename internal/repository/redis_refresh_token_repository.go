package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Rijughosh14/EShop/internal/domain"
	pkgredis "github.com/Rijughosh14/EShop/pkg/redis"
)

const (
	refreshTokenKeyPrefix = "refresh_token:"
	userTokensKeyPrefix   = "user_refresh_tokens:"
)

// KEYS[1] old token key, KEYS[2] new token key, KEYS[3] user set
// ARGV[1] old hash, ARGV[2] new hash, ARGV[3] new record, ARGV[4] ttl ms
// Returns 1 on success, 0 if the old token is gone, -1 on a hash collision.
const rotateScript = `
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
if redis.call('SISMEMBER', KEYS[3], ARGV[1]) == 0 then
	return 0
end
if redis.call('EXISTS', KEYS[2]) == 1 then
	return -1
end
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[3], ARGV[1])
redis.call('SET', KEYS[2], ARGV[3], 'PX', ARGV[4])
redis.call('SADD', KEYS[3], ARGV[2])
redis.call('PEXPIRE', KEYS[3], ARGV[4])
return 1
`

// KEYS[1] token key, KEYS[2] user set; ARGV[1] hash
const revokeScript = `
if redis.call('SREM', KEYS[2], ARGV[1]) == 1 then
	redis.call('DEL', KEYS[1])
	return 1
end
return 0
`

// RedisRefreshTokenRepository stores refresh tokens as expiring keys plus a
// per-user set of hashes. Key expiry replaces the sweeper.
type RedisRefreshTokenRepository struct {
	client *pkgredis.Client
	now    func() time.Time
}

// NewRedisRefreshTokenRepository creates a new RedisRefreshTokenRepository
func NewRedisRefreshTokenRepository(client *pkgredis.Client) *RedisRefreshTokenRepository {
	return &RedisRefreshTokenRepository{client: client, now: time.Now}
}

func tokenKey(hash string) string    { return refreshTokenKeyPrefix + hash }
func userSetKey(userID string) string { return userTokensKeyPrefix + userID }

func (r *RedisRefreshTokenRepository) ttl(t *domain.RefreshToken) time.Duration {
	ttl := t.ExpiresAt.Sub(r.now())
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	return ttl
}

// Create appends a refresh token to its user's set
func (r *RedisRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	value, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh token: %w", err)
	}
	ttl := r.ttl(token)

	ok, err := r.client.SetNX(ctx, tokenKey(token.TokenHash), value, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrTokenCollision
	}

	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, userSetKey(token.UserID), token.TokenHash)
	pipe.PExpire(ctx, userSetKey(token.UserID), ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// GetByHash retrieves a refresh token by hash
func (r *RedisRefreshTokenRepository) GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	raw, err := r.client.Get(ctx, tokenKey(hash)).Bytes()
	if err != nil {
		if errors.Is(err, pkgredis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	token := &domain.RefreshToken{}
	if err := json.Unmarshal(raw, token); err != nil {
		return nil, fmt.Errorf("failed to decode refresh token: %w", err)
	}
	if token.Expired(r.now()) {
		return nil, nil
	}
	return token, nil
}

// Rotate swaps oldHash for next with a single Lua script
func (r *RedisRefreshTokenRepository) Rotate(ctx context.Context, oldHash string, next *domain.RefreshToken) error {
	value, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh token: %w", err)
	}

	keys := []string{tokenKey(oldHash), tokenKey(next.TokenHash), userSetKey(next.UserID)}
	res, err := r.client.EvalWithFallback(ctx, "refresh_token_rotate", rotateScript, keys,
		oldHash, next.TokenHash, string(value), r.ttl(next).Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	switch res {
	case 1:
		return nil
	case -1:
		return ErrTokenCollision
	default:
		return ErrRefreshTokenNotFound
	}
}

// Delete removes one refresh token of a user
func (r *RedisRefreshTokenRepository) Delete(ctx context.Context, userID, hash string) error {
	keys := []string{tokenKey(hash), userSetKey(userID)}
	return r.client.EvalWithFallback(ctx, "refresh_token_revoke", revokeScript, keys, hash).Err()
}

// DeleteByUserID deletes all refresh tokens for a user
func (r *RedisRefreshTokenRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	hashes, err := r.client.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil {
		return 0, err
	}

	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, tokenKey(h))
	}
	keys = append(keys, userSetKey(userID))

	if _, err := r.client.Del(ctx, keys...).Result(); err != nil {
		return 0, err
	}
	return int64(len(hashes)), nil
}

// DeleteExpired is a no-op; Redis evicts expired token keys itself
func (r *RedisRefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
