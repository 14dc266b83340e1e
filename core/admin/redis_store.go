package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// redisRevocationStore keeps revoked token ids in Redis with a TTL matching
// the token's remaining lifetime.
type redisRevocationStore struct {
	client *redis.Client
}

// NewRedisRevocationStore creates a RevocationStore on the given client.
func NewRedisRevocationStore(client *redis.Client) RevocationStore {
	return &redisRevocationStore{client: client}
}

func revocationKey(jti string) string {
	return "admin:revoked:" + jti
}

func (s *redisRevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := s.client.Set(ctx, revocationKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token %s: %w", jti, err)
	}
	return nil
}

func (s *redisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, err := s.client.Get(ctx, revocationKey(jti)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up token %s: %w", jti, err)
	}
	return true, nil
}
