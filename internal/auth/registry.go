package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Registry tracks issued session tokens so they can be revoked before the
// cookie expires.
type Registry interface {
	Register(ctx context.Context, sess Session) error
	Active(ctx context.Context, token string) (bool, error)
	Revoke(ctx context.Context, token string) error
}

type RedisRegistry struct {
	rdb *redis.Client
}

func NewRedisRegistry(rdb *redis.Client) *RedisRegistry {
	return &RedisRegistry{rdb: rdb}
}

type sessionValue struct {
	Username  string `json:"username"`
	ExpiresAt string `json:"expires_at"` // RFC3339
}

func (r *RedisRegistry) key(token string) string { return "sess:" + token }

func (r *RedisRegistry) Register(ctx context.Context, sess Session) error {
	ttl := time.Until(sess.Expires)
	if ttl <= 0 {
		return errors.New("session already expired")
	}
	val, err := json.Marshal(sessionValue{Username: sess.Username, ExpiresAt: sess.Expires.UTC().Format(time.RFC3339)})
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.key(sess.Token), val, ttl).Err()
}

func (r *RedisRegistry) Active(ctx context.Context, token string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.key(token)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RedisRegistry) Revoke(ctx context.Context, token string) error {
	return r.rdb.Del(ctx, r.key(token)).Err()
}

func (r *RedisRegistry) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
