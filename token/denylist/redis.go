package denylist

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "denylist:"

// Redis is a Store backed by a shared Redis instance, for deployments with
// more than one engine node. Expiry is delegated to Redis key TTLs, so Sweep
// is a no-op.
type Redis struct {
	client    redis.UniversalClient
	keyPrefix string
}

var _ Store = (*Redis)(nil)

// NewRedis connects to the given address and verifies the connection.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "[denylist.NewRedis] connecting to %s", addr)
	}
	return &Redis{
		client:    client,
		keyPrefix: defaultKeyPrefix,
	}, nil
}

// NewRedisWithClient wraps an existing client, for tests and callers that
// manage their own connection options.
func NewRedisWithClient(client redis.UniversalClient) *Redis {
	return &Redis{
		client:    client,
		keyPrefix: defaultKeyPrefix,
	}
}

func (r *Redis) Add(ctx context.Context, jti string, expiresAt, now time.Time) error {
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.keyPrefix+jti, "1", ttl).Err(); err != nil {
		return errors.Wrap(err, "[Redis Add] storing revoked jti")
	}
	return nil
}

func (r *Redis) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, r.keyPrefix+jti).Result()
	if err != nil {
		return false, errors.Wrap(err, "[Redis Contains] checking jti")
	}
	return n > 0, nil
}

func (r *Redis) Sweep(context.Context, time.Time) error {
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
