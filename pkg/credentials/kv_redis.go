package credentials

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "clarinet:credentials:"

// RedisKV shares credentials between machines through a redis server.
// Keys never expire.
type RedisKV struct {
	client *redis.Client
	prefix string
}

var _ KV = &RedisKV{}

func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client, prefix: redisKeyPrefix}
}

// NewRedisKVFromAddr connects to addr and checks the connection.
func NewRedisKVFromAddr(ctx context.Context, addr string) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "redis credential store: ping %s", addr)
	}
	return NewRedisKV(client), nil
}

func (r *RedisKV) key(k string) string {
	return r.prefix + k
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis credential store: get")
	}
	return v, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string) error {
	return errors.Wrap(r.client.Set(ctx, r.key(key), value, 0).Err(), "redis credential store: set")
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return errors.Wrap(r.client.Del(ctx, r.key(key)).Err(), "redis credential store: delete")
}

func (r *RedisKV) Close() error {
	return r.client.Close()
}
