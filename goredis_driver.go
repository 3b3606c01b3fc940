package gcra

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// GoRedisClient is a Client backed by go-redis. Any UniversalClient works:
// a single node, a cluster, or a failover client.
type GoRedisClient struct {
	rdb redis.UniversalClient
}

// NewGoRedisClient dials with opts.
func NewGoRedisClient(opts *redis.UniversalOptions) *GoRedisClient {
	return &GoRedisClient{rdb: redis.NewUniversalClient(opts)}
}

// WrapGoRedis adapts an existing go-redis client.
func WrapGoRedis(rdb redis.UniversalClient) *GoRedisClient {
	return &GoRedisClient{rdb: rdb}
}

func (c *GoRedisClient) ScriptLoad(ctx context.Context, src string) (string, error) {
	return c.rdb.ScriptLoad(ctx, src).Result()
}

func (c *GoRedisClient) EvalSha(ctx context.Context, sha string, keys []string, args ...interface{}) ([]interface{}, error) {
	reply, err := c.rdb.EvalSha(ctx, sha, keys, args...).Slice()
	if err != nil {
		if redis.HasErrorPrefix(err, "NOSCRIPT") {
			return nil, fmt.Errorf("%w: %w", ErrNoScript, err)
		}
		return nil, err
	}
	return reply, nil
}

func (c *GoRedisClient) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (c *GoRedisClient) Del(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

func (c *GoRedisClient) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *GoRedisClient) Close() error {
	return c.rdb.Close()
}
