package repository

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
)

// ProgressCache redis 实现的 key → blob 存储
type ProgressCache struct {
	Redis *redis.Client
}

func NewProgressCache(rdb *redis.Client) *ProgressCache {
	return &ProgressCache{Redis: rdb}
}

// Get key 不存在时返回 (nil, nil)
func (c *ProgressCache) Get(ctx context.Context, key string) ([]byte, error) {
	blob, err := c.Redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// Set 不设置过期时间，进度只在显式重置时清除
func (c *ProgressCache) Set(ctx context.Context, key string, blob []byte) error {
	return c.Redis.Set(ctx, key, blob, 0).Err()
}

// Delete 全部重置时清除
func (c *ProgressCache) Delete(ctx context.Context, key string) error {
	return c.Redis.Del(ctx, key).Err()
}
