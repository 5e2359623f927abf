package service

import (
	"Carhub/internal/pkg/redis"
	"context"
	"time"
)

// KV 服务层依赖的缓存与分布式锁能力，默认由 Redis 提供
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	TryLock(ctx context.Context, key, owner string, ttl time.Duration, retryTimes int) (bool, error)
	UnLock(ctx context.Context, key, owner string)
}

type redisKV struct{}

func NewRedisKV() KV {
	return redisKV{}
}

func (redisKV) Get(ctx context.Context, key string) (string, error) {
	return redis.GetValue(ctx, key)
}

func (redisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return redis.SetWithExpiration(ctx, key, value, ttl)
}

func (redisKV) Del(ctx context.Context, key string) error {
	return redis.DeleteKey(ctx, key)
}

func (redisKV) TryLock(ctx context.Context, key, owner string, ttl time.Duration, retryTimes int) (bool, error) {
	return redis.TryLock(ctx, key, owner, ttl, retryTimes)
}

func (redisKV) UnLock(ctx context.Context, key, owner string) {
	redis.UnLock(ctx, key, owner)
}
