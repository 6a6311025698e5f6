package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wileywidget/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache 键值缓存，值为序列化后的字节
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Name() string
}

// GetJSON 读取并反序列化缓存值
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	data, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, false
	}
	return v, true
}

// SetJSON 序列化后写入缓存，写入失败只记录日志
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) {
	if c == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.Set(ctx, key, data, ttl); err != nil {
		zap.L().Warn("写入缓存失败", zap.String("key", key), zap.Error(err))
	}
}

// New 按配置创建缓存，redis 不可用时回退到内存缓存
func New(cfg config.CacheConfig, l *zap.Logger) Cache {
	if cfg.Driver != "redis" {
		return NewMemory()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		l.Warn("连接 Redis 失败，使用内存缓存", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = client.Close()
		return NewMemory()
	}
	return NewRedis(client, "wiley:")
}

// Key 拼接缓存键
func Key(prefix string, parts ...any) string {
	k := prefix
	for _, p := range parts {
		k += fmt.Sprintf(":%v", p)
	}
	return k
}
