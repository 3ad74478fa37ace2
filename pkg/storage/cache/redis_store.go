package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"hiddenbox/pkg/core"
	"hiddenbox/pkg/storage"
	"hiddenbox/pkg/types"

	"github.com/redis/go-redis/v9"
)

// CachedStore 是一个装饰器，它为底层的 storage.Store 添加 Redis 存在性缓存
type CachedStore struct {
	backend storage.Store // 被装饰的底层存储 (如 S3)
	client  *redis.Client
	ttl     time.Duration
}

type Config struct {
	RedisURL string        // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // 过期时间
}

func NewCachedStore(backend storage.Store, cfg Config) (*CachedStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &CachedStore{
		backend: backend,
		client:  client,
		ttl:     cfg.TTL,
	}, nil
}

// Close 释放 Redis 连接
func (s *CachedStore) Close() error {
	return s.client.Close()
}

// cacheKey 生成 Redis Key，添加前缀防止冲突
func (s *CachedStore) cacheKey(loc types.Location) string {
	return "hb:loc:" + string(loc)
}

// Has 优先查 Redis
func (s *CachedStore) Has(ctx context.Context, loc types.Location) (bool, error) {
	key := s.cacheKey(loc)

	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		// 缓存故障降级：Redis 挂了就退化为无缓存模式
		slog.Warn("redis exists failed, falling back to backend", slog.Any("err", err))
	} else if val > 0 {
		return true, nil
	}

	found, err := s.backend.Has(ctx, loc)
	if err != nil {
		return false, err
	}

	// 缓存回填，异步进行，不阻塞主流程
	if found {
		go func() {
			fillCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.client.Set(fillCtx, key, "1", s.ttl)
		}()
	}
	return found, nil
}

// Put 写穿 (Write-Through)。
// 位置提示在缓存里已存在时直接判定冲突，省掉一次后端请求。
func (s *CachedStore) Put(ctx context.Context, obj core.Object) (types.Location, error) {
	hintKey := s.cacheKey(obj.Hint())
	if val, err := s.client.Exists(ctx, hintKey).Result(); err == nil && val > 0 {
		return "", fmt.Errorf("%w: %s (cached)", storage.ErrConflict, obj.Hint())
	}

	loc, err := s.backend.Put(ctx, obj)
	if err != nil {
		return "", err
	}

	// 只有后端写成功了，才写 Redis。这里的错误可以忽略
	pipe := s.client.Pipeline()
	pipe.Set(ctx, hintKey, "1", s.ttl)
	pipe.Set(ctx, s.cacheKey(loc), "1", s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("redis fill failed", slog.String("loc", string(loc)), slog.Any("err", err))
	}
	return loc, nil
}

// Get 透传 - 我们不缓存分片数据
// 原因：密文分片可能很大，Redis 内存宝贵，只存存在性性价比最高。
func (s *CachedStore) Get(ctx context.Context, loc types.Location) (io.ReadCloser, error) {
	return s.backend.Get(ctx, loc)
}

// Delete 先删后端，再失效缓存
func (s *CachedStore) Delete(ctx context.Context, loc types.Location) error {
	err := s.backend.Delete(ctx, loc)
	if delErr := s.client.Del(ctx, s.cacheKey(loc)).Err(); delErr != nil {
		slog.Warn("redis invalidate failed", slog.String("loc", string(loc)), slog.Any("err", delErr))
	}
	return err
}
