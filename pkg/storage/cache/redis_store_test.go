package cache

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"hiddenbox/pkg/core"
	"hiddenbox/pkg/storage"
	"hiddenbox/pkg/storage/memory"
	"hiddenbox/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 1. SpyStore (间谍存储)
// 用于统计底层方法被调用的次数，验证请求是否穿透了缓存
// -----------------------------------------------------------------------------
type SpyStore struct {
	*memory.Adapter
	hasCount int32
	putCount int32
}

func NewSpyStore() *SpyStore {
	return &SpyStore{Adapter: memory.NewAdapter()}
}

func (s *SpyStore) Has(ctx context.Context, loc types.Location) (bool, error) {
	atomic.AddInt32(&s.hasCount, 1)
	return s.Adapter.Has(ctx, loc)
}

func (s *SpyStore) Put(ctx context.Context, obj core.Object) (types.Location, error) {
	atomic.AddInt32(&s.putCount, 1)
	return s.Adapter.Put(ctx, obj)
}

func TestNewCachedStore_BadURL(t *testing.T) {
	_, err := NewCachedStore(NewSpyStore(), Config{RedisURL: "not-a-url://"})
	assert.ErrorContains(t, err, "invalid redis url")
}

// -----------------------------------------------------------------------------
// 2. 集成测试
// -----------------------------------------------------------------------------

func TestCachedStore_Integration(t *testing.T) {
	// A. 环境检查: 确保 Redis 在运行
	redisAddr := "localhost:6379"
	conn, err := net.DialTimeout("tcp", redisAddr, 1*time.Second)
	if err != nil {
		t.Skipf("Skipping Redis integration test: %v", err)
	}
	conn.Close()

	// B. 初始化
	ctx := context.Background()
	spy := NewSpyStore()
	cachedStore, err := NewCachedStore(spy, Config{
		RedisURL: fmt.Sprintf("redis://%s/0", redisAddr),
		TTL:      1 * time.Hour,
	})
	require.NoError(t, err)
	defer cachedStore.Close()

	obj := core.NewStoredChunk(types.FileID(fmt.Sprintf("it-%d", time.Now().UnixNano())), "c0", []byte("fake data"))
	cachedStore.client.Del(ctx, cachedStore.cacheKey(obj.Hint()))

	// --- Step 1: Cache Miss ---
	exists, err := cachedStore.Has(ctx, obj.Hint())
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, int32(1), atomic.LoadInt32(&spy.hasCount), "Backend Has() should be called on miss")

	// --- Step 2: Put (Write-Through) ---
	loc, err := cachedStore.Put(ctx, obj)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&spy.putCount), "Backend Put() should be called")

	redisVal, err := cachedStore.client.Exists(ctx, cachedStore.cacheKey(loc)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), redisVal, "Redis key should be set after Put")

	// --- Step 3: Cache Hit ---
	exists, err = cachedStore.Has(ctx, loc)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, int32(1), atomic.LoadInt32(&spy.hasCount), "Backend Has() should NOT be called on hit")

	// --- Step 4: 冲突在缓存层就被拦截 ---
	_, err = cachedStore.Put(ctx, obj)
	assert.ErrorIs(t, err, storage.ErrConflict)
	assert.Equal(t, int32(1), atomic.LoadInt32(&spy.putCount), "Backend Put() should NOT be called on cached conflict")

	// --- Step 5: Delete 失效缓存 ---
	require.NoError(t, cachedStore.Delete(ctx, loc))
	redisVal, err = cachedStore.client.Exists(ctx, cachedStore.cacheKey(loc)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), redisVal)
}
