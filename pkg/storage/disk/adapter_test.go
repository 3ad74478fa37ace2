package disk

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"hiddenbox/pkg/storage"
	"hiddenbox/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 模拟一个简单的 Object 实现，用于测试
type mockObject struct {
	hint types.Location
	data []byte
}

func (m mockObject) Hint() types.Location { return m.hint }
func (m mockObject) Bytes() []byte        { return m.data }

func TestDiskAdapter(t *testing.T) {
	// 1. 创建临时测试目录
	tmpDir := t.TempDir()
	store, err := NewAdapter(tmpDir)
	require.NoError(t, err)

	ctx := context.Background()

	obj := mockObject{
		hint: "2cf24dba-file/chunk-0.chunk",
		data: []byte("hello world"),
	}

	// 2. 测试 Put
	loc, err := store.Put(ctx, obj)
	require.NoError(t, err)

	// 验证文件是否真的存在于物理磁盘
	// 路径应该是 tmpDir/2c/2cf24dba-file/chunk-0.chunk
	expectedPath := filepath.Join(store.Root(), "2c", "2cf24dba-file", "chunk-0.chunk")
	assert.Equal(t, types.Location(expectedPath), loc)
	_, err = os.Stat(expectedPath)
	assert.NoError(t, err, "文件应该存在于 Sharding 目录中")

	// 临时文件不能残留
	entries, err := os.ReadDir(filepath.Dir(expectedPath))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// 3. 测试 Has (绝对位置和相对提示都能解析)
	exists, err := store.Has(ctx, loc)
	assert.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Has(ctx, obj.hint)
	assert.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Has(ctx, "ffffffff/none.chunk") // 不存在的
	assert.NoError(t, err)
	assert.False(t, exists)

	// 4. 测试 Get
	content, err := storage.ReadAll(ctx, store, loc)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), content)

	// 5. 测试 Delete
	require.NoError(t, store.Delete(ctx, loc))
	_, err = store.Get(ctx, loc)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, loc), storage.ErrNotFound)
}

func TestDiskAdapter_NoClobber(t *testing.T) {
	store, err := NewAdapter(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	first := mockObject{hint: "abcd/c.chunk", data: []byte("first")}
	_, err = store.Put(ctx, first)
	require.NoError(t, err)

	// 同一位置第二次写入必须冲突，且原内容不变
	_, err = store.Put(ctx, mockObject{hint: "abcd/c.chunk", data: []byte("second")})
	assert.ErrorIs(t, err, storage.ErrConflict)

	got, err := storage.ReadAll(ctx, store, first.hint)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)
}

func TestDiskAdapter_ConcurrentConflict(t *testing.T) {
	store, err := NewAdapter(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = store.Put(ctx, mockObject{hint: "race/x.chunk", data: []byte{byte(i)}})
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, storage.ErrConflict)
	}
	assert.Equal(t, 1, wins, "只能有一个写入成功")
}

func TestDiskAdapter_RejectsEscapes(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewAdapter(filepath.Join(tmpDir, "root"))
	require.NoError(t, err)
	ctx := context.Background()

	outside := filepath.Join(tmpDir, "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o600))

	tests := []struct {
		name string
		loc  types.Location
	}{
		{"absolute outside root", types.Location(outside)},
		{"dot dot", "../secret.txt"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Get(ctx, tt.loc)
			assert.ErrorIs(t, err, storage.ErrInvalidLocation)

			_, err = store.Put(ctx, mockObject{hint: tt.loc, data: []byte("x")})
			assert.ErrorIs(t, err, storage.ErrInvalidLocation)
		})
	}
}

func TestOpenAdapter_DoesNotCreateRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "chunks")

	_, err := OpenAdapter(missing)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoDirExists(t, missing)

	// 文件不能当根目录
	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	_, err = OpenAdapter(file)
	assert.Error(t, err)

	require.NoError(t, os.Mkdir(missing, 0o755))
	store, err := OpenAdapter(missing)
	require.NoError(t, err)
	assert.Equal(t, missing, store.Root())
}
