package memory

import (
	"context"
	"testing"

	"hiddenbox/pkg/core"
	"hiddenbox/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAdapter(t *testing.T) {
	ctx := context.Background()
	store := NewAdapter()

	data := []byte("hello world")
	obj := core.NewStoredChunk("file", "chunk", data)

	// 1. Put
	loc, err := store.Put(ctx, obj)
	require.NoError(t, err)
	assert.Equal(t, obj.Hint(), loc)

	// 调用方修改原切片不影响已存数据
	data[0] = 'X'

	// 2. 重复 Put 必须冲突
	_, err = store.Put(ctx, obj)
	assert.ErrorIs(t, err, storage.ErrConflict)

	// 3. Get
	got, err := storage.ReadAll(ctx, store, loc)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), got)

	// 4. Has / Delete
	exists, err := store.Has(ctx, loc)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, loc))
	assert.ErrorIs(t, store.Delete(ctx, loc), storage.ErrNotFound)

	_, err = store.Get(ctx, loc)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryAdapter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewAdapter()
	_, err := store.Put(ctx, core.NewStoredChunk("f", "c", []byte("x")))
	assert.ErrorIs(t, err, context.Canceled)
}
