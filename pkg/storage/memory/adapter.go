package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"hiddenbox/pkg/core"
	"hiddenbox/pkg/storage"
	"hiddenbox/pkg/types"
)

// Adapter 是进程内的 storage.Store 实现，用于测试和嵌入场景
type Adapter struct {
	mu      sync.RWMutex
	objects map[types.Location][]byte
}

func NewAdapter() *Adapter {
	return &Adapter{objects: make(map[types.Location][]byte)}
}

func (s *Adapter) Put(ctx context.Context, obj core.Object) (types.Location, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	loc := obj.Hint()
	if loc.IsZero() {
		return "", storage.ErrInvalidLocation
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[loc]; ok {
		return "", storage.ErrConflict
	}
	// 拷贝一份，防止调用方之后修改底层数组
	s.objects[loc] = bytes.Clone(obj.Bytes())
	return loc, nil
}

func (s *Adapter) Get(ctx context.Context, loc types.Location) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.objects[loc]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(data))), nil
}

func (s *Adapter) Has(ctx context.Context, loc types.Location) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[loc]
	return ok, nil
}

func (s *Adapter) Delete(ctx context.Context, loc types.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[loc]; !ok {
		return storage.ErrNotFound
	}
	delete(s.objects, loc)
	return nil
}

// Len 返回当前对象数量
func (s *Adapter) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Mutate 直接修改已存储的字节 (测试用：模拟 bit-rot 或恶意替换)
func (s *Adapter) Mutate(loc types.Location, fn func([]byte) []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[loc]
	if !ok {
		return false
	}
	s.objects[loc] = fn(data)
	return true
}
