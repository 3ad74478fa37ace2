package storage

import (
	"context"
	"errors"
	"io"

	"hiddenbox/pkg/core"
	"hiddenbox/pkg/types"
)

var (
	ErrNotFound = errors.New("object not found")
	// ErrConflict 表示目标位置已经被写过
	// ID 的唯一性通过这里在运行时得到验证，而不是假设生成器不会碰撞
	ErrConflict        = errors.New("location already exists")
	ErrInvalidLocation = errors.New("invalid storage location")
)

// Store 是分片密文的外部存储网关。
// 实现可以是本地磁盘、对象存储或内存。
// 不同分片的写入之间没有顺序要求，实现必须支持并发调用。
type Store interface {
	// Put 持久化一个对象，返回实际分配的位置
	// 如果位置已存在，返回 ErrConflict，绝不覆盖
	Put(ctx context.Context, obj core.Object) (types.Location, error)

	// Get 读取原始字节，位置不存在时返回 ErrNotFound
	// 注意：这里返回的是 io.ReadCloser 而不是 []byte，方便后端流式读取
	Get(ctx context.Context, loc types.Location) (io.ReadCloser, error)

	// Has 检查对象是否存在
	Has(ctx context.Context, loc types.Location) (bool, error)

	// Delete 删除对象，不存在时返回 ErrNotFound
	// 核心层不做垃圾回收，这是留给调用方清理孤儿分片用的
	Delete(ctx context.Context, loc types.Location) error
}

// ReadAll 是 Get + io.ReadAll 的便捷封装
func ReadAll(ctx context.Context, s Store, loc types.Location) ([]byte, error) {
	rc, err := s.Get(ctx, loc)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
