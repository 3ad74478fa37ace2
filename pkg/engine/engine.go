// Package engine 是分片加密引擎：
// 把源文件切分、逐块认证加密、写入外部存储并生成 Manifest；
// 以及它的逆过程 (拉取、校验、解密、拼接)。
package engine

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"

	"hiddenbox/pkg/chunker"
	"hiddenbox/pkg/cipher"
	"hiddenbox/pkg/storage"
	"hiddenbox/pkg/types"

	"github.com/google/uuid"
)

// Config 在构造时固定，一次运行中不会改变
type Config struct {
	// ChunkSize 是唯一的核心可调参数，默认 chunker.DefaultSize
	ChunkSize int64

	// Workers 是并发处理分片的上限，<= 0 表示 GOMAXPROCS
	Workers int

	// Algorithm 选择 AEAD 套件，空表示 AES-256-GCM
	// 注意：还原时必须使用与分片时相同的套件
	Algorithm cipher.Algorithm

	// Random 是密钥、nonce 和 ID 的随机源，默认 crypto/rand.Reader
	// 测试时可以注入确定性的随机源
	Random io.Reader

	Logger *slog.Logger
}

// Engine 没有全局可变状态，每次运行都携带自己的密钥材料
type Engine struct {
	store     storage.Store
	cipher    *cipher.Adapter
	chunkSize int64
	workers   int
	random    io.Reader
	logger    *slog.Logger
}

func New(store storage.Store, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, newError(KindInvalidConfiguration, -1, StageConfig, fmt.Errorf("store is required"))
	}

	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = chunker.DefaultSize
	}
	if _, err := chunker.Count(0, cfg.ChunkSize); err != nil {
		return nil, newError(KindInvalidConfiguration, -1, StageConfig, err)
	}

	c, err := cipher.New(cfg.Algorithm)
	if err != nil {
		return nil, newError(KindInvalidConfiguration, -1, StageConfig, err)
	}

	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Random == nil {
		cfg.Random = rand.Reader
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Engine{
		store:     store,
		cipher:    c,
		chunkSize: cfg.ChunkSize,
		workers:   cfg.Workers,
		random:    &lockedReader{r: cfg.Random},
		logger:    cfg.Logger,
	}, nil
}

func (e *Engine) ChunkSize() int64            { return e.chunkSize }
func (e *Engine) Algorithm() cipher.Algorithm { return e.cipher.Algorithm() }

// newID 从注入的随机源生成 UUIDv4
// 唯一性最终由存储层的写冲突 (storage.ErrConflict) 验证
func (e *Engine) newID() (string, error) {
	id, err := uuid.NewRandomFromReader(e.random)
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return id.String(), nil
}

// chunkAAD 把分片绑定到所属文件和位置：file_id ‖ uint64be(order)
// 在存储层互换两个分片会导致认证失败
func chunkAAD(file types.FileID, order int) []byte {
	aad := make([]byte, len(file)+8)
	copy(aad, file)
	binary.BigEndian.PutUint64(aad[len(file):], uint64(order))
	return aad
}

// lockedReader 让注入的随机源可以被多个 worker 并发读取
type lockedReader struct {
	mu sync.Mutex
	r  io.Reader
}

func (l *lockedReader) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return io.ReadFull(l.r, p)
}
