package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"hiddenbox/pkg/chunker"
	"hiddenbox/pkg/cipher"
	"hiddenbox/pkg/core"
	"hiddenbox/pkg/types"

	"golang.org/x/sync/errgroup"
)

// Fragment 读取源文件，切分、加密、存储，并返回 Manifest
func (e *Engine) Fragment(ctx context.Context, path string) (*core.Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newError(KindSourceRead, -1, StageRead, err)
	}
	defer f.Close()
	return e.FragmentReader(ctx, filepath.Base(path), f)
}

// FragmentReader 和 Fragment 一样，但数据来自任意 io.Reader
// 源必须被完整读取，读到一半出错整个运行失败
func (e *Engine) FragmentReader(ctx context.Context, name string, r io.Reader) (*core.Manifest, error) {
	// 先读进内存；Manifest 里的 total_size 必须是完整读取后的长度
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, newError(KindSourceRead, -1, StageRead, fmt.Errorf("failed to read %s: %w", name, err))
	}
	return e.FragmentBytes(ctx, name, data)
}

// FragmentBytes 是流水线的主体。
// 失败时不会返回部分 Manifest；已经写入的分片列在 Error.Orphans 里。
func (e *Engine) FragmentBytes(ctx context.Context, name string, data []byte) (*core.Manifest, error) {
	start := time.Now()
	totalSize := int64(len(data))

	// 1. 切分
	ranges, err := chunker.Ranges(totalSize, e.chunkSize)
	if err != nil {
		return nil, newError(KindInvalidConfiguration, -1, StageConfig, err)
	}

	// 2. 每个文件一把新密钥、一个新 file_id
	key, err := cipher.GenerateKey(e.random)
	if err != nil {
		return nil, newError(KindCipher, -1, StageKeygen, err)
	}
	id, err := e.newID()
	if err != nil {
		return nil, newError(KindCipher, -1, StageKeygen, err)
	}
	fileID := types.FileID(id)

	// 3. 并发处理分片
	// descriptors 按 order 下标写入，完成顺序无关，天然有序
	descriptors := make([]core.ChunkDescriptor, len(ranges))

	var (
		mu      sync.Mutex
		written []types.Location
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, r := range ranges {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return newError(KindCanceled, r.Order, StagePut, err)
			}

			desc, err := e.sealChunk(gctx, fileID, key, r, data[r.Offset:r.End()])
			if err != nil {
				return err
			}

			mu.Lock()
			written = append(written, desc.StorageLocation)
			mu.Unlock()

			descriptors[r.Order] = desc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var ee *Error
		if !errors.As(err, &ee) {
			ee = newError(KindCanceled, -1, StagePut, err)
		}
		slices.Sort(written)
		ee.Orphans = written

		e.logger.Warn("fragment failed",
			slog.String("file_id", fileID.String()),
			slog.String("name", name),
			slog.Int("order", ee.Order),
			slog.String("stage", string(ee.Stage)),
			slog.Int("orphans", len(written)),
			slog.Any("err", ee.Err),
		)
		return nil, ee
	}

	// 4. 所有分片都成功后才组装 Manifest
	m := &core.Manifest{
		OriginalName:  name,
		FileID:        fileID,
		TotalSize:     totalSize,
		TotalChunks:   len(descriptors),
		ChunkSize:     e.chunkSize,
		EncryptionKey: core.EncodeKey(key),
		Chunks:        descriptors,
	}
	if err := m.Validate(); err != nil {
		ee := classifyManifest(err)
		ee.Orphans = m.Locations()
		return nil, ee
	}

	e.logger.Info("fragment complete",
		slog.String("file_id", fileID.String()),
		slog.String("name", name),
		slog.Int("chunks", m.TotalChunks),
		slog.Int64("size", totalSize),
		slog.Duration("dur", time.Since(start)),
	)
	return m, nil
}

// sealChunk 加密一个分片并写入存储
// 持久化格式: [Nonce] [Ciphertext+Tag]，摘要基于整个持久化字节计算
func (e *Engine) sealChunk(ctx context.Context, fileID types.FileID, key []byte, r chunker.Range, plaintext []byte) (core.ChunkDescriptor, error) {
	id, err := e.newID()
	if err != nil {
		return core.ChunkDescriptor{}, newError(KindCipher, r.Order, StageKeygen, err)
	}
	chunkID := types.ChunkID(id)

	stored, err := e.cipher.Seal(key, e.random, plaintext, chunkAAD(fileID, r.Order))
	if err != nil {
		return core.ChunkDescriptor{}, newError(KindCipher, r.Order, StageEncrypt, err)
	}

	obj := core.NewStoredChunk(fileID, chunkID, stored)
	loc, err := e.store.Put(ctx, obj)
	if err != nil {
		return core.ChunkDescriptor{}, newError(storeKind(err, KindStoreWrite), r.Order, StagePut, err)
	}

	e.logger.Debug("chunk stored",
		slog.String("file_id", fileID.String()),
		slog.Int("order", r.Order),
		slog.Int64("size", r.Length),
		slog.String("loc", loc.String()),
	)

	return core.ChunkDescriptor{
		ChunkID:         chunkID,
		Order:           r.Order,
		Size:            r.Length,
		Hash:            obj.Hash(),
		StorageLocation: loc,
	}, nil
}
