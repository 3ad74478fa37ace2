package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"hiddenbox/pkg/cipher"
	"hiddenbox/pkg/core"
	"hiddenbox/pkg/storage"

	"golang.org/x/sync/errgroup"
)

// Reassemble 按 Manifest 还原文件并写入 w。
// 所有分片都通过校验和认证之后才会向 w 写第一个字节，失败时不会输出部分明文。
func (e *Engine) Reassemble(ctx context.Context, m *core.Manifest, w io.Writer) error {
	data, err := e.ReassembleBytes(ctx, m)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return newError(KindOutputWrite, -1, StageOutput, err)
	}
	return nil
}

// ReassembleBytes 拉取、校验、解密全部分片并按 order 拼接
func (e *Engine) ReassembleBytes(ctx context.Context, m *core.Manifest) ([]byte, error) {
	start := time.Now()

	key, err := e.prepare(m)
	if err != nil {
		return nil, err
	}

	parts := make([][]byte, len(m.Chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, c := range m.Chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return newError(KindCanceled, c.Order, StageGet, err)
			}
			pt, err := e.openChunk(gctx, m, key, c)
			if err != nil {
				return err
			}
			parts[c.Order] = pt
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var ee *Error
		if !errors.As(err, &ee) {
			ee = newError(KindCanceled, -1, StageGet, err)
		}
		e.logger.Warn("reassemble failed",
			slog.String("file_id", m.FileID.String()),
			slog.Int("order", ee.Order),
			slog.String("stage", string(ee.Stage)),
			slog.String("kind", ee.Kind.String()),
			slog.Any("err", ee.Err),
		)
		return nil, ee
	}

	out := make([]byte, 0, m.TotalSize)
	for _, p := range parts {
		out = append(out, p...)
	}
	if int64(len(out)) != m.TotalSize {
		return nil, newError(KindSizeMismatch, -1, StageSize,
			fmt.Errorf("reassembled %d bytes, manifest says %d", len(out), m.TotalSize))
	}

	e.logger.Info("reassemble complete",
		slog.String("file_id", m.FileID.String()),
		slog.String("name", m.OriginalName),
		slog.Int("chunks", m.TotalChunks),
		slog.Int64("size", m.TotalSize),
		slog.Duration("dur", time.Since(start)),
	)
	return out, nil
}

// Verify 检查每个分片是否可取回、摘要一致并且能通过认证，但不输出明文。
// 与还原不同，Verify 不会在第一个错误处停下，而是按 order 汇总所有故障。
func (e *Engine) Verify(ctx context.Context, m *core.Manifest) error {
	key, err := e.prepare(m)
	if err != nil {
		return err
	}

	errs := make([]error, len(m.Chunks))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, c := range m.Chunks {
		g.Go(func() error {
			if _, err := e.openChunk(ctx, m, key, c); err != nil {
				errs[c.Order] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		e.logger.Warn("verify failed", slog.String("file_id", m.FileID.String()), slog.Any("err", err))
		return err
	}
	e.logger.Info("verify ok", slog.String("file_id", m.FileID.String()), slog.Int("chunks", m.TotalChunks))
	return nil
}

// ValidateManifest 校验 Manifest，失败时返回带 Kind 的 *Error。
// 还原之前就要拒绝 Manifest 的调用方 (比如 binding) 用它拿到和引擎一致的分类。
func ValidateManifest(m *core.Manifest) error {
	if m == nil {
		return newError(KindSerialization, -1, StageManifest, core.ErrInvalidManifest)
	}
	if err := m.Validate(); err != nil {
		return classifyManifest(err)
	}
	return nil
}

// prepare 校验 Manifest 并解出文件密钥
func (e *Engine) prepare(m *core.Manifest) ([]byte, error) {
	if err := ValidateManifest(m); err != nil {
		return nil, err
	}
	key, err := m.Key()
	if err != nil {
		return nil, newError(KindCipher, -1, StageManifest, err)
	}
	return key, nil
}

// openChunk 对单个分片执行: 拉取 -> 校验摘要 -> 认证解密 -> 校验长度
func (e *Engine) openChunk(ctx context.Context, m *core.Manifest, key []byte, c core.ChunkDescriptor) ([]byte, error) {
	stored, err := storage.ReadAll(ctx, e.store, c.StorageLocation)
	if err != nil {
		return nil, newError(storeKind(err, KindStoreRead), c.Order, StageGet, err)
	}

	// 先比对摘要：摘要不符说明存储层的字节被替换或损坏
	if err := core.VerifyDigest(stored, c.Hash); err != nil {
		return nil, newError(KindIntegrityMismatch, c.Order, StageVerify, err)
	}

	pt, err := e.cipher.Open(key, stored, chunkAAD(m.FileID, c.Order))
	if err != nil {
		if errors.Is(err, cipher.ErrAuthenticationFailed) || errors.Is(err, cipher.ErrMalformedChunk) {
			return nil, newError(KindAuthenticationFailed, c.Order, StageDecrypt, err)
		}
		return nil, newError(KindCipher, c.Order, StageDecrypt, err)
	}

	if int64(len(pt)) != c.Size {
		return nil, newError(KindSizeMismatch, c.Order, StageSize,
			fmt.Errorf("decrypted %d bytes, descriptor says %d", len(pt), c.Size))
	}

	e.logger.Debug("chunk verified", slog.String("file_id", m.FileID.String()), slog.Int("order", c.Order))
	return pt, nil
}

// classifyManifest 把 Manifest 校验错误映射到引擎的错误分类
func classifyManifest(err error) *Error {
	switch {
	case errors.Is(err, cipher.ErrInvalidKey):
		return newError(KindCipher, -1, StageManifest, err)
	case errors.Is(err, core.ErrSizeInconsistent):
		return newError(KindSizeMismatch, -1, StageManifest, err)
	default:
		return newError(KindSerialization, -1, StageManifest, err)
	}
}

// storeKind 区分取消和真正的存储故障
func storeKind(err error, fallback Kind) Kind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return fallback
}
