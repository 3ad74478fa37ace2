package engine

import (
	"context"
	"errors"
	"log/slog"

	"hiddenbox/pkg/core"
	"hiddenbox/pkg/storage"
	"hiddenbox/pkg/types"

	"golang.org/x/sync/errgroup"
)

// Purge 删除 Manifest 引用的全部分片
func (e *Engine) Purge(ctx context.Context, m *core.Manifest) error {
	return e.PurgeLocations(ctx, m.Locations())
}

// PurgeLocations 删除给定位置的分片 (例如 Error.Orphans)。
// 已经不存在的位置视为成功，所以可以重复调用。
func (e *Engine) PurgeLocations(ctx context.Context, locs []types.Location) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, loc := range locs {
		g.Go(func() error {
			err := e.store.Delete(gctx, loc)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return newError(storeKind(err, KindStoreWrite), -1, StageDelete, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	e.logger.Debug("purged chunks", slog.Int("count", len(locs)))
	return nil
}
