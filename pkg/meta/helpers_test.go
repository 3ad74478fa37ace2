package meta

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"hiddenbox/pkg/core"
	"hiddenbox/pkg/types"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 通用辅助函数 (Helpers)
// -----------------------------------------------------------------------------

// mockHash 生成合法的测试用 Hash
func mockHash(input string) types.Hash {
	sum := sha256.Sum256([]byte(input))
	return types.Hash(hex.EncodeToString(sum[:]))
}

// mockManifest 构造一个满足全部不变量的 Manifest (10 字节, chunk_size 4)
func mockManifest(fileID, name string) *core.Manifest {
	m := &core.Manifest{
		OriginalName:  name,
		FileID:        types.FileID(fileID),
		TotalSize:     10,
		TotalChunks:   3,
		ChunkSize:     4,
		EncryptionKey: core.EncodeKey(make([]byte, 32)),
	}
	for i, size := range []int64{4, 4, 2} {
		id := types.ChunkID(fileID + "-" + string(rune('a'+i)))
		m.Chunks = append(m.Chunks, core.ChunkDescriptor{
			ChunkID:         id,
			Order:           i,
			Size:            size,
			Hash:            mockHash(string(id)),
			StorageLocation: types.NewLocationHint(m.FileID, id),
		})
	}
	return m
}

// mustSave 保存 Manifest 并把 created_at 固定下来，保证排序确定
func mustSave(t *testing.T, repo *Repository, m *core.Manifest, createdAt time.Time) {
	t.Helper()
	require.NoError(t, repo.SaveManifest(context.Background(), m))
	err := repo.db.GetConn().Model(&ManifestRecord{}).
		Where("file_id = ?", m.FileID.String()).
		Update("created_at", createdAt).Error
	require.NoError(t, err)
}
