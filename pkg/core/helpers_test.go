package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"hiddenbox/pkg/types"
)

// -----------------------------------------------------------------------------
// 辅助工具
// -----------------------------------------------------------------------------

// mockHash 生成一个合法的 64 字符 Hex 摘要
func mockHash(input string) types.Hash {
	sum := sha256.Sum256([]byte(input))
	return types.Hash(hex.EncodeToString(sum[:]))
}

// validManifest 构造一个满足全部不变量的 Manifest (10 字节, chunk_size 4)
func validManifest(t *testing.T) *Manifest {
	t.Helper()
	sizes := []int64{4, 4, 2}
	m := &Manifest{
		OriginalName:  "ten.bin",
		FileID:        "file-0001",
		TotalSize:     10,
		TotalChunks:   len(sizes),
		ChunkSize:     4,
		EncryptionKey: EncodeKey(bytes.Repeat([]byte{0x01}, 32)),
	}
	for i, s := range sizes {
		id := types.ChunkID(fmt.Sprintf("chunk-%d", i))
		m.Chunks = append(m.Chunks, ChunkDescriptor{
			ChunkID:         id,
			Order:           i,
			Size:            s,
			Hash:            mockHash(string(id)),
			StorageLocation: types.NewLocationHint(m.FileID, id),
		})
	}
	return m
}
