package core

import "hiddenbox/pkg/types"

// StoredChunk 代表一个已经加密好的分片
// 持久化格式: [Nonce: 12 bytes] [Ciphertext+Tag]
type StoredChunk struct {
	hint types.Location
	hash types.Hash
	data []byte
}

func NewStoredChunk(file types.FileID, id types.ChunkID, data []byte) *StoredChunk {
	return &StoredChunk{
		hint: types.NewLocationHint(file, id),
		hash: Digest(data),
		data: data,
	}
}

func (c *StoredChunk) Hint() types.Location { return c.hint }
func (c *StoredChunk) Bytes() []byte        { return c.data }
func (c *StoredChunk) Hash() types.Hash     { return c.hash }
func (c *StoredChunk) Size() int64          { return int64(len(c.data)) }
