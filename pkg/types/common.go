// pkg/types/common.go
package types

import "strings"

// Hash 代表完整性摘要 (SHA-256 Hex String)
// 这是一个“值对象”，应当是不可变的。
type Hash string

func (h Hash) String() string { return string(h) }

// 验证 Hash 合法性
func (h Hash) IsZero() bool { return h == "" }
func (h Hash) IsValid() bool {
	if len(h) != 64 {
		return false
	}
	for _, c := range h {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	return true
}

// FileID 标识一次完整的分片加密运行 (一个 Manifest)
type FileID string

func (id FileID) String() string { return string(id) }
func (id FileID) IsZero() bool   { return id == "" }

// ChunkID 标识单个加密分片
type ChunkID string

func (id ChunkID) String() string { return string(id) }
func (id ChunkID) IsZero() bool   { return id == "" }

// Location 是外部存储中分片密文的位置
// 对核心层来说它是不透明的，只有具体的 Store 实现才知道如何解析
type Location string

func (l Location) String() string { return string(l) }
func (l Location) IsZero() bool   { return l == "" }

// NewLocationHint 由 file_id 和 chunk_id 推导存储位置提示
// Store 可以直接采用它，也可以分配自己的位置
func NewLocationHint(file FileID, chunk ChunkID) Location {
	return Location(string(file) + "/" + string(chunk) + ".chunk")
}
