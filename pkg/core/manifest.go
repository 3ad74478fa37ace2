package core

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"hiddenbox/pkg/chunker"
	"hiddenbox/pkg/cipher"
	"hiddenbox/pkg/types"
)

var (
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrSizeInconsistent 表示分片数量/大小与 total_size 对不上
	ErrSizeInconsistent = errors.New("manifest size inconsistency")
	ErrUnknownFormat    = errors.New("unknown manifest format")
)

// ChunkDescriptor 描述一个加密分片
type ChunkDescriptor struct {
	ChunkID         types.ChunkID  `json:"chunk_id" cbor:"id"`
	Order           int            `json:"order" cbor:"o"`
	Size            int64          `json:"size" cbor:"s"` // 明文长度
	Hash            types.Hash     `json:"hash" cbor:"h"` // 存储字节的摘要
	StorageLocation types.Location `json:"storage_location" cbor:"l"`
}

// Manifest 记录了如何从加密分片还原原始文件
// 创建后不可变；对同一个源文件重新分片会得到新的 file_id
type Manifest struct {
	OriginalName  string       `json:"original_name" cbor:"n"`
	FileID        types.FileID `json:"file_id" cbor:"f"`
	TotalSize     int64        `json:"total_size" cbor:"ts"`
	TotalChunks   int          `json:"total_chunks" cbor:"tc"`
	ChunkSize     int64        `json:"chunk_size" cbor:"cs"`
	EncryptionKey string       `json:"encryption_key" cbor:"k"` // base64 (std)

	// Nonce 为未来的全局 nonce 模式保留。
	// 当前每个分片都有自己的随机 nonce (存储在分片字节前缀里)，这里始终为空。
	Nonce string `json:"nonce" cbor:"nc"`

	Chunks []ChunkDescriptor `json:"chunks" cbor:"c"`
}

// EncodeKey 把原始密钥编码成 Manifest 中的字符串形式
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// Key 解码文件密钥
func (m *Manifest) Key() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(m.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: encryption_key is not base64: %v", cipher.ErrInvalidKey, err)
	}
	if len(key) != cipher.KeySize {
		return nil, fmt.Errorf("%w (got %d)", cipher.ErrInvalidKey, len(key))
	}
	return key, nil
}

// Validate 检查 Manifest 的全部不变量:
//   - chunks 按 order 排列，order 恰好是 0..total_chunks-1
//   - sum(size) == total_size，且每块大小与 Chunker 的切分一致
//   - total_chunks == len(chunks) == ceil(total_size / chunk_size) (空文件为 1)
//   - nonce 为空 (每个分片自带 nonce)
//
// 注意：这里不检查 hash 的格式，hash 不匹配由还原流程报告为完整性错误
func (m *Manifest) Validate() error {
	if m.FileID.IsZero() {
		return fmt.Errorf("%w: missing file_id", ErrInvalidManifest)
	}
	if m.TotalChunks != len(m.Chunks) {
		return fmt.Errorf("%w: %w: total_chunks=%d but %d descriptors",
			ErrInvalidManifest, ErrSizeInconsistent, m.TotalChunks, len(m.Chunks))
	}

	// 先只算块数：total_size 来自外部输入，在确认与 chunks 一致之前不能按它分配内存
	want, err := chunker.Count(m.TotalSize, m.ChunkSize)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if want != len(m.Chunks) {
		return fmt.Errorf("%w: %w: expected %d chunks for %d bytes at chunk_size %d, got %d",
			ErrInvalidManifest, ErrSizeInconsistent, want, m.TotalSize, m.ChunkSize, len(m.Chunks))
	}
	if m.Nonce != "" {
		return fmt.Errorf("%w: nonce is reserved and must be empty (per-chunk nonces)", ErrInvalidManifest)
	}

	ranges, err := chunker.Split(m.TotalSize, m.ChunkSize)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	var sum int64
	seen := make(map[types.ChunkID]struct{}, len(m.Chunks))
	for r := range ranges {
		i, c := r.Order, m.Chunks[r.Order]
		if c.Order != i {
			return fmt.Errorf("%w: descriptor %d has order %d", ErrInvalidManifest, i, c.Order)
		}
		if c.ChunkID.IsZero() {
			return fmt.Errorf("%w: chunk %d missing chunk_id", ErrInvalidManifest, i)
		}
		if _, dup := seen[c.ChunkID]; dup {
			return fmt.Errorf("%w: duplicate chunk_id %s", ErrInvalidManifest, c.ChunkID)
		}
		seen[c.ChunkID] = struct{}{}
		if c.StorageLocation.IsZero() {
			return fmt.Errorf("%w: chunk %d missing storage_location", ErrInvalidManifest, i)
		}
		if c.Size != r.Length {
			return fmt.Errorf("%w: %w: chunk %d size %d, expected %d",
				ErrInvalidManifest, ErrSizeInconsistent, i, c.Size, r.Length)
		}
		sum += c.Size
	}
	if sum != m.TotalSize {
		return fmt.Errorf("%w: %w: chunk sizes sum to %d, total_size is %d",
			ErrInvalidManifest, ErrSizeInconsistent, sum, m.TotalSize)
	}

	if _, err := m.Key(); err != nil {
		return err
	}
	return nil
}

// Locations 返回所有分片的存储位置 (按 order)
func (m *Manifest) Locations() []types.Location {
	locs := make([]types.Location, len(m.Chunks))
	for i, c := range m.Chunks {
		locs[i] = c.StorageLocation
	}
	return locs
}

// -----------------------------------------------------------------------------
// 序列化
// -----------------------------------------------------------------------------

// Format 是 Manifest 的持久化格式
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCBOR:
		return FormatCBOR, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Encode 按指定格式序列化 Manifest
func (m *Manifest) Encode(format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.Marshal(m)
	case FormatCBOR:
		data, err := em.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal manifest: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// DecodeManifest 反序列化，格式未知时自动探测
// JSON 一定以 '{' 开头 (可能有前导空白)，CBOR map 的首字节在 0xa0-0xbf
func DecodeManifest(data []byte, format Format) (*Manifest, error) {
	if format == "" {
		format = sniff(data)
	}

	var m Manifest
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to decode manifest json: %w", err)
		}
	case FormatCBOR:
		if err := dm.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to decode manifest cbor: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return &m, nil
}

func sniff(data []byte) Format {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatJSON
	}
	return FormatCBOR
}
