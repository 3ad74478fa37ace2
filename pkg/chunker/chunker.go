package chunker

import (
	"errors"
	"fmt"
	"iter"
)

// DefaultSize 默认分片大小 (单位: 字节)
const DefaultSize = 1024 * 1024 // 1MB

var ErrInvalidConfiguration = errors.New("invalid chunk configuration")

// Range 描述原文件中的一个连续字节区间
type Range struct {
	Order  int   // 在原文件中的位置 (从 0 开始)
	Offset int64 // 起始偏移
	Length int64 // 明文长度
}

// End 返回区间的结束 offset (不包含)
func (r Range) End() int64 { return r.Offset + r.Length }

// Count 返回切分后的块数
// 空文件也算一个长度为 0 的块，这样空文件可以走同一条管道
func Count(totalSize, chunkSize int64) (int, error) {
	if err := validate(totalSize, chunkSize); err != nil {
		return 0, err
	}
	if totalSize == 0 {
		return 1, nil
	}
	// 不能写成 (total + size - 1) / size，total 接近 MaxInt64 时会溢出
	n := totalSize / chunkSize
	if totalSize%chunkSize != 0 {
		n++
	}
	return int(n), nil
}

// Split 将 [0, totalSize) 切分成固定大小的区间序列。
// 返回的序列是惰性的、可重复遍历的 (纯函数，没有隐藏状态)。
// 除最后一块外，每块长度都等于 chunkSize。
func Split(totalSize, chunkSize int64) (iter.Seq[Range], error) {
	if err := validate(totalSize, chunkSize); err != nil {
		return nil, err
	}

	return func(yield func(Range) bool) {
		if totalSize == 0 {
			yield(Range{Order: 0, Offset: 0, Length: 0})
			return
		}
		order := 0
		// offset + length 永远不超过 totalSize，不会溢出
		for offset := int64(0); offset < totalSize; {
			length := min(chunkSize, totalSize-offset)
			if !yield(Range{Order: order, Offset: offset, Length: length}) {
				return
			}
			offset += length
			order++
		}
	}, nil
}

// Ranges 是 Split 的物化版本，方便按下标分发给 worker
func Ranges(totalSize, chunkSize int64) ([]Range, error) {
	n, err := Count(totalSize, chunkSize)
	if err != nil {
		return nil, err
	}
	seq, err := Split(totalSize, chunkSize)
	if err != nil {
		return nil, err
	}
	out := make([]Range, 0, n)
	for r := range seq {
		out = append(out, r)
	}
	return out, nil
}

func validate(totalSize, chunkSize int64) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be > 0, got %d", ErrInvalidConfiguration, chunkSize)
	}
	if totalSize < 0 {
		return fmt.Errorf("%w: total size must be >= 0, got %d", ErrInvalidConfiguration, totalSize)
	}
	return nil
}
