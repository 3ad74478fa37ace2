package core

import "hiddenbox/pkg/types"

// Object 是可以交给 Store 持久化的单元
type Object interface {
	// Hint 返回建议的存储位置
	// Store 可以原样采用，也可以分配自己的位置 (由 Put 返回)
	Hint() types.Location

	// Bytes 返回要持久化的原始字节
	Bytes() []byte
}
