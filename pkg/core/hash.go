package core

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"hiddenbox/pkg/types"

	"github.com/fxamacker/cbor/v2"
)

var ErrDigestMismatch = errors.New("integrity digest mismatch")

// 定义 Canonical CBOR 编码选项
var encOptions = cbor.EncOptions{
	// 1. 强制 Map Key 排序 (Canonical)
	// 保证相同的 Manifest 编码出唯一的字节序列
	Sort: cbor.SortCanonical,

	// 2. 浮点数必须使用64位表示
	ShortestFloat: cbor.ShortestFloatNone,

	// 3. 时间格式化为 Unix 整数
	Time:    cbor.TimeUnix,
	TimeTag: cbor.EncTagNone,

	// 4. 禁止不定长编码 (Indefinite Length)
	IndefLength: cbor.IndefLengthForbidden,

	BigIntConvert: cbor.BigIntConvertShortest,
}

// 全局复用的编码模式
var em, _ = encOptions.EncMode()

// 定义解码选项
var decOptions = cbor.DecOptions{
	// --- 安全性配置 (防 DoS 攻击) ---
	// Manifest 来自外部输入，限制容器大小和嵌套深度
	// 1<<20 个分片 * 1MB 默认块 = 1TB 文件，足够了
	MaxArrayElements: 1 << 20,
	MaxMapPairs:      10000,
	MaxNestedLevels:  16,

	IndefLength: cbor.IndefLengthForbidden,

	// 强制检查 Map Key 重复
	DupMapKey: cbor.DupMapKeyEnforcedAPF,

	BignumTag: cbor.BignumTagForbidden,
	TimeTag:   cbor.DecTagIgnored,
}

var dm, _ = decOptions.DecMode()

// Digest 计算存储字节 (nonce ‖ ciphertext ‖ tag) 的 SHA-256 摘要
// 在解密之前就能发现存储层的 bit-rot 或替换
func Digest(data []byte) types.Hash {
	sum := sha256.Sum256(data)
	return types.Hash(hex.EncodeToString(sum[:]))
}

// VerifyDigest 重新计算摘要并与期望值比对 (常量时间比较)
func VerifyDigest(data []byte, want types.Hash) error {
	got := Digest(data)
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return fmt.Errorf("%w: want %s, got %s", ErrDigestMismatch, short(want), short(got))
	}
	return nil
}

func short(h types.Hash) string {
	if len(h) > 12 {
		return string(h[:12])
	}
	return string(h)
}
