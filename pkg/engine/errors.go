package engine

import (
	"errors"
	"fmt"

	"hiddenbox/pkg/storage"
	"hiddenbox/pkg/types"
)

// Kind 是错误分类，每种失败都能被调用方区分
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidConfiguration
	KindSourceRead
	KindStoreWrite
	KindStoreRead
	KindCipher
	KindAuthenticationFailed
	KindIntegrityMismatch
	KindSizeMismatch
	KindSerialization
	KindOutputWrite
	KindCanceled
)

var kindNames = map[Kind]string{
	KindUnknown:              "unknown",
	KindInvalidConfiguration: "invalid configuration",
	KindSourceRead:           "source read error",
	KindStoreWrite:           "store write error",
	KindStoreRead:            "store read error",
	KindCipher:               "cipher error",
	KindAuthenticationFailed: "authentication failed",
	KindIntegrityMismatch:    "integrity mismatch",
	KindSizeMismatch:         "size mismatch",
	KindSerialization:        "serialization error",
	KindOutputWrite:          "output write error",
	KindCanceled:             "canceled",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// 每个 Kind 对应一个哨兵错误，可以直接 errors.Is(err, engine.ErrIntegrityMismatch)
var (
	ErrInvalidConfiguration = errors.New(KindInvalidConfiguration.String())
	ErrSourceRead           = errors.New(KindSourceRead.String())
	ErrStoreWrite           = errors.New(KindStoreWrite.String())
	ErrStoreRead            = errors.New(KindStoreRead.String())
	ErrCipher               = errors.New(KindCipher.String())
	ErrAuthenticationFailed = errors.New(KindAuthenticationFailed.String())
	ErrIntegrityMismatch    = errors.New(KindIntegrityMismatch.String())
	ErrSizeMismatch         = errors.New(KindSizeMismatch.String())
	ErrSerialization        = errors.New(KindSerialization.String())
	ErrOutputWrite          = errors.New(KindOutputWrite.String())
	ErrCanceled             = errors.New(KindCanceled.String())

	// ErrNotFound 是 StoreRead 的子类，直接复用存储层的哨兵
	ErrNotFound = storage.ErrNotFound
)

var kindSentinels = map[Kind]error{
	KindInvalidConfiguration: ErrInvalidConfiguration,
	KindSourceRead:           ErrSourceRead,
	KindStoreWrite:           ErrStoreWrite,
	KindStoreRead:            ErrStoreRead,
	KindCipher:               ErrCipher,
	KindAuthenticationFailed: ErrAuthenticationFailed,
	KindIntegrityMismatch:    ErrIntegrityMismatch,
	KindSizeMismatch:         ErrSizeMismatch,
	KindSerialization:        ErrSerialization,
	KindOutputWrite:          ErrOutputWrite,
	KindCanceled:             ErrCanceled,
}

// Stage 标识出错时流水线所处的阶段
type Stage string

const (
	StageConfig   Stage = "config"
	StageRead     Stage = "read"
	StageKeygen   Stage = "keygen"
	StageEncrypt  Stage = "encrypt"
	StagePut      Stage = "put"
	StageManifest Stage = "manifest"
	StageGet      Stage = "get"
	StageVerify   Stage = "verify"
	StageDecrypt  Stage = "decrypt"
	StageSize     Stage = "size"
	StageOutput   Stage = "output"
	StageDelete   Stage = "delete"
)

// Error 携带足够的上下文 (哪个分片、哪个阶段)，让调用方决定如何清理
type Error struct {
	Kind  Kind
	Order int // 分片序号，-1 表示与具体分片无关
	Stage Stage

	// Orphans 是分片失败前已经写入存储的位置。
	// 核心层不会自动回滚，调用方可以用 Engine.PurgeLocations 清理。
	Orphans []types.Location

	Err error
}

func (e *Error) Error() string {
	if e.Order >= 0 {
		return fmt.Sprintf("%s: chunk %d (%s): %v", e.Kind, e.Order, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is 让 errors.Is 可以按 Kind 匹配
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

func newError(kind Kind, order int, stage Stage, err error) *Error {
	return &Error{Kind: kind, Order: order, Stage: stage, Err: err}
}

// KindOf 返回错误链中第一个 *Error 的 Kind
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
