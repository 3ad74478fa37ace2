// Package binding 是面向外部调用方的薄适配层：
// 只接收路径和 JSON 字符串，把引擎的错误分类翻译成四种边界类别。
package binding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"hiddenbox/pkg/core"
	"hiddenbox/pkg/engine"
	"hiddenbox/pkg/storage/disk"
	"hiddenbox/pkg/storage/memory"
	"hiddenbox/pkg/types"
)

// Category 是边界层可见的错误类别
type Category string

const (
	CategoryIO            Category = "io"
	CategoryIntegrity     Category = "integrity"
	CategorySerialization Category = "serialization"
	CategoryConfiguration Category = "configuration"
)

// Error 是 binding 层返回的唯一错误类型
type Error struct {
	Category Category
	Err      error
}

func (e *Error) Error() string { return fmt.Sprintf("%s error: %v", e.Category, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// CategoryOf 返回错误的边界类别，非 binding 错误返回空字符串
func CategoryOf(err error) Category {
	var be *Error
	if errors.As(err, &be) {
		return be.Category
	}
	return ""
}

// classify 把引擎错误归入边界类别
func classify(err error) *Error {
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	switch engine.KindOf(err) {
	case engine.KindInvalidConfiguration:
		return &Error{Category: CategoryConfiguration, Err: err}
	case engine.KindAuthenticationFailed, engine.KindIntegrityMismatch, engine.KindSizeMismatch, engine.KindCipher:
		return &Error{Category: CategoryIntegrity, Err: err}
	case engine.KindSerialization:
		return &Error{Category: CategorySerialization, Err: err}
	default:
		return &Error{Category: CategoryIO, Err: err}
	}
}

// Service 每次调用都为目标目录构造一个磁盘存储和引擎
type Service struct {
	cfg engine.Config
}

// New 创建 Service；chunkSize 为 0 时使用默认分片大小
func New(chunkSize int64, logger *slog.Logger) (*Service, error) {
	cfg := engine.Config{ChunkSize: chunkSize, Logger: logger}
	// 提前校验配置，避免第一次调用时才发现
	if _, err := engine.New(memory.NewAdapter(), cfg); err != nil {
		return nil, classify(err)
	}
	return &Service{cfg: cfg}, nil
}

// EncryptFragmentFile 把 filePath 分片加密到 outputDir 下，返回 Manifest JSON
func (s *Service) EncryptFragmentFile(filePath, outputDir string) (string, error) {
	return s.EncryptFragmentFileContext(context.Background(), filePath, outputDir)
}

func (s *Service) EncryptFragmentFileContext(ctx context.Context, filePath, outputDir string) (string, error) {
	store, err := disk.NewAdapter(outputDir)
	if err != nil {
		return "", &Error{Category: CategoryIO, Err: err}
	}
	e, err := engine.New(store, s.cfg)
	if err != nil {
		return "", classify(err)
	}

	m, err := e.Fragment(ctx, filePath)
	if err != nil {
		return "", classify(err)
	}

	raw, err := m.Encode(core.FormatJSON)
	if err != nil {
		return "", &Error{Category: CategorySerialization, Err: err}
	}
	return string(raw), nil
}

// DecryptReassembleFile 按 Manifest JSON 还原文件到 outputPath。
// 先写临时文件，全部校验通过后再 rename，失败时 outputPath 不会出现。
func (s *Service) DecryptReassembleFile(manifestJSON, outputPath string) error {
	return s.DecryptReassembleFileContext(context.Background(), manifestJSON, outputPath)
}

func (s *Service) DecryptReassembleFileContext(ctx context.Context, manifestJSON, outputPath string) error {
	m, err := core.DecodeManifest([]byte(manifestJSON), core.FormatJSON)
	if err != nil {
		return &Error{Category: CategorySerialization, Err: err}
	}
	// 与引擎共用同一套分类：坏密钥、尺寸矛盾属于 integrity
	if err := engine.ValidateManifest(m); err != nil {
		return classify(err)
	}

	root, err := chunkRoot(m.Locations())
	if err != nil {
		return &Error{Category: CategoryIO, Err: err}
	}
	// 分片目录不存在就是 io 错误，不能顺手建一个空目录
	store, err := disk.OpenAdapter(root)
	if err != nil {
		return &Error{Category: CategoryIO, Err: err}
	}
	e, err := engine.New(store, s.cfg)
	if err != nil {
		return classify(err)
	}

	data, err := e.ReassembleBytes(ctx, m)
	if err != nil {
		return classify(err)
	}
	if err := writeAtomic(outputPath, data); err != nil {
		return &Error{Category: CategoryIO, Err: err}
	}
	return nil
}

// chunkRoot 返回所有分片路径的公共父目录
// EncryptFragmentFile 写出的位置都是绝对路径
func chunkRoot(locs []types.Location) (string, error) {
	var root string
	for _, loc := range locs {
		p := filepath.Clean(string(loc))
		if !filepath.IsAbs(p) {
			return "", fmt.Errorf("storage_location %q is not an absolute path", loc)
		}
		dir := filepath.Dir(p)
		if root == "" {
			root = dir
			continue
		}
		for !within(root, dir) {
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}
	if root == "" {
		return "", errors.New("manifest has no chunk locations")
	}
	return root, nil
}

func within(root, dir string) bool {
	if root == dir {
		return true
	}
	return strings.HasPrefix(dir, strings.TrimSuffix(root, string(filepath.Separator))+string(filepath.Separator))
}

// writeAtomic 写临时文件 -> Sync -> Rename
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".hb-restore-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
