package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"hiddenbox/pkg/core"
	"hiddenbox/pkg/storage"
	"hiddenbox/pkg/types"
)

// Adapter 实现了 storage.Store 接口
type Adapter struct {
	rootPath string // 绝对路径，比如: /home/user/.hb/chunks
}

// NewAdapter 创建一个新的磁盘存储适配器
func NewAdapter(root string) (*Adapter, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	// 确保根目录存在
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create root storage dir: %w", err)
	}
	return &Adapter{rootPath: abs}, nil
}

// OpenAdapter 打开一个已存在的根目录，不会创建它。
// 只读的调用方 (还原、校验) 用它，避免按外部输入在磁盘上建出空目录。
func OpenAdapter(root string) (*Adapter, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: storage root %s", storage.ErrNotFound, abs)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat storage root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage root %s is not a directory", abs)
	}
	return &Adapter{rootPath: abs}, nil
}

func (s *Adapter) Root() string { return s.rootPath }

// layout 返回位置提示对应的物理路径
// 策略：使用 file_id 的前 2 个字符作为子目录 (Sharding)
// Example: "aabbcc.../c1.chunk" -> root/aa/aabbcc.../c1.chunk
func (s *Adapter) layout(hint types.Location) (string, error) {
	rel := filepath.FromSlash(string(hint))
	if rel == "" || filepath.IsAbs(rel) || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", storage.ErrInvalidLocation, hint)
	}
	rel = filepath.Clean(rel)

	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	if len(first) < 2 {
		return filepath.Join(s.rootPath, rel), nil
	}
	return filepath.Join(s.rootPath, first[:2], rel), nil
}

// resolve 把 Manifest 中的位置解析为物理路径
// Put 返回的是绝对路径；为了兼容，相对位置按 layout 处理
func (s *Adapter) resolve(loc types.Location) (string, error) {
	p := string(loc)
	if !filepath.IsAbs(p) {
		return s.layout(loc)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(s.rootPath, p)
	if err != nil || !filepath.IsLocal(rel) {
		// [安全防御]：绝不读取根目录之外的文件
		return "", fmt.Errorf("%w: %q is outside %s", storage.ErrInvalidLocation, loc, s.rootPath)
	}
	return p, nil
}

func (s *Adapter) Put(ctx context.Context, obj core.Object) (types.Location, error) {
	targetPath, err := s.layout(obj.Hint())
	if err != nil {
		return "", err
	}

	// 1. 检查是否存在
	if _, err := os.Stat(targetPath); err == nil {
		return "", fmt.Errorf("%w: %s", storage.ErrConflict, targetPath)
	}

	// 2. 准备目录
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	// 3. 原子写入 (Atomic Write)
	// 先写到一个临时文件，再 Link 到目标位置。
	// 和 Rename 不同，Link 在目标已存在时会失败，所以并发写同一位置也不会互相覆盖。
	tempFile, err := os.CreateTemp(dir, "temp-*")
	if err != nil {
		return "", err
	}
	// 无论成功与否，临时文件名都要清理 (Link 之后目标文件仍然存在)
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(obj.Bytes()); err != nil {
		tempFile.Close()
		return "", err
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return "", err
	}
	if err := tempFile.Close(); err != nil {
		return "", err
	}

	// 4. 移动到最终位置
	if err := os.Link(tempFile.Name(), targetPath); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", storage.ErrConflict, targetPath)
		}
		return "", err
	}

	return types.Location(targetPath), nil
}

func (s *Adapter) Get(ctx context.Context, loc types.Location) (io.ReadCloser, error) {
	targetPath, err := s.resolve(loc)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(targetPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Adapter) Has(ctx context.Context, loc types.Location) (bool, error) {
	targetPath, err := s.resolve(loc)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(targetPath)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *Adapter) Delete(ctx context.Context, loc types.Location) error {
	targetPath, err := s.resolve(loc)
	if err != nil {
		return err
	}
	if err := os.Remove(targetPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.ErrNotFound
		}
		return err
	}
	// 顺手清理空目录 (失败无所谓，非空目录本来就删不掉)
	_ = os.Remove(filepath.Dir(targetPath))
	return nil
}
