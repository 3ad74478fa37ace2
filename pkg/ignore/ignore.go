package ignore

import (
	"io/fs"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName 是用户自定义忽略规则所在的文件
const FileName = ".hbignore"

// defaultRules 是强制生效的系统级规则，防止把仓库自己的数据或密钥再加密一遍
var defaultRules = []string{
	// --- 仓库自身 ---
	".hb",          // 分片和目录数据库
	"*.chunk",      // 散落在工作区的加密分片
	"*.manifest.*", // 导出的 Manifest 里含有明文密钥
	".git",

	// --- 安全与配置 ---
	"config.yaml", // 防止 S3 Secret Key 泄露
	".env",

	// --- 常见垃圾文件 ---
	".DS_Store",
	"Thumbs.db",
}

// Matcher 判断一个路径在目录加密时是否应该跳过
type Matcher struct {
	root    string
	ignorer *gitignore.GitIgnore
}

// NewMatcher 合并默认规则和 root 下的 .hbignore
func NewMatcher(root string) (*Matcher, error) {
	var (
		ignorer *gitignore.GitIgnore
		err     error
	)

	ignoreFilePath := filepath.Join(root, FileName)
	if _, errStat := os.Stat(ignoreFilePath); errStat == nil {
		ignorer, err = gitignore.CompileIgnoreFileAndLines(ignoreFilePath, defaultRules...)
	} else {
		ignorer = gitignore.CompileIgnoreLines(defaultRules...)
	}
	if err != nil {
		return nil, err
	}

	return &Matcher{root: root, ignorer: ignorer}, nil
}

// Matches 检查给定的路径是否匹配忽略规则
// path: 相对于 root 的路径 (例如 "data/model.bin")
func (m *Matcher) Matches(path string) bool {
	if m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(filepath.ToSlash(path))
}

// Walk 遍历 root 下所有未被忽略的普通文件，按字典序回调 fn(绝对路径, 相对路径)
// 被忽略的目录整体跳过，不会再深入
func (m *Matcher) Walk(fn func(path, rel string) error) error {
	return filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(m.root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if rel == FileName || m.Matches(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return fn(path, rel)
	})
}
