package meta

import (
	"time"

	"gorm.io/datatypes"
)

// ManifestRecord 是 core.Manifest 在关系型数据库中的投影 (目录)
// 用于 hb ls / hb show 这类查询；完整的 Manifest 文档原样保存在 Document 里。
// 注意：Document 中包含文件密钥，数据库本身需要按密钥材料的级别保护。
type ManifestRecord struct {
	// FileID 是主键
	FileID string `gorm:"primaryKey;type:varchar(64)"`

	// 基础元数据 (B-Tree 索引，适合排序和精确查找)
	OriginalName string `gorm:"index;type:varchar(255)"`
	TotalSize    int64
	TotalChunks  int
	ChunkSize    int64

	// Document 是 Manifest 的 JSON 文档
	Document datatypes.JSON

	CreatedAt time.Time `gorm:"index"`
}

// TableName 强制指定表名
func (ManifestRecord) TableName() string {
	return "manifests"
}
