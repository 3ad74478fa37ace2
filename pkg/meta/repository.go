package meta

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hiddenbox/pkg/core"
	"hiddenbox/pkg/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrManifestNotFound = errors.New("manifest not found in catalog")
	ErrDuplicateFile    = errors.New("file_id already cataloged")
)

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveManifest 把 Manifest 写入目录。
// Manifest 不可变，同一个 file_id 第二次写入返回 ErrDuplicateFile。
func (r *Repository) SaveManifest(ctx context.Context, m *core.Manifest) error {
	doc, err := m.Encode(core.FormatJSON)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	record := ManifestRecord{
		FileID:       m.FileID.String(),
		OriginalName: m.OriginalName,
		TotalSize:    m.TotalSize,
		TotalChunks:  m.TotalChunks,
		ChunkSize:    m.ChunkSize,
		Document:     datatypes.JSON(doc),
	}

	if err := r.db.GetConn().WithContext(ctx).Create(&record).Error; err != nil {
		//兼容性,处理不同数据库(PG与SQLite)的唯一约束错误
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(err.Error(), "UNIQUE constraint failed") ||
			strings.Contains(err.Error(), "duplicate key value") {
			return fmt.Errorf("%w: %s", ErrDuplicateFile, m.FileID)
		}
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	return nil
}

// GetRecord 按 file_id 读取目录记录
func (r *Repository) GetRecord(ctx context.Context, id types.FileID) (*ManifestRecord, error) {
	var record ManifestRecord
	// 因为 FileID 是主键，查询非常快
	err := r.db.GetConn().WithContext(ctx).
		Where("file_id = ?", id.String()).
		First(&record).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrManifestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetManifest 按 file_id 读取并解码完整的 Manifest
func (r *Repository) GetManifest(ctx context.Context, id types.FileID) (*core.Manifest, error) {
	record, err := r.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return record.Manifest()
}

// Manifest 解码记录中保存的文档
func (rec *ManifestRecord) Manifest() (*core.Manifest, error) {
	m, err := core.DecodeManifest(rec.Document, core.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("catalog entry %s is corrupt: %w", rec.FileID, err)
	}
	return m, nil
}

// ListManifests 按创建时间倒序列出目录
func (r *Repository) ListManifests(ctx context.Context, limit int) ([]ManifestRecord, error) {
	var records []ManifestRecord
	q := r.db.GetConn().WithContext(ctx).
		Omit("document").
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&records).Error
	return records, err
}

// FindByName 利用 original_name 索引查找同名文件的所有版本
func (r *Repository) FindByName(ctx context.Context, name string, limit int) ([]ManifestRecord, error) {
	var records []ManifestRecord
	q := r.db.GetConn().WithContext(ctx).
		Where("original_name = ?", name).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&records).Error
	return records, err
}

// DeleteManifest 从目录中移除记录 (不负责删除分片)
func (r *Repository) DeleteManifest(ctx context.Context, id types.FileID) error {
	result := r.db.GetConn().WithContext(ctx).
		Where("file_id = ?", id.String()).
		Delete(&ManifestRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrManifestNotFound
	}
	return nil
}
