package repository

import (
	"errors"

	"gorm.io/gorm"

	"novel-ai-go/internal/model"
)

// DocumentEmbeddingRepository 定义了对 document_embeddings 表的数据操作接口。
// 写入全部是以 (entity_kind, entity_id) 为键的 upsert，同一实体绝不产生重复行。
type DocumentEmbeddingRepository interface {
	Upsert(record *model.DocumentEmbedding) error
	FindByEntity(kind string, entityID uint) (*model.DocumentEmbedding, error)
	FindBatchByEntities(kind string, entityIDs []uint) ([]*model.DocumentEmbedding, error)
	FindByNovelID(novelID uint) ([]*model.DocumentEmbedding, error)
	DeleteByEntity(kind string, entityID uint) error
}

type documentEmbeddingRepository struct {
	db *gorm.DB
}

// NewDocumentEmbeddingRepository 创建一个新的 DocumentEmbeddingRepository 实例。
func NewDocumentEmbeddingRepository(db *gorm.DB) DocumentEmbeddingRepository {
	return &documentEmbeddingRepository{db: db}
}

// Upsert 在单个事务内完成 insert-or-update：已存在的记录替换全部向量
// 字段并重算分块数，行 ID 与创建时间保持不变；并发写同一实体时后写者胜。
func (r *documentEmbeddingRepository) Upsert(record *model.DocumentEmbedding) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing model.DocumentEmbedding
		err := tx.Where("entity_kind = ? AND entity_id = ?", record.EntityKind, record.EntityID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(record).Error
		}
		if err != nil {
			return err
		}

		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		return tx.Model(&existing).Updates(map[string]interface{}{
			"novel_id":      record.NovelID,
			"source_text":   record.SourceText,
			"doc_vector":    record.DocVector,
			"chunk_vectors": record.ChunkVectors,
			"chunk_count":   record.ChunkCount,
			"chunk_size":    record.ChunkSize,
			"model_version": record.ModelVersion,
		}).Error
	})
}

func (r *documentEmbeddingRepository) FindByEntity(kind string, entityID uint) (*model.DocumentEmbedding, error) {
	var record model.DocumentEmbedding
	err := r.db.Where("entity_kind = ? AND entity_id = ?", kind, entityID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindBatchByEntities 批量查找某类实体的向量记录，用于伏笔匹配等扫描场景。
func (r *documentEmbeddingRepository) FindBatchByEntities(kind string, entityIDs []uint) ([]*model.DocumentEmbedding, error) {
	var records []*model.DocumentEmbedding
	if len(entityIDs) == 0 {
		return records, nil
	}
	err := r.db.Where("entity_kind = ? AND entity_id IN ?", kind, entityIDs).Find(&records).Error
	return records, err
}

func (r *documentEmbeddingRepository) FindByNovelID(novelID uint) ([]*model.DocumentEmbedding, error) {
	var records []*model.DocumentEmbedding
	err := r.db.Where("novel_id = ?", novelID).Order("id asc").Find(&records).Error
	return records, err
}

// DeleteByEntity 随实体删除级联清理向量记录。
func (r *documentEmbeddingRepository) DeleteByEntity(kind string, entityID uint) error {
	return r.db.Where("entity_kind = ? AND entity_id = ?", kind, entityID).
		Delete(&model.DocumentEmbedding{}).Error
}
