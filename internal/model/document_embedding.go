package model

import "time"

// 可向量化实体类型。
const (
	KindChapter       = "chapter"
	KindCharacter     = "character"
	KindWorldSetting  = "world_setting"
	KindForeshadowing = "foreshadowing"
)

// DocumentEmbedding 对应 document_embeddings 表，按 (entity_kind, entity_id)
// 唯一存放一条实体的向量记录：一个文档级向量加按序排列的分块向量。
// 写入是 upsert：文本变更时替换全部向量字段并重算分块数，行 ID 保持不变。
// 源文本随行存储，分块文本在查询时用相同的分块大小重新切分得到。
type DocumentEmbedding struct {
	ID           uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	EntityKind   string      `gorm:"type:varchar(20);not null;uniqueIndex:uk_entity,priority:1" json:"entityKind"`
	EntityID     uint        `gorm:"not null;uniqueIndex:uk_entity,priority:2" json:"entityId"`
	NovelID      uint        `gorm:"index;not null" json:"novelId"`
	SourceText   string      `gorm:"type:longtext" json:"-"`
	DocVector    []float32   `gorm:"type:json;serializer:json" json:"-"`
	ChunkVectors [][]float32 `gorm:"type:json;serializer:json" json:"-"`
	ChunkCount   int         `gorm:"not null;default:0" json:"chunkCount"`
	ChunkSize    int         `gorm:"not null;default:0" json:"chunkSize"`
	ModelVersion string      `gorm:"type:varchar(50)" json:"modelVersion"`
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DocumentEmbedding) TableName() string {
	return "document_embeddings"
}
