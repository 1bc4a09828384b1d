package model

import "fmt"

// DocLevelChunk 标记 ES 文档是文档级向量而非分块向量。
const DocLevelChunk = -1

// EsVectorDoc 定义了存储在 Elasticsearch 中的向量文档结构。
// 文档级向量 ChunkID 为 DocLevelChunk，分块向量按 0 起始的分块序号存储。
type EsVectorDoc struct {
	VectorID     string    `json:"vector_id"` // 唯一标识: {kind}:{entityId}:{chunkId}
	EntityKind   string    `json:"entity_kind"`
	EntityID     uint      `json:"entity_id"`
	NovelID      uint      `json:"novel_id"`
	ChunkID      int       `json:"chunk_id"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

// BuildVectorID 构造 ES 文档的主键，同一实体重嵌入时按主键覆盖。
func BuildVectorID(kind string, entityID uint, chunkID int) string {
	return fmt.Sprintf("%s:%d:%d", kind, entityID, chunkID)
}

// SimilarityMatch 是一条相似度检索结果。Score 位于 [0,1]，结果列表
// 按 Score 非递增排列。ChunkID 仅在分块级检索时有意义。
type SimilarityMatch struct {
	EntityKind string  `json:"entityKind"`
	EntityID   uint    `json:"entityId"`
	NovelID    uint    `json:"novelId"`
	ChunkID    int     `json:"chunkId"`
	Score      float64 `json:"score"`
	Title      string  `json:"title,omitempty"`
	Preview    string  `json:"preview,omitempty"`
}
