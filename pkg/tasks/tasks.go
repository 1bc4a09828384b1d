// Package tasks 定义了通过消息队列传递的任务结构体。
package tasks

// EmbeddingTask 是向量化任务的载荷：由实体保存路径投递，
// 后台管道按 Kind 加载实体文本并重建其向量。
type EmbeddingTask struct {
	Kind     string `json:"kind"`
	EntityID uint   `json:"entity_id"`
	NovelID  uint   `json:"novel_id"`
}
