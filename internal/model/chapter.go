package model

import "time"

// 章节状态。
const (
	ChapterStatusDraft     = 0 // 草稿
	ChapterStatusGenerated = 1 // AI 生成待确认
	ChapterStatusFinal     = 2 // 定稿
)

// Chapter 对应 chapters 表。
type Chapter struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	NovelID   uint      `gorm:"index;not null" json:"novelId"`
	VolumeNo  int       `gorm:"not null;default:1" json:"volumeNo"`
	ChapterNo int       `gorm:"not null" json:"chapterNo"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Summary   string    `gorm:"type:text" json:"summary"`
	Content   string    `gorm:"type:longtext" json:"content"`
	Status    int       `gorm:"type:tinyint;not null;default:0" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Chapter) TableName() string {
	return "chapters"
}

// EmbeddingText 返回章节用于向量化的文本：正文优先，空则退回标题+概要。
func (c *Chapter) EmbeddingText() string {
	if c.Content != "" {
		return c.Content
	}
	return c.Title + "\n" + c.Summary
}
