package model

import "time"

// Foreshadowing 对应 foreshadowings 表，记录埋下的伏笔及其回收状态。
type Foreshadowing struct {
	ID                uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	NovelID           uint       `gorm:"index;not null" json:"novelId"`
	Title             string     `gorm:"type:varchar(255);not null" json:"title"`
	Content           string     `gorm:"type:text;not null" json:"content"`
	PlantedChapterID  uint       `gorm:"not null" json:"plantedChapterId"`
	Resolved          bool       `gorm:"not null;default:false;index" json:"resolved"`
	ResolvedChapterID *uint      `gorm:"default:null" json:"resolvedChapterId"`
	ResolvedAt        *time.Time `gorm:"default:null" json:"resolvedAt"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Foreshadowing) TableName() string {
	return "foreshadowings"
}

// EmbeddingText 返回伏笔用于向量化的文本。
func (f *Foreshadowing) EmbeddingText() string {
	return f.Title + "\n" + f.Content
}
