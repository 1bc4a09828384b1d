package model

import "time"

// Character 对应 characters 表，角色设定也参与语义检索。
type Character struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	NovelID     uint      `gorm:"index;not null" json:"novelId"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	Role        string    `gorm:"type:varchar(50)" json:"role"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Character) TableName() string {
	return "characters"
}

// EmbeddingText 返回角色用于向量化的文本。
func (c *Character) EmbeddingText() string {
	return c.Name + "\n" + c.Description
}
