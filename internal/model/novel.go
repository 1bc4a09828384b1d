// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// Novel 对应 novels 表，是所有叙事实体的归属根。
type Novel struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	Author      string    `gorm:"type:varchar(100)" json:"author"`
	Genre       string    `gorm:"type:varchar(50)" json:"genre"`
	Synopsis    string    `gorm:"type:text" json:"synopsis"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Novel) TableName() string {
	return "novels"
}
