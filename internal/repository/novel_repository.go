// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"gorm.io/gorm"

	"novel-ai-go/internal/model"
)

// NovelRepository 接口定义了小说相关的数据持久化操作。
type NovelRepository interface {
	Create(novel *model.Novel) error
	Update(novel *model.Novel) error
	FindByID(id uint) (*model.Novel, error)
	FindAll() ([]model.Novel, error)
	Delete(id uint) error
}

type novelRepository struct {
	db *gorm.DB
}

// NewNovelRepository 创建一个新的 NovelRepository 实例。
func NewNovelRepository(db *gorm.DB) NovelRepository {
	return &novelRepository{db: db}
}

func (r *novelRepository) Create(novel *model.Novel) error {
	return r.db.Create(novel).Error
}

func (r *novelRepository) Update(novel *model.Novel) error {
	return r.db.Save(novel).Error
}

func (r *novelRepository) FindByID(id uint) (*model.Novel, error) {
	var novel model.Novel
	if err := r.db.First(&novel, id).Error; err != nil {
		return nil, err
	}
	return &novel, nil
}

func (r *novelRepository) FindAll() ([]model.Novel, error) {
	var novels []model.Novel
	err := r.db.Order("id asc").Find(&novels).Error
	return novels, err
}

func (r *novelRepository) Delete(id uint) error {
	return r.db.Delete(&model.Novel{}, id).Error
}
