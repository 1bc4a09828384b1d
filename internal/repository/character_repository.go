package repository

import (
	"gorm.io/gorm"

	"novel-ai-go/internal/model"
)

// CharacterRepository 接口定义了角色相关的数据持久化操作。
type CharacterRepository interface {
	Create(character *model.Character) error
	Update(character *model.Character) error
	FindByID(id uint) (*model.Character, error)
	FindByNovelID(novelID uint) ([]model.Character, error)
	Delete(id uint) error
}

type characterRepository struct {
	db *gorm.DB
}

// NewCharacterRepository 创建一个新的 CharacterRepository 实例。
func NewCharacterRepository(db *gorm.DB) CharacterRepository {
	return &characterRepository{db: db}
}

func (r *characterRepository) Create(character *model.Character) error {
	return r.db.Create(character).Error
}

func (r *characterRepository) Update(character *model.Character) error {
	return r.db.Save(character).Error
}

func (r *characterRepository) FindByID(id uint) (*model.Character, error) {
	var character model.Character
	if err := r.db.First(&character, id).Error; err != nil {
		return nil, err
	}
	return &character, nil
}

func (r *characterRepository) FindByNovelID(novelID uint) ([]model.Character, error) {
	var characters []model.Character
	err := r.db.Where("novel_id = ?", novelID).Order("id asc").Find(&characters).Error
	return characters, err
}

func (r *characterRepository) Delete(id uint) error {
	return r.db.Delete(&model.Character{}, id).Error
}
