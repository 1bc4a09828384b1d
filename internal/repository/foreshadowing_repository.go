package repository

import (
	"time"

	"gorm.io/gorm"

	"novel-ai-go/internal/model"
)

// ForeshadowingRepository 接口定义了伏笔相关的数据持久化操作。
type ForeshadowingRepository interface {
	Create(f *model.Foreshadowing) error
	Update(f *model.Foreshadowing) error
	FindByID(id uint) (*model.Foreshadowing, error)
	FindByNovelID(novelID uint) ([]model.Foreshadowing, error)
	FindUnresolvedByNovelID(novelID uint) ([]model.Foreshadowing, error)
	MarkResolved(id uint, chapterID uint) error
	Delete(id uint) error
}

type foreshadowingRepository struct {
	db *gorm.DB
}

// NewForeshadowingRepository 创建一个新的 ForeshadowingRepository 实例。
func NewForeshadowingRepository(db *gorm.DB) ForeshadowingRepository {
	return &foreshadowingRepository{db: db}
}

func (r *foreshadowingRepository) Create(f *model.Foreshadowing) error {
	return r.db.Create(f).Error
}

func (r *foreshadowingRepository) Update(f *model.Foreshadowing) error {
	return r.db.Save(f).Error
}

func (r *foreshadowingRepository) FindByID(id uint) (*model.Foreshadowing, error) {
	var f model.Foreshadowing
	if err := r.db.First(&f, id).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *foreshadowingRepository) FindByNovelID(novelID uint) ([]model.Foreshadowing, error) {
	var list []model.Foreshadowing
	err := r.db.Where("novel_id = ?", novelID).Order("id asc").Find(&list).Error
	return list, err
}

// FindUnresolvedByNovelID 返回小说中全部未回收的伏笔，按埋设顺序排列。
func (r *foreshadowingRepository) FindUnresolvedByNovelID(novelID uint) ([]model.Foreshadowing, error) {
	var list []model.Foreshadowing
	err := r.db.Where("novel_id = ? AND resolved = ?", novelID, false).
		Order("id asc").Find(&list).Error
	return list, err
}

// MarkResolved 把伏笔标记为已回收并关联到回收章节。
func (r *foreshadowingRepository) MarkResolved(id uint, chapterID uint) error {
	now := time.Now()
	return r.db.Model(&model.Foreshadowing{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"resolved":            true,
			"resolved_chapter_id": chapterID,
			"resolved_at":         now,
		}).Error
}

func (r *foreshadowingRepository) Delete(id uint) error {
	return r.db.Delete(&model.Foreshadowing{}, id).Error
}
