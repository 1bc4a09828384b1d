package repository

import (
	"gorm.io/gorm"

	"novel-ai-go/internal/model"
)

// ChapterRepository 接口定义了章节相关的数据持久化操作。
type ChapterRepository interface {
	Create(chapter *model.Chapter) error
	Update(chapter *model.Chapter) error
	FindByID(id uint) (*model.Chapter, error)
	FindByNovelID(novelID uint) ([]model.Chapter, error)
	FindBatchByIDs(ids []uint) ([]*model.Chapter, error)
	Delete(id uint) error
}

type chapterRepository struct {
	db *gorm.DB
}

// NewChapterRepository 创建一个新的 ChapterRepository 实例。
func NewChapterRepository(db *gorm.DB) ChapterRepository {
	return &chapterRepository{db: db}
}

func (r *chapterRepository) Create(chapter *model.Chapter) error {
	return r.db.Create(chapter).Error
}

func (r *chapterRepository) Update(chapter *model.Chapter) error {
	return r.db.Save(chapter).Error
}

func (r *chapterRepository) FindByID(id uint) (*model.Chapter, error) {
	var chapter model.Chapter
	if err := r.db.First(&chapter, id).Error; err != nil {
		return nil, err
	}
	return &chapter, nil
}

// FindByNovelID 按卷号、章节号升序返回小说的全部章节。
func (r *chapterRepository) FindByNovelID(novelID uint) ([]model.Chapter, error) {
	var chapters []model.Chapter
	err := r.db.Where("novel_id = ?", novelID).
		Order("volume_no asc, chapter_no asc").Find(&chapters).Error
	return chapters, err
}

// FindBatchByIDs 批量查找章节，用于为检索结果补充标题与概要。
func (r *chapterRepository) FindBatchByIDs(ids []uint) ([]*model.Chapter, error) {
	var chapters []*model.Chapter
	if len(ids) == 0 {
		return chapters, nil
	}
	err := r.db.Where("id IN ?", ids).Find(&chapters).Error
	return chapters, err
}

func (r *chapterRepository) Delete(id uint) error {
	return r.db.Delete(&model.Chapter{}, id).Error
}
