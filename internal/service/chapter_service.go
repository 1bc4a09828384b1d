package service

import (
	"context"

	"novel-ai-go/internal/model"
	"novel-ai-go/internal/repository"
	"novel-ai-go/pkg/log"
)

// ChapterService 接口定义了章节相关的业务操作。
// 保存成功后异步投递向量化任务：向量化失败绝不影响保存本身。
type ChapterService interface {
	Create(ctx context.Context, chapter *model.Chapter) error
	Update(ctx context.Context, chapter *model.Chapter) error
	GetByID(id uint) (*model.Chapter, error)
	ListByNovel(novelID uint) ([]model.Chapter, error)
	Delete(ctx context.Context, id uint) error
}

type chapterService struct {
	repo     repository.ChapterRepository
	enqueuer EmbeddingEnqueuer
	remover  DocumentRemover
}

// NewChapterService 创建一个新的 ChapterService 实例。
func NewChapterService(repo repository.ChapterRepository, enqueuer EmbeddingEnqueuer, remover DocumentRemover) ChapterService {
	return &chapterService{repo: repo, enqueuer: enqueuer, remover: remover}
}

func (s *chapterService) Create(ctx context.Context, chapter *model.Chapter) error {
	if err := s.repo.Create(chapter); err != nil {
		return err
	}
	enqueueEmbedding(s.enqueuer, model.KindChapter, chapter.ID, chapter.NovelID)
	return nil
}

func (s *chapterService) Update(ctx context.Context, chapter *model.Chapter) error {
	if err := s.repo.Update(chapter); err != nil {
		return err
	}
	enqueueEmbedding(s.enqueuer, model.KindChapter, chapter.ID, chapter.NovelID)
	return nil
}

func (s *chapterService) GetByID(id uint) (*model.Chapter, error) {
	return s.repo.FindByID(id)
}

func (s *chapterService) ListByNovel(novelID uint) ([]model.Chapter, error) {
	return s.repo.FindByNovelID(novelID)
}

func (s *chapterService) Delete(ctx context.Context, id uint) error {
	chapter, err := s.repo.FindByID(id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	if err := s.remover.DeleteDocument(ctx, model.KindChapter, id, chapter.NovelID); err != nil {
		log.Warnf("[ChapterService] 级联清理向量数据失败, ChapterID: %d, Error: %v", id, err)
	}
	return nil
}
