package service

import (
	"context"

	"novel-ai-go/internal/model"
	"novel-ai-go/internal/repository"
	"novel-ai-go/pkg/log"
)

// NovelService 接口定义了小说相关的业务操作。
type NovelService interface {
	Create(ctx context.Context, novel *model.Novel) error
	Update(ctx context.Context, novel *model.Novel) error
	GetByID(id uint) (*model.Novel, error)
	List() ([]model.Novel, error)
	Delete(ctx context.Context, id uint) error
}

type novelService struct {
	repo        repository.NovelRepository
	chapterRepo repository.ChapterRepository
	enqueuer    EmbeddingEnqueuer
	remover     DocumentRemover
}

// NewNovelService 创建一个新的 NovelService 实例。
func NewNovelService(
	repo repository.NovelRepository,
	chapterRepo repository.ChapterRepository,
	enqueuer EmbeddingEnqueuer,
	remover DocumentRemover,
) NovelService {
	return &novelService{
		repo:        repo,
		chapterRepo: chapterRepo,
		enqueuer:    enqueuer,
		remover:     remover,
	}
}

func (s *novelService) Create(ctx context.Context, novel *model.Novel) error {
	if err := s.repo.Create(novel); err != nil {
		return err
	}
	// 世界观设定（简介）也参与语义检索
	if novel.Synopsis != "" {
		enqueueEmbedding(s.enqueuer, model.KindWorldSetting, novel.ID, novel.ID)
	}
	return nil
}

func (s *novelService) Update(ctx context.Context, novel *model.Novel) error {
	if err := s.repo.Update(novel); err != nil {
		return err
	}
	if novel.Synopsis != "" {
		enqueueEmbedding(s.enqueuer, model.KindWorldSetting, novel.ID, novel.ID)
	}
	return nil
}

func (s *novelService) GetByID(id uint) (*model.Novel, error) {
	return s.repo.FindByID(id)
}

func (s *novelService) List() ([]model.Novel, error) {
	return s.repo.FindAll()
}

// Delete 删除小说本体并级联清理其下章节的向量数据。
// 章节、角色等子实体的行删除交由数据库外键或管理端处理，
// 这里保证检索层不再返回已删除小说的内容。
func (s *novelService) Delete(ctx context.Context, id uint) error {
	chapters, err := s.chapterRepo.FindByNovelID(id)
	if err != nil {
		log.Warnf("[NovelService] 读取小说章节失败, 跳过向量级联清理, NovelID: %d, Error: %v", id, err)
	}
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	if err := s.remover.DeleteDocument(ctx, model.KindWorldSetting, id, id); err != nil {
		log.Warnf("[NovelService] 清理世界观向量失败, NovelID: %d, Error: %v", id, err)
	}
	for _, c := range chapters {
		if err := s.remover.DeleteDocument(ctx, model.KindChapter, c.ID, id); err != nil {
			log.Warnf("[NovelService] 清理章节向量失败, ChapterID: %d, Error: %v", c.ID, err)
		}
	}
	return nil
}
