package service

import (
	"context"

	"novel-ai-go/internal/model"
	"novel-ai-go/internal/repository"
	"novel-ai-go/pkg/log"
)

// CharacterService 接口定义了角色设定相关的业务操作。
type CharacterService interface {
	Create(ctx context.Context, character *model.Character) error
	Update(ctx context.Context, character *model.Character) error
	GetByID(id uint) (*model.Character, error)
	ListByNovel(novelID uint) ([]model.Character, error)
	Delete(ctx context.Context, id uint) error
}

type characterService struct {
	repo     repository.CharacterRepository
	enqueuer EmbeddingEnqueuer
	remover  DocumentRemover
}

// NewCharacterService 创建一个新的 CharacterService 实例。
func NewCharacterService(repo repository.CharacterRepository, enqueuer EmbeddingEnqueuer, remover DocumentRemover) CharacterService {
	return &characterService{repo: repo, enqueuer: enqueuer, remover: remover}
}

func (s *characterService) Create(ctx context.Context, character *model.Character) error {
	if err := s.repo.Create(character); err != nil {
		return err
	}
	enqueueEmbedding(s.enqueuer, model.KindCharacter, character.ID, character.NovelID)
	return nil
}

func (s *characterService) Update(ctx context.Context, character *model.Character) error {
	if err := s.repo.Update(character); err != nil {
		return err
	}
	enqueueEmbedding(s.enqueuer, model.KindCharacter, character.ID, character.NovelID)
	return nil
}

func (s *characterService) GetByID(id uint) (*model.Character, error) {
	return s.repo.FindByID(id)
}

func (s *characterService) ListByNovel(novelID uint) ([]model.Character, error) {
	return s.repo.FindByNovelID(novelID)
}

func (s *characterService) Delete(ctx context.Context, id uint) error {
	character, err := s.repo.FindByID(id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	if err := s.remover.DeleteDocument(ctx, model.KindCharacter, id, character.NovelID); err != nil {
		log.Warnf("[CharacterService] 级联清理向量数据失败, CharacterID: %d, Error: %v", id, err)
	}
	return nil
}
